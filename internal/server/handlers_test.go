package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/KiranTejz20005/masika/internal/config"
	"github.com/KiranTejz20005/masika/internal/nvidia"
)

type stubLLM struct {
	configured bool
	calls      int
	reply      map[string]any
	err        error
	text       string
	textErr    error
	lastPrompt string
}

func (s *stubLLM) Configured() bool { return s.configured }

func (s *stubLLM) CompleteJSON(_ context.Context, userPrompt string) (map[string]any, error) {
	s.calls++
	s.lastPrompt = userPrompt
	return s.reply, s.err
}

func (s *stubLLM) CompleteText(_ context.Context, _, _ string, _, _ float64, _ int) (string, error) {
	s.calls++
	return s.text, s.textErr
}

type fakeDB struct {
	err error
}

func (f fakeDB) Ping(ctx context.Context) error { return f.err }

func newTestServer(llm Completer, db Pinger, style string) *Server {
	gin.SetMode(gin.TestMode)
	return &Server{
		cfg: &config.Config{Port: "5000", ReportStyle: style},
		llm: llm,
		db:  db,
	}
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&stubLLM{}, nil, config.StyleDetailed)
	w := doJSON(srv.Router(), "GET", "/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestIndexDescriptorFallback(t *testing.T) {
	srv := newTestServer(&stubLLM{}, nil, config.StyleDetailed)
	srv.staticRoot = ""
	w := doJSON(srv.Router(), "GET", "/", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "masika-analysis") {
		t.Fatalf("expected service descriptor, got %s", w.Body.String())
	}
}

func TestReadyzDisabledDB(t *testing.T) {
	srv := newTestServer(&stubLLM{}, nil, config.StyleDetailed)
	w := doJSON(srv.Router(), "GET", "/readyz", "")

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"db":"disabled"`) {
		t.Fatalf("unexpected readiness response: %d %s", w.Code, w.Body.String())
	}
}

func TestReadyzUnhealthyDB(t *testing.T) {
	srv := newTestServer(&stubLLM{}, fakeDB{err: errors.New("connection refused")}, config.StyleDetailed)
	w := doJSON(srv.Router(), "GET", "/readyz", "")

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "degraded") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestPredictRejectsWrongFeatureCount(t *testing.T) {
	for _, n := range []int{0, 11, 13} {
		stub := &stubLLM{}
		srv := newTestServer(stub, nil, config.StyleDetailed)

		features := make([]string, n)
		for i := range features {
			features[i] = "1"
		}
		body := fmt.Sprintf(`{"features":[%s],"input_data":{}}`, strings.Join(features, ","))
		w := doJSON(srv.Router(), "POST", "/predict", body)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("features len %d: expected 400, got %d", n, w.Code)
		}
		if !strings.Contains(w.Body.String(), "Exactly 12 features required") {
			t.Fatalf("unexpected body: %s", w.Body.String())
		}
		if stub.calls != 0 {
			t.Fatalf("expected no upstream call, got %d", stub.calls)
		}
	}
}

func TestPredictMalformedBody(t *testing.T) {
	stub := &stubLLM{}
	srv := newTestServer(stub, nil, config.StyleDetailed)
	w := doJSON(srv.Router(), "POST", "/predict", "{not json")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if stub.calls != 0 {
		t.Fatalf("expected no upstream call, got %d", stub.calls)
	}
}

func TestPredictSuccess(t *testing.T) {
	stub := &stubLLM{reply: map[string]any{
		"diagnosis_result": "ABNORMAL",
		"reason_summary":   "x",
	}}
	srv := newTestServer(stub, nil, config.StyleDetailed)

	body := `{"features":[1,2,3,4,5,6,7,8,9,10,11,12],"input_data":{"name":"Asha","pain":"severe"}}`
	w := doJSON(srv.Router(), "POST", "/predict", body)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Prediction    string         `json:"prediction"`
		Probabilities map[string]any `json:"probabilities"`
		Report        *string        `json:"report"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Prediction != "ABNORMAL" {
		t.Fatalf("expected ABNORMAL, got %s", resp.Prediction)
	}
	if resp.Report == nil || !strings.Contains(*resp.Report, "x") {
		t.Fatalf("expected report containing x, got %v", resp.Report)
	}
	if resp.Probabilities == nil || len(resp.Probabilities) != 0 {
		t.Fatalf("expected empty probabilities object, got %v", resp.Probabilities)
	}
	if !strings.Contains(stub.lastPrompt, "Name: Asha") {
		t.Fatalf("prompt missing patient name: %s", stub.lastPrompt)
	}
	if !strings.Contains(stub.lastPrompt, "No PDF report uploaded.") {
		t.Fatalf("prompt missing lab sentinel: %s", stub.lastPrompt)
	}
}

func TestPredictNullReportWhenReplyEmpty(t *testing.T) {
	stub := &stubLLM{reply: map[string]any{}}
	srv := newTestServer(stub, nil, config.StyleDetailed)

	body := `{"features":[1,2,3,4,5,6,7,8,9,10,11,12],"input_data":{}}`
	w := doJSON(srv.Router(), "POST", "/predict", body)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"report":null`) {
		t.Fatalf("expected null report, got %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"prediction":"NORMAL"`) {
		t.Fatalf("expected NORMAL default, got %s", w.Body.String())
	}
}

func TestPredictUpstreamFailure(t *testing.T) {
	stub := &stubLLM{err: fmt.Errorf("%w: status 401", nvidia.ErrUpstream)}
	srv := newTestServer(stub, nil, config.StyleDetailed)

	body := `{"features":[1,2,3,4,5,6,7,8,9,10,11,12],"input_data":{}}`
	w := doJSON(srv.Router(), "POST", "/predict", body)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "error") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func analyzeForm(t *testing.T, fields map[string]string, pdfContent []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("writing field: %v", err)
		}
	}
	if pdfContent != nil {
		fw, err := mw.CreateFormFile("hemoglobin_file", "report.pdf")
		if err != nil {
			t.Fatalf("creating form file: %v", err)
		}
		if _, err := fw.Write(pdfContent); err != nil {
			t.Fatalf("writing form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("closing writer: %v", err)
	}
	return buf, mw.FormDataContentType()
}

func TestAnalyzeDiagnosisSuccess(t *testing.T) {
	stub := &stubLLM{reply: map[string]any{
		"diagnosis_result": "NORMAL",
		"reason_summary":   "Dear Asha, all looks fine.",
	}}
	srv := newTestServer(stub, nil, config.StyleDetailed)

	buf, contentType := analyzeForm(t, map[string]string{
		"name": "Asha",
		"pain": "mild",
	}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/analyze_diagnosis", buf)
	req.Header.Set("Content-Type", contentType)
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"success"`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Dear Asha") {
		t.Fatalf("expected raw model reply in data, got %s", w.Body.String())
	}
	if !strings.Contains(stub.lastPrompt, "Name: Asha") {
		t.Fatalf("prompt missing form data: %s", stub.lastPrompt)
	}
	if !strings.Contains(stub.lastPrompt, "No PDF report uploaded.") {
		t.Fatalf("expected lab sentinel without upload: %s", stub.lastPrompt)
	}
}

func TestAnalyzeDiagnosisUnreadablePDF(t *testing.T) {
	stub := &stubLLM{reply: map[string]any{"diagnosis_result": "NORMAL"}}
	srv := newTestServer(stub, nil, config.StyleDetailed)

	buf, contentType := analyzeForm(t, map[string]string{"name": "Asha"}, []byte("not a pdf"))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/analyze_diagnosis", buf)
	req.Header.Set("Content-Type", contentType)
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	// Extraction failures become prompt text, never request errors.
	if !strings.Contains(stub.lastPrompt, "Error reading PDF:") {
		t.Fatalf("expected extraction error sentinel in prompt: %s", stub.lastPrompt)
	}
}

func TestAnalyzeDiagnosisModelNotJSON(t *testing.T) {
	stub := &stubLLM{err: fmt.Errorf("%w: invalid character 'n'", nvidia.ErrNotJSON)}
	srv := newTestServer(stub, nil, config.StyleDetailed)

	buf, contentType := analyzeForm(t, map[string]string{"name": "Asha"}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/analyze_diagnosis", buf)
	req.Header.Set("Content-Type", contentType)
	srv.Router().ServeHTTP(w, req)

	// Error conditions still answer 200 with a status body on this endpoint.
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"error"`) {
		t.Fatalf("expected error status, got %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "valid JSON") {
		t.Fatalf("expected parse failure message, got %s", w.Body.String())
	}
}

func TestWellnessReportUnavailableWhenUnconfigured(t *testing.T) {
	stub := &stubLLM{configured: false}
	srv := newTestServer(stub, nil, config.StyleDetailed)

	w := doJSON(srv.Router(), "POST", "/wellness_report", `{"input_data":{"diet":"mixed"},"prediction":"NORMAL"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Report generation is not available.") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
	if stub.calls != 0 {
		t.Fatalf("expected no upstream call, got %d", stub.calls)
	}
}

func TestWellnessReportSuccess(t *testing.T) {
	stub := &stubLLM{configured: true, text: "Summary\n\nAll looks fine."}
	srv := newTestServer(stub, nil, config.StyleDetailed)

	w := doJSON(srv.Router(), "POST", "/wellness_report", `{"input_data":{"pain":"mild"},"prediction":"NORMAL"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"success"`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "All looks fine.") {
		t.Fatalf("expected report text, got %s", w.Body.String())
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(&stubLLM{}, nil, config.StyleDetailed)
	w := doJSON(srv.Router(), "GET", "/health", "")

	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header")
	}
}
