package server

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/KiranTejz20005/masika/internal/pdftext"
	"github.com/KiranTejz20005/masika/internal/prompt"
	"github.com/KiranTejz20005/masika/internal/report"
	"github.com/KiranTejz20005/masika/internal/wellness"
)

// analyzeFormFields are the multipart field names posted by the web form.
var analyzeFormFields = []string{
	"name",
	"current_age",
	"first_period_age",
	"cycle_length",
	"period_length",
	"period_regularity",
	"missed_period",
	"flow_rate",
	"pads_used",
	"clots",
	"pain",
	"weakness",
	"diet",
	"hemoglobin_manual",
	"description",
}

// handleIndex serves the landing page, or a JSON service descriptor when the
// page is not shipped alongside the binary.
func (s *Server) handleIndex(c *gin.Context) {
	if s.staticRoot != "" {
		c.File(filepath.Join(s.staticRoot, "index.html"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"service": "masika-analysis",
		"status":  "ok",
		"endpoints": []string{
			"GET /health",
			"POST /predict",
			"POST /analyze_diagnosis",
			"POST /wellness_report",
		},
	})
}

// handleHealth is the liveness check used by the Flutter app; it checks no
// dependencies.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReady(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "disabled"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"db":     "unhealthy: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "ok"})
}

// handlePredict is the Flutter screening endpoint. The body carries a
// 12-element features array (validated but unused, the contract of the
// shipped client) and the input_data map that feeds the prompt.
func (s *Server) handlePredict(c *gin.Context) {
	var body struct {
		Features  []float64      `json:"features"`
		InputData map[string]any `json:"input_data"`
	}
	// Lenient parse: a malformed body falls through to the features check,
	// same as an empty one.
	_ = c.ShouldBindJSON(&body)

	if len(body.Features) != 12 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Exactly 12 features required"})
		return
	}

	userPrompt := prompt.Build(body.InputData, pdftext.NoReportSentinel, s.cfg.ReportStyle)
	reply, err := s.llm.CompleteJSON(c.Request.Context(), userPrompt)
	if err != nil {
		log.Error().Err(err).Str("endpoint", "/predict").Msg("completion failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	composed := report.Compose(reply, s.cfg.ReportStyle)
	var reportField any
	if composed != "" {
		reportField = composed
	}

	c.JSON(http.StatusOK, gin.H{
		"prediction":    report.Prediction(reply),
		"probabilities": gin.H{},
		"report":        reportField,
	})
}

// handleAnalyzeDiagnosis is the web-form endpoint. Errors are reported in the
// body with status 200: the form client renders {"status":"error"} inline and
// treats non-200 as a connectivity failure.
func (s *Server) handleAnalyzeDiagnosis(c *gin.Context) {
	data := make(map[string]any, len(analyzeFormFields))
	for _, field := range analyzeFormFields {
		data[field] = c.PostForm(field)
	}

	labText := pdftext.NoReportSentinel
	if fh, err := c.FormFile("hemoglobin_file"); err == nil {
		labText = pdftext.FromMultipart(fh)
	}

	userPrompt := prompt.Build(data, labText, s.cfg.ReportStyle)
	reply, err := s.llm.CompleteJSON(c.Request.Context(), userPrompt)
	if err != nil {
		log.Error().Err(err).Str("endpoint", "/analyze_diagnosis").Msg("completion failed")
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": reply})
}

// handleWellnessReport generates the guardrailed plain-text report from the
// screening result and raw inputs.
func (s *Server) handleWellnessReport(c *gin.Context) {
	var body struct {
		InputData  map[string]any `json:"input_data"`
		Prediction string         `json:"prediction"`
	}
	_ = c.ShouldBindJSON(&body)
	if body.Prediction == "" {
		body.Prediction = "NORMAL"
	}

	text, err := wellness.Generate(c.Request.Context(), s.llm, body.InputData, body.Prediction)
	if err != nil {
		log.Error().Err(err).Str("endpoint", "/wellness_report").Msg("report generation failed")
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": err.Error()})
		return
	}
	if text == "" {
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": "Report generation is not available."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "report": text})
}
