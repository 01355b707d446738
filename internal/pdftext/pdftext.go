// Package pdftext extracts plain text from uploaded lab-report PDFs. Failures
// never propagate: every outcome is a string suitable for embedding directly
// into the analysis prompt.
package pdftext

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Sentinel values embedded into the prompt in place of extracted text.
const (
	NoReportSentinel   = "No PDF report uploaded."
	UnreadableSentinel = "Could not read text from PDF."
	errPrefix          = "Error reading PDF: "
)

// FromMultipart extracts text from an uploaded PDF form file. A nil header or
// empty filename means no upload and returns NoReportSentinel without opening
// anything.
func FromMultipart(fh *multipart.FileHeader) string {
	if fh == nil || fh.Filename == "" {
		return NoReportSentinel
	}

	f, err := fh.Open()
	if err != nil {
		return errPrefix + err.Error()
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return errPrefix + err.Error()
	}

	return Extract(bytes.NewReader(data), int64(len(data)))
}

// Extract concatenates the text of every page in order. An empty result maps
// to UnreadableSentinel, any parse failure to an error-description string.
func Extract(r io.ReaderAt, size int64) (text string) {
	// The pdf library panics on some malformed files instead of returning an
	// error; treat that the same as an unreadable report.
	defer func() {
		if rec := recover(); rec != nil {
			text = fmt.Sprintf("%s%v", errPrefix, rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return errPrefix + err.Error()
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return errPrefix + err.Error()
		}
		sb.WriteString(content)
	}

	if sb.Len() == 0 {
		return UnreadableSentinel
	}
	return sb.String()
}
