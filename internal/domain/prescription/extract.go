package prescription

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// maxExtractedText caps the text kept on the record and sent for summary.
const maxExtractedText = 64 << 10

// ExtractText returns the readable text of a document. Plain text is kept
// verbatim, PDFs go through the PDF text layer and images yield nothing.
func ExtractText(contentType string, data []byte) (string, error) {
	switch contentType {
	case "text/plain":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("text file is not valid UTF-8")
		}
		return truncate(string(data)), nil
	case "application/pdf":
		text, err := pdfText(data)
		if err != nil {
			return "", err
		}
		return truncate(strings.TrimSpace(text)), nil
	default:
		return "", nil
	}
}

// pdfText reads the text layer. The parser panics on some malformed files,
// which is turned into an error here.
func pdfText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

func truncate(s string) string {
	if len(s) <= maxExtractedText {
		return s
	}
	cut := maxExtractedText
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
