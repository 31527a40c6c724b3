package ingestion

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ValidateContentType checks that a declared upload content type is application/pdf.
// Parameters such as charset are ignored.
func ValidateContentType(filename, contentType string) error {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.EqualFold(mediaType, PDFContentType) {
		return &UnsupportedTypeError{Filename: filename, ContentType: contentType}
	}
	return nil
}

// ExtractPDFText reads the text layer of every page of a PDF document, in page order.
// Pages without a text layer contribute nothing; a document that cannot be parsed at all
// yields a *ReadError.
func ExtractPDFText(filename string, data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", &ReadError{Filename: filename, Cause: errors.New("empty file")}
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &ReadError{Filename: filename, Cause: fmt.Errorf("malformed pdf: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &ReadError{Filename: filename, Cause: err}
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", &ReadError{Filename: filename, Cause: fmt.Errorf("page %d: %w", i, err)}
		}
		if sb.Len() > 0 && pageText != "" {
			sb.WriteString("\n")
		}
		sb.WriteString(pageText)
	}

	return CleanText(sb.String()), nil
}
