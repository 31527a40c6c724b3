// Package ingestion turns uploaded documents and job descriptions into clean plain text.
package ingestion

import "fmt"

// PDFContentType is the only upload type accepted for resumes.
const PDFContentType = "application/pdf"

// UnsupportedTypeError is returned when an upload is not a PDF.
type UnsupportedTypeError struct {
	Filename    string
	ContentType string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("file %s must be a PDF (got %q)", e.Filename, e.ContentType)
}

// ReadError is returned when the text layer of an upload cannot be read.
type ReadError struct {
	Filename string
	Cause    error
}

func (e *ReadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to read %s: %v", e.Filename, e.Cause)
	}
	return fmt.Sprintf("failed to read %s", e.Filename)
}

func (e *ReadError) Unwrap() error {
	return e.Cause
}
