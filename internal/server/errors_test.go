package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-screener/internal/ingestion"
	"github.com/jonathan/resume-screener/internal/llm"
	"github.com/jonathan/resume-screener/internal/skills"
)

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "Username already exists", (&ErrUsernameTaken{Username: "alice"}).Error())
	assert.Equal(t, "Invalid username or password", (&ErrInvalidCredentials{}).Error())
	assert.Equal(t, "validation error: title - required", (&ErrValidation{Field: "title", Message: "required"}).Error())
	assert.Equal(t, "Invalid job id", (&ErrValidation{Message: "Invalid job id"}).Error())
	assert.Equal(t, "Resume not found", (&ErrNotFound{Resource: "Resume"}).Error())
	assert.Equal(t, "Not authorized to delete this resume", (&ErrForbidden{Action: "delete", Resource: "resume"}).Error())
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "username taken", err: &ErrUsernameTaken{}, expected: http.StatusBadRequest},
		{name: "invalid credentials", err: &ErrInvalidCredentials{}, expected: http.StatusUnauthorized},
		{name: "validation", err: &ErrValidation{Message: "bad"}, expected: http.StatusBadRequest},
		{name: "not found", err: &ErrNotFound{Resource: "Job"}, expected: http.StatusNotFound},
		{name: "forbidden", err: &ErrForbidden{Action: "access", Resource: "job"}, expected: http.StatusForbidden},
		{name: "unsupported type", err: &ingestion.UnsupportedTypeError{Filename: "a.txt"}, expected: http.StatusBadRequest},
		{name: "unreadable pdf", err: &ingestion.ReadError{Filename: "a.pdf", Cause: errors.New("eof")}, expected: http.StatusBadRequest},
		{name: "upstream failure", err: &skills.ExtractionError{Cause: errors.New("503")}, expected: http.StatusBadGateway},
		{name: "missing api key", err: &skills.ExtractionError{Cause: llm.ErrMissingAPIKey}, expected: http.StatusInternalServerError},
		{name: "wrapped", err: fmt.Errorf("outer: %w", &ErrNotFound{Resource: "Resume"}), expected: http.StatusNotFound},
		{name: "file failed", err: &ErrFileFailed{Filename: "a.pdf", Err: &ingestion.ReadError{Filename: "a.pdf"}}, expected: http.StatusBadRequest},
		{name: "unknown", err: errors.New("boom"), expected: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.err))
		})
	}
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "Internal server error", publicMessage(errors.New("pq: password authentication failed")))
	assert.Equal(t, "Skill extraction failed", publicMessage(&skills.ExtractionError{Cause: errors.New("401 from upstream")}))
	assert.Equal(t, "LLM API key not configured", publicMessage(&skills.ExtractionError{Cause: llm.ErrMissingAPIKey}))
	assert.Equal(t, "Job not found", publicMessage(&ErrNotFound{Resource: "Job"}))
	assert.Equal(t,
		"Error processing 'b.pdf': Internal server error",
		publicMessage(&ErrFileFailed{Filename: "b.pdf", Err: errors.New("disk full")}),
	)
}

func TestPublicMessage_ValidatorErrors(t *testing.T) {
	err := validator.New().Struct(CreateJobRequest{Description: "x"})
	require.Error(t, err)

	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
	assert.Equal(t, "validation error: Title - required", publicMessage(err))
}
