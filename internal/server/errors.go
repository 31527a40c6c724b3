// Package server provides the HTTP REST API for the resume screener.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/resume-screener/internal/ingestion"
	"github.com/jonathan/resume-screener/internal/skills"
)

// ErrUsernameTaken indicates the username is already registered
type ErrUsernameTaken struct {
	Username string
}

func (e *ErrUsernameTaken) Error() string {
	return "Username already exists"
}

// ErrInvalidCredentials indicates invalid login credentials
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "Invalid username or password"
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrNotFound indicates the requested resource does not exist
type ErrNotFound struct {
	Resource string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// ErrForbidden indicates the resource belongs to another user
type ErrForbidden struct {
	Action   string
	Resource string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("Not authorized to %s this %s", e.Action, e.Resource)
}

// ErrFileFailed names the file a batch upload stopped at.
type ErrFileFailed struct {
	Filename string
	Err      error
}

func (e *ErrFileFailed) Error() string {
	return fmt.Sprintf("Error processing '%s': %v", e.Filename, e.Err)
}

func (e *ErrFileFailed) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		usernameTaken   *ErrUsernameTaken
		invalidCreds    *ErrInvalidCredentials
		validationErr   *ErrValidation
		notFound        *ErrNotFound
		forbidden       *ErrForbidden
		unsupportedType *ingestion.UnsupportedTypeError
		readErr         *ingestion.ReadError
		extractionErr   *skills.ExtractionError
		fieldErrs       validator.ValidationErrors
	)

	switch {
	case errors.As(err, &invalidCreds):
		return http.StatusUnauthorized
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &usernameTaken),
		errors.As(err, &validationErr),
		errors.As(err, &fieldErrs),
		errors.As(err, &unsupportedType),
		errors.As(err, &readErr):
		return http.StatusBadRequest
	case errors.As(err, &extractionErr):
		if extractionErr.MissingCredential() {
			return http.StatusInternalServerError
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage returns the text shown to clients. Unclassified errors are not echoed.
func publicMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return extractValidationErrors(fieldErrs)
	}

	var fileErr *ErrFileFailed
	if errors.As(err, &fileErr) {
		return fmt.Sprintf("Error processing '%s': %s", fileErr.Filename, publicMessage(fileErr.Err))
	}

	var extractionErr *skills.ExtractionError
	if errors.As(err, &extractionErr) {
		if extractionErr.MissingCredential() {
			return "LLM API key not configured"
		}
		return "Skill extraction failed"
	}

	if HTTPStatus(err) == http.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}

// extractValidationErrors formats the first failed field of a validator error.
func extractValidationErrors(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		ve := validationErrors[0]
		return fmt.Sprintf("validation error: %s - %s", ve.Field(), ve.Tag())
	}
	return "validation error: invalid request"
}
