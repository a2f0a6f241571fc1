package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Failure taxonomy. Per-file failures (ErrUnsupportedFormat, ErrExtraction)
// are contained by the orchestrator; batch- and valuation-level failures propagate
// to the caller. ErrRateLimited is absorbed by the gateway's retry/backoff and only
// surfaces once retries are exhausted.
var (
	ErrValidation        = errors.New("validation failed")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrExtraction        = errors.New("extraction failed")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrNoData            = errors.New("no data available")
	ErrNotFound          = errors.New("resource not found")
	ErrPipeline          = errors.New("pipeline failure")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
