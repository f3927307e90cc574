package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeNotFound       = "ELEMENT_NOT_FOUND"
	ErrCodeNoResults      = "NO_RESULTS"
	ErrCodeIntercepted    = "CLICK_INTERCEPTED"
	ErrCodeStaleReference = "STALE_REFERENCE"
	ErrCodeTimeout        = "STEP_TIMEOUT"
	ErrCodeSession        = "SESSION_FAILED"
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeJobNotFound    = "JOB_NOT_FOUND"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CatalogError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type CatalogError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *CatalogError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}

// NewCatalogError creates a new CatalogError.
func NewCatalogError(code, message string, err error) *CatalogError {
	return &CatalogError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *CatalogError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// CodeOf returns the code of the outermost CatalogError in err's chain,
// or "" when there is none.
func CodeOf(err error) string {
	var ce *CatalogError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsSoft reports whether err is an expected page-level outcome: an element
// that never appeared, an obstructed click, or a reference that went stale.
// Soft errors abandon the current step and never the whole run.
func IsSoft(err error) bool {
	switch CodeOf(err) {
	case ErrCodeNotFound, ErrCodeNoResults, ErrCodeIntercepted, ErrCodeStaleReference, ErrCodeTimeout:
		return true
	}
	return false
}

// IsFatal reports whether err means the automation session can no longer
// make progress.
func IsFatal(err error) bool {
	return CodeOf(err) == ErrCodeSession
}

// DetailOf converts any error to an ErrorDetail. Errors without a
// CatalogError in their chain report ErrCodeInternal.
func DetailOf(err error) *ErrorDetail {
	var ce *CatalogError
	if errors.As(err, &ce) {
		return ce.ToDetail()
	}
	return &ErrorDetail{Code: ErrCodeInternal, Message: err.Error()}
}
