package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code for each error type
type ErrorCode string

const (
	// General errors
	ErrCodeInternal   ErrorCode = "INTERNAL_ERROR"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrCodeBadRequest ErrorCode = "BAD_REQUEST"
	ErrCodeConflict   ErrorCode = "CONFLICT"

	// Parsing errors
	ErrCodeUnsupportedDocument ErrorCode = "UNSUPPORTED_DOCUMENT"
	ErrCodeJobAlreadyActive    ErrorCode = "JOB_ALREADY_ACTIVE"
	ErrCodeMissingCredential   ErrorCode = "MISSING_CREDENTIAL"

	// Extraction service errors (chunk-local, recoverable)
	ErrCodeExtractionFailed   ErrorCode = "EXTRACTION_FAILED"
	ErrCodeExtractionResponse ErrorCode = "EXTRACTION_INVALID_RESPONSE"

	// Review workflow errors
	ErrCodeStatementLocked     ErrorCode = "STATEMENT_LOCKED"
	ErrCodeInvalidReviewStatus ErrorCode = "INVALID_REVIEW_STATUS"

	// Database errors
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	StatusCode int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails adds additional context to the error
func (e *AppError) WithDetails(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an existing error with AppError context
func Wrap(err error, code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// Common error constructors

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message, http.StatusInternalServerError)
}

func InternalWrap(err error, message string) *AppError {
	return Wrap(err, ErrCodeInternal, message, http.StatusInternalServerError)
}

func NotFound(message string) *AppError {
	return New(ErrCodeNotFound, message, http.StatusNotFound)
}

func BadRequest(message string) *AppError {
	return New(ErrCodeBadRequest, message, http.StatusBadRequest)
}

func Conflict(message string) *AppError {
	return New(ErrCodeConflict, message, http.StatusConflict)
}

// Parsing errors

func UnsupportedDocument(docType string) *AppError {
	return New(ErrCodeUnsupportedDocument,
		fmt.Sprintf("document type %q cannot be parsed for financial statements", docType),
		http.StatusBadRequest)
}

func JobAlreadyActive(message string) *AppError {
	return New(ErrCodeJobAlreadyActive, message, http.StatusBadRequest)
}

func MissingCredential(name string) *AppError {
	return New(ErrCodeMissingCredential,
		fmt.Sprintf("%s is not configured", name),
		http.StatusBadRequest)
}

// Extraction errors

func ExtractionFailed(err error) *AppError {
	return Wrap(err, ErrCodeExtractionFailed, "extraction service call failed", http.StatusInternalServerError)
}

func ExtractionInvalidResponse(message string) *AppError {
	return New(ErrCodeExtractionResponse, message, http.StatusInternalServerError)
}

// Review workflow errors

func StatementLocked() *AppError {
	return New(ErrCodeStatementLocked,
		"statement is locked and cannot be modified",
		http.StatusBadRequest)
}

func InvalidReviewStatus(status string) *AppError {
	return New(ErrCodeInvalidReviewStatus,
		fmt.Sprintf("invalid review_status %q", status),
		http.StatusBadRequest)
}

// Database errors

func DatabaseError(err error) *AppError {
	return Wrap(err, ErrCodeDatabaseError, "database operation failed", http.StatusInternalServerError)
}

func RecordNotFound(resource string) *AppError {
	return New(ErrCodeNotFound,
		fmt.Sprintf("%s not found", resource),
		http.StatusNotFound)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// HasCode reports whether err carries the given error code
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Code == code
}

// IsExtractionError reports whether err is a chunk-local extraction
// failure that the job controller may recover from.
func IsExtractionError(err error) bool {
	return HasCode(err, ErrCodeExtractionFailed) || HasCode(err, ErrCodeExtractionResponse)
}
