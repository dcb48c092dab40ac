// Package errors provides the standardized error taxonomy of the NLU engine.
package errors

import "fmt"

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeDatasetFormat  ErrorCode = "DATASET_FORMAT_ERROR"
	ErrCodeEntityFormat   ErrorCode = "ENTITY_FORMAT_ERROR"
	ErrCodeInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrCodeNotTrained     ErrorCode = "NOT_TRAINED"
	ErrCodeIntentNotFound ErrorCode = "INTENT_NOT_FOUND"
	ErrCodePersisting     ErrorCode = "PERSISTING_ERROR"
	ErrCodeLoading        ErrorCode = "LOADING_ERROR"
)

// EngineError is a structured engine error. Two EngineErrors compare equal
// under errors.Is when their codes match, so the exported sentinels below can
// be used as targets regardless of the message carried by the actual error.
type EngineError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e *EngineError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrDatasetFormat  = &EngineError{Code: ErrCodeDatasetFormat, Message: "malformed dataset"}
	ErrEntityFormat   = &EngineError{Code: ErrCodeEntityFormat, Message: "malformed entity definition"}
	ErrInvalidInput   = &EngineError{Code: ErrCodeInvalidInput, Message: "invalid input"}
	ErrNotTrained     = &EngineError{Code: ErrCodeNotTrained, Message: "engine must be fitted first"}
	ErrIntentNotFound = &EngineError{Code: ErrCodeIntentNotFound, Message: "unknown intent"}
	ErrPersisting     = &EngineError{Code: ErrCodePersisting, Message: "persisting failed"}
	ErrLoading        = &EngineError{Code: ErrCodeLoading, Message: "loading failed"}
)

// NewDatasetFormatError creates a non-retryable dataset validation error.
func NewDatasetFormatError(details string) *EngineError {
	return &EngineError{
		Code:    ErrCodeDatasetFormat,
		Message: "malformed dataset",
		Details: details,
	}
}

// NewEntityFormatError creates a non-retryable entity definition error.
func NewEntityFormatError(details string) *EngineError {
	return &EngineError{
		Code:    ErrCodeEntityFormat,
		Message: "malformed entity definition",
		Details: details,
	}
}

// NewInvalidInputError creates an error for input that is not decoded text.
func NewInvalidInputError(details string) *EngineError {
	return &EngineError{
		Code:    ErrCodeInvalidInput,
		Message: "expected decoded text input",
		Details: details,
	}
}

// NewNotTrainedError creates an error for inference before fit.
func NewNotTrainedError(operation string) *EngineError {
	return &EngineError{
		Code:    ErrCodeNotTrained,
		Message: "engine must be fitted first",
		Details: fmt.Sprintf("operation: %s", operation),
	}
}

// NewIntentNotFoundError creates an error for an intent absent from the
// trained intent set.
func NewIntentNotFoundError(intent string) *EngineError {
	return &EngineError{
		Code:    ErrCodeIntentNotFound,
		Message: "unknown intent",
		Details: fmt.Sprintf("intent: %s", intent),
	}
}

// NewPersistingError wraps a failure while writing a trained model.
func NewPersistingError(err error) *EngineError {
	return &EngineError{
		Code:    ErrCodePersisting,
		Message: "persisting failed",
		Details: err.Error(),
	}
}

// NewLoadingError wraps a failure while reading a persisted model.
func NewLoadingError(details string) *EngineError {
	return &EngineError{
		Code:    ErrCodeLoading,
		Message: "loading failed",
		Details: details,
	}
}
