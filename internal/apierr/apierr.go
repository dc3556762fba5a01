package apierr

import (
	"fmt"
	"net/http"
)

// Error codes returned in the error_code field
const (
	CodeInvalidData           = "INVALID_DATA"
	CodeInvalidType           = "INVALID_TYPE"
	CodeDoubleReport          = "DOUBLE_REPORT"
	CodeConfirmationDuplicate = "CONFIRMATION_DUPLICATE"
	CodeMeasureNotFound       = "MEASURE_NOT_FOUND"
	CodeMeasuresNotFound      = "MEASURES_NOT_FOUND"
	CodeAIProcessingError     = "AI_PROCESSING_ERROR"
	CodeProcessingError       = "PROCESSING_ERROR"
	CodeServerError           = "SERVER_ERROR"
	CodeNotFound              = "NOT_FOUND"
)

// Error is a failure with the HTTP status and body it should be reported as.
// Err is the underlying cause and is never sent to clients.
type Error struct {
	Status      int
	Code        string
	Description string
	Err         error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Description, e.Err)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code, description string, err error) *Error {
	return &Error{Status: status, Code: code, Description: description, Err: err}
}

func InvalidData(description string) *Error {
	return New(http.StatusBadRequest, CodeInvalidData, description, nil)
}

func Internal(code, description string, err error) *Error {
	return New(http.StatusInternalServerError, code, description, err)
}
