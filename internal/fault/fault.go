package fault

import "net/http"

type ErrorCode string

const (
	CodeValidation  ErrorCode = "VALIDATION_ERROR"
	CodeConflict    ErrorCode = "CONFLICT"
	CodeLookupMiss  ErrorCode = "LOOKUP_MISS"
	CodeNotFound    ErrorCode = "NOT_FOUND"
	CodePersistence ErrorCode = "PERSISTENCE_ERROR"
)

type Error struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	StatusCode int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code ErrorCode, message string, status int, details map[string]any) *Error {
	return &Error{Code: code, Message: message, StatusCode: status, Details: details}
}

func Validation(message string) *Error {
	return newError(CodeValidation, message, http.StatusBadRequest, nil)
}

func Conflict(message string, details map[string]any) *Error {
	return newError(CodeConflict, message, http.StatusConflict, details)
}

func LookupMiss(message string, details map[string]any) *Error {
	return newError(CodeLookupMiss, message, http.StatusUnprocessableEntity, details)
}

func NotFound(message string) *Error {
	return newError(CodeNotFound, message, http.StatusNotFound, nil)
}

func Persistence(message string, err error) *Error {
	details := map[string]any{}
	if err != nil {
		details["cause"] = err.Error()
	}
	return newError(CodePersistence, message, http.StatusBadGateway, details)
}
