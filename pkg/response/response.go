package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"foh-order-service/internal/fault"
)

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
	})
}

// Degraded reports an operation that completed locally but could not
// be fully persisted. Callers must be able to tell it from Success.
func Degraded(w http.ResponseWriter, data any, message string) {
	JSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"degraded": true,
		"message":  message,
		"data":     data,
	})
}

func Error(w http.ResponseWriter, status int, code string, message string) {
	JSON(w, status, map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	})
}

// Fault maps a typed engine error onto the wire envelope; anything
// untyped becomes a 500.
func Fault(w http.ResponseWriter, err error) {
	var fe *fault.Error
	if errors.As(err, &fe) {
		payload := map[string]any{
			"success": false,
			"error":   string(fe.Code),
			"message": fe.Message,
		}
		if len(fe.Details) > 0 {
			payload["details"] = fe.Details
		}
		JSON(w, fe.StatusCode, payload)
		return
	}
	Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Unexpected error")
}
