package utils

import (
	"encoding/json"
	"net/http"
	"time"

	"restaurant-pos/internal/apperr"
)

// Status is the coarse outcome classification carried by every response.
type Status string

const (
	StatusOK          Status = "ok"
	StatusNotFound    Status = "not_found"
	StatusBadRequest  Status = "bad_request"
	StatusServerError Status = "server_error"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Status    Status      `json:"status"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Status:    StatusOK,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

func ErrorResponse(status Status, message, error string) APIResponse {
	return APIResponse{
		Success:   false,
		Status:    status,
		Message:   message,
		Error:     error,
		Timestamp: time.Now().UTC(),
	}
}

// Classify maps an error kind to the response status and HTTP code.
func Classify(err error) (Status, int) {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return StatusNotFound, http.StatusNotFound
	case apperr.KindConflict:
		return StatusBadRequest, http.StatusConflict
	case apperr.KindValidation:
		return StatusBadRequest, http.StatusBadRequest
	default:
		return StatusServerError, http.StatusInternalServerError
	}
}

// FromError builds the failure envelope for err. Internal errors never expose their cause.
func FromError(message string, err error) (APIResponse, int) {
	status, code := Classify(err)
	detail := err.Error()
	if status == StatusServerError {
		detail = "internal error"
	}
	return ErrorResponse(status, message, detail), code
}

func WriteJSON(w http.ResponseWriter, code int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
