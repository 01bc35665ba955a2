package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/UkralStul/blog-service/internal/domain"
)

// ErrorMessage points at the offending part of a request.
type ErrorMessage struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// envelope is the body of every JSON response.
type envelope struct {
	Success       bool           `json:"success"`
	StatusCode    int            `json:"statusCode"`
	Message       string         `json:"message"`
	Meta          any            `json:"meta,omitempty"`
	Data          any            `json:"data,omitempty"`
	ErrorMessages []ErrorMessage `json:"errorMessages,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[http] failed to write response: %v", err)
	}
}

func respond(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, StatusCode: status, Message: message, Data: data})
}

func respondPage(w http.ResponseWriter, message string, data, meta any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, StatusCode: http.StatusOK, Message: message, Data: data, Meta: meta})
}

// validationError carries field level messages from request decoding.
type validationError struct {
	messages []ErrorMessage
}

func (e *validationError) Error() string { return "validation error" }

func statusOf(kind domain.Kind) int {
	switch kind {
	case domain.KindBadRequest:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err. Internal failures are logged and shown with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *validationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, envelope{
			StatusCode:    http.StatusBadRequest,
			Message:       "Validation Error",
			ErrorMessages: ve.messages,
		})
		return
	}

	status := statusOf(domain.KindOf(err))
	message := "Something went wrong"
	var de *domain.Error
	if status == http.StatusInternalServerError {
		log.Printf("[http] %s %s failed: %v", r.Method, r.URL.Path, err)
	} else if errors.As(err, &de) {
		message = de.Message
	}
	writeJSON(w, status, envelope{
		StatusCode:    status,
		Message:       message,
		ErrorMessages: []ErrorMessage{{Path: "", Message: message}},
	})
}
