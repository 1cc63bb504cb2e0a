package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/whetstoneresearch/doppler-sub010/internal/auction"
)

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// errorResponse is the standard error response format.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a standard error response.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{Error: errorCode, Message: message})
}

// ParseJSON decodes the request body as JSON into v, rejecting unknown
// fields.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("request body must be JSON with Content-Type: application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("request body must be valid JSON")
	}
	return nil
}

// writeEngineError maps engine error classes to HTTP statuses. NotFound is
// special-cased inside the state class.
func writeEngineError(w http.ResponseWriter, err error) {
	var ae *auction.Error
	if !errors.As(err, &ae) {
		WriteError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
		return
	}

	status := http.StatusInternalServerError
	switch ae.Class {
	case auction.ClassValidation, auction.ClassConfiguration:
		status = http.StatusBadRequest
	case auction.ClassState:
		status = http.StatusConflict
		if errors.Is(err, auction.ErrNotFound) {
			status = http.StatusNotFound
		}
	case auction.ClassAuthorization:
		status = http.StatusForbidden
	case auction.ClassInvariant:
		status = http.StatusInternalServerError
	}
	WriteError(w, status, ae.Code, err.Error())
}
