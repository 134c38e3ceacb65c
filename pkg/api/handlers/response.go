// Package handlers provides the HTTP handlers for the FileFlux API.
package handlers

import (
	"encoding/json"
	"net/http"
)

// errorBody is the wire shape of every error response. Message carries a
// human-readable elaboration when the short error alone is not enough.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, errorBody{Error: message})
}

// WriteErrorMessage writes a JSON error response with both the short
// error and a detail message.
func WriteErrorMessage(w http.ResponseWriter, status int, errMsg, message string) {
	WriteJSON(w, status, errorBody{Error: errMsg, Message: message})
}

// BadRequest writes a 400 error response.
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

// NotFound writes a 404 error response.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}

// InternalServerError writes a 500 error response.
func InternalServerError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}
