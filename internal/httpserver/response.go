package httpserver

import (
	"encoding/json"
	"net/http"
	"strings"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusResponse is the failure shape the account routes share.
type statusResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type validationResponse struct {
	Errors any `json:"errors"`
}

// authFailed is the only body unauthenticated callers ever see.
var authFailed = statusResponse{
	Status:     "Bad request",
	Message:    "Authentication failed",
	StatusCode: http.StatusUnauthorized,
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeStatus(w http.ResponseWriter, status int, label, message string) {
	writeJSON(w, status, statusResponse{Status: label, Message: message, StatusCode: status})
}

func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, authFailed)
}

func writeMethodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
