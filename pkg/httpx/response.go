package httpx

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type header and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteEnvelope writes the API's {code, message, data} body. The envelope
// code mirrors the HTTP status.
func WriteEnvelope(w http.ResponseWriter, status int, message string, data any) {
	body := map[string]any{
		"code":    status,
		"message": message,
	}
	if data != nil {
		body["data"] = data
	}
	WriteJSON(w, status, body)
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
// This is commonly required for sensitive responses like tokens.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
