package common

import (
	"encoding/json"
	"net/http"
)

// APIResponse is the envelope for successful responses
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// RespondJSON writes data wrapped in the standard envelope
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

// RespondMessage writes a success envelope carrying only a message
func RespondMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, APIResponse{
		Success: status >= 200 && status < 300,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
