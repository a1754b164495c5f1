package http

import (
	"encoding/json"
	"net/http"
)

// EmitResponse acknowledges an event handed to the connection registry.
type EmitResponse struct {
	Status     string `json:"status"`
	Room       string `json:"room"`
	Event      string `json:"event"`
	Recipients int    `json:"recipients"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The header has already been sent; an encode failure cannot be reported.
	_ = json.NewEncoder(w).Encode(v)
}
