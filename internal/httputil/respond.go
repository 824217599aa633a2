package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dickie-roper/rolling-shutter/internal/scene"
)

// WriteJSON writes v as the JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// WriteError writes err as an ErrorBody. A *scene.ConfigError anywhere in
// the chain fills in Field.
func WriteError(w http.ResponseWriter, status int, err error) {
	body := ErrorBody{Error: err.Error()}
	var ce *scene.ConfigError
	if errors.As(err, &ce) {
		body.Field = ce.Field
	}
	_ = WriteJSON(w, status, body)
}

// WriteMessage writes a plain error message as an ErrorBody.
func WriteMessage(w http.ResponseWriter, status int, msg string) {
	_ = WriteJSON(w, status, ErrorBody{Error: msg})
}
