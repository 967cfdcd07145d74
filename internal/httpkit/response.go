// Package httpkit holds small HTTP helpers shared by all handlers.
package httpkit

import (
	"encoding/json"
	"net/http"

	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/pkg/errors"
)

// ErrorEnvelope is the uniform error response shape.
type ErrorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details,omitempty"`
	} `json:"error"`
}

// DecodeJSON decodes a request body, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteErr writes the error envelope.
func WriteErr(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	var env ErrorEnvelope
	env.Error.Code = code
	env.Error.Message = msg
	env.Error.Details = details
	WriteJSON(w, status, env)
}

// WriteAppErr maps a coded error onto the envelope.
func WriteAppErr(w http.ResponseWriter, err error) {
	var e *errors.Error
	if errors.As(err, &e) {
		details := e.Fields
		WriteErr(w, e.HTTPStatus(), string(e.Code), e.Message, details)
		return
	}
	WriteErr(w, 500, string(errors.CodeInternal), "internal error", nil)
}
