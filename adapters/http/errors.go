package authhttp

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/open-rails/castingkit/core"
)

// errResp is the uniform failure envelope. Error always equals the HTTP status.
type errResp struct {
	Success bool   `json:"success"`
	Error   int    `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sendErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Success: false, Error: status, Message: msg})
}

// WriteAuthError is the only place an auth failure becomes a response.
// Errors that are not *core.AuthError are reported as a generic 500 so
// internal text never reaches the caller.
func WriteAuthError(w http.ResponseWriter, err error) {
	if ae, ok := core.AsAuthError(err); ok {
		sendErr(w, ae.Status, ae.Description)
		return
	}
	serverErr(w)
}

// writeStoreErr maps record store failures onto the envelope.
func writeStoreErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		notFound(w)
	case errors.Is(err, core.ErrConflict), errors.Is(err, core.ErrInvalid):
		unprocessable(w)
	default:
		serverErr(w)
	}
}

func notFound(w http.ResponseWriter) { sendErr(w, http.StatusNotFound, "resource not found") }
func unprocessable(w http.ResponseWriter) {
	sendErr(w, http.StatusUnprocessableEntity, "unprocessable")
}
func serverErr(w http.ResponseWriter) { sendErr(w, http.StatusInternalServerError, "server error") }
func methodNotAllowed(w http.ResponseWriter) {
	sendErr(w, http.StatusMethodNotAllowed, "method not allowed")
}
