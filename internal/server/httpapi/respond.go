package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/semekhin/fileward/internal/errs"
)

// mapping is the single taxonomy-to-status translation table. Handlers never
// pick status codes ad hoc; every typed failure goes through here.
var mapping = []struct {
	kind   error
	status int
	msg    string
}{
	{errs.ErrInvalidInput, http.StatusBadRequest, ""}, // validation text is user-facing
	{errs.ErrSecurityViolation, http.StatusBadRequest, "invalid request"},
	{errs.ErrUnauthorized, http.StatusUnauthorized, "invalid credentials"},
	{errs.ErrExpired, http.StatusUnauthorized, "refresh token expired, please login again"},
	{errs.ErrForbidden, http.StatusForbidden, "access denied"},
	{errs.ErrNotFound, http.StatusNotFound, "resource not found"},
	{errs.ErrAlreadyExists, http.StatusConflict, "username already exists"},
	{errs.ErrRateLimited, http.StatusTooManyRequests, "too many attempts, try again later"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func message(s string) map[string]string { return map[string]string{"message": s} }

// writeError maps a typed failure to its external status. Unexpected errors
// are logged and answered with a generic message; internal text never leaks.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	for _, m := range mapping {
		if errors.Is(err, m.kind) {
			msg := m.msg
			if msg == "" {
				msg = err.Error()
			}
			writeJSON(w, m.status, message(msg))
			return
		}
	}
	s.log.Error("internal error", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, message("an internal error occurred"))
}

// decodeJSON parses a request body, answering 400 on malformed input.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, message("malformed request body"))
		return false
	}
	return true
}
