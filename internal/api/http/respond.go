package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/mind-engage/examprep/internal/account"
	"github.com/mind-engage/examprep/internal/exam"
	"github.com/mind-engage/examprep/internal/rbac"
	"github.com/mind-engage/examprep/internal/session"
	"github.com/mind-engage/examprep/internal/validate"
)

const maxBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a JSON body into dst. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return false
	}
	return true
}

// writeError maps domain errors onto status codes. Anything unrecognised is
// logged and reported as a generic 500.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var ve *validate.Error
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ve)
	case errors.Is(err, exam.ErrExamNotFound),
		errors.Is(err, exam.ErrAttemptNotFound),
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrUnknownQuestion),
		errors.Is(err, account.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, exam.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, rbac.ErrUnauthenticated),
		errors.Is(err, account.ErrInvalidCredentials):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, account.ErrAdminExists),
		errors.Is(err, account.ErrEmailTaken),
		errors.Is(err, session.ErrSubmissionInFlight),
		errors.Is(err, session.ErrNotInProgress),
		errors.Is(err, session.ErrTimeUp),
		errors.Is(err, exam.ErrExamChanged):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, exam.ErrNoQuestions),
		errors.Is(err, session.ErrInvalidOption):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		log.Error("request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
