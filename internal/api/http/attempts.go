package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mind-engage/examprep/internal/exam"
	"github.com/mind-engage/examprep/internal/rbac"
)

// GET /attempts?exam_id=...&limit=50&offset=0
// Always scoped to the caller; there is no cross-user listing.
func ListAttemptsHandler(store exam.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		list, err := store.ListAttempts(r.Context(), rbac.ViewerFromContext(r.Context()), exam.AttemptListOpts{
			ExamID: strings.TrimSpace(q.Get("exam_id")),
			Limit:  parseIntDefault(q.Get("limit"), 50),
			Offset: parseIntDefault(q.Get("offset"), 0),
		})
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /attempts/{attemptID}
func GetAttemptHandler(store exam.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := store.GetAttempt(r.Context(), rbac.ViewerFromContext(r.Context()), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}
