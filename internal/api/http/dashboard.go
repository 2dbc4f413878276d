package http

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/mind-engage/examprep/internal/account"
	"github.com/mind-engage/examprep/internal/exam"
	"github.com/mind-engage/examprep/internal/rbac"
	syncx "github.com/mind-engage/examprep/internal/sync"
)

type studentDashboard struct {
	Exams          []exam.Exam    `json:"exams"`
	Summary        exam.Summary   `json:"summary"`
	RecentAttempts []exam.Attempt `json:"recent_attempts"`
}

// GET /dashboard
func StudentDashboardHandler(store exam.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		v := rbac.ViewerFromContext(ctx)
		exams, err := store.ListExams(ctx, v, exam.ListOpts{})
		if err != nil {
			writeError(w, log, err)
			return
		}
		sum, err := store.Summary(ctx, v)
		if err != nil {
			writeError(w, log, err)
			return
		}
		recent, err := store.ListAttempts(ctx, v, exam.AttemptListOpts{Limit: 5})
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, studentDashboard{Exams: exams, Summary: sum, RecentAttempts: recent})
	}
}

type adminDashboard struct {
	exam.Stats
	TotalStudents int `json:"total_students"`
}

// GET /admin/dashboard
func AdminDashboardHandler(store exam.Store, accounts *account.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := store.Stats(r.Context(), rbac.ViewerFromContext(r.Context()))
		if err != nil {
			writeError(w, log, err)
			return
		}
		n, err := accounts.CountStudents(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, adminDashboard{Stats: st, TotalStudents: n})
	}
}

// GET /admin/events?after=0&limit=100 pages through the audit log.
func ListEventsHandler(events *syncx.EventRepo, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var after int64
		if s := r.URL.Query().Get("after"); s != "" {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil || n < 0 {
				http.Error(w, "bad after", http.StatusBadRequest)
				return
			}
			after = n
		}
		list, err := events.Since(r.Context(), after, parseIntDefault(r.URL.Query().Get("limit"), 100))
		if err != nil {
			writeError(w, log, err)
			return
		}
		if list == nil {
			list = []syncx.Event{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}
