package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mind-engage/examprep/internal/exam"
	"github.com/mind-engage/examprep/internal/rbac"
	"github.com/mind-engage/examprep/internal/session"
)

type sessionView struct {
	SessionID string `json:"session_id"`
	session.View
}

// POST /sessions  { "exam_id": "..." }
func StartSessionHandler(m *session.Manager, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ExamID string `json:"exam_id"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.ExamID == "" {
			http.Error(w, "exam_id required", http.StatusBadRequest)
			return
		}
		id, view, err := m.Start(r.Context(), rbac.ViewerFromContext(r.Context()), req.ExamID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, sessionView{SessionID: id, View: view})
	}
}

// withEngine resolves {sessionID} for the caller and runs fn on it.
func withEngine(m *session.Manager, log *zap.Logger, fn func(w http.ResponseWriter, r *http.Request, id string, eng *session.Engine)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		eng, err := m.Get(rbac.ViewerFromContext(r.Context()), id)
		if err != nil {
			writeError(w, log, err)
			return
		}
		fn(w, r, id, eng)
	}
}

// GET /sessions/{sessionID}
func GetSessionHandler(m *session.Manager, log *zap.Logger) http.HandlerFunc {
	return withEngine(m, log, func(w http.ResponseWriter, r *http.Request, id string, eng *session.Engine) {
		writeJSON(w, http.StatusOK, sessionView{SessionID: id, View: eng.Snapshot()})
	})
}

// PUT /sessions/{sessionID}/answers/{questionID}  { "option": "B" }
func SelectAnswerHandler(m *session.Manager, log *zap.Logger) http.HandlerFunc {
	return withEngine(m, log, func(w http.ResponseWriter, r *http.Request, id string, eng *session.Engine) {
		var req struct {
			Option exam.Option `json:"option"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := eng.Select(chi.URLParam(r, "questionID"), req.Option); err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionView{SessionID: id, View: eng.Snapshot()})
	})
}

// POST /sessions/{sessionID}/goto  { "index": 3 }
// Out-of-range indexes leave the position where it was.
func GoToHandler(m *session.Manager, log *zap.Logger) http.HandlerFunc {
	return withEngine(m, log, func(w http.ResponseWriter, r *http.Request, id string, eng *session.Engine) {
		var req struct {
			Index int `json:"index"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		eng.GoTo(req.Index)
		writeJSON(w, http.StatusOK, sessionView{SessionID: id, View: eng.Snapshot()})
	})
}

// POST /sessions/{sessionID}/submit
func SubmitSessionHandler(m *session.Manager, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID, err := m.Submit(r.Context(), rbac.ViewerFromContext(r.Context()), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"attempt_id": attemptID})
	}
}

// DELETE /sessions/{sessionID}
func AbandonSessionHandler(m *session.Manager, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := m.Abandon(rbac.ViewerFromContext(r.Context()), chi.URLParam(r, "sessionID")); err != nil {
			writeError(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
