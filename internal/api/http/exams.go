package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mind-engage/examprep/internal/exam"
	"github.com/mind-engage/examprep/internal/rbac"
)

type categoryInfo struct {
	Key             exam.Category `json:"key"`
	DefaultDuration int           `json:"default_duration_minutes"`
}

// GET /categories
func ListCategoriesHandler() http.HandlerFunc {
	out := make([]categoryInfo, 0, len(exam.Categories))
	for _, c := range exam.Categories {
		out = append(out, categoryInfo{Key: c, DefaultDuration: c.DefaultDuration()})
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /exams?q=&category=&include_inactive=1&limit=50&offset=0
func ListExamsHandler(store exam.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		list, err := store.ListExams(r.Context(), rbac.ViewerFromContext(r.Context()), exam.ListOpts{
			Q:               strings.TrimSpace(q.Get("q")),
			Category:        exam.Category(strings.TrimSpace(q.Get("category"))),
			IncludeInactive: q.Get("include_inactive") == "1" || q.Get("include_inactive") == "true",
			Limit:           parseIntDefault(q.Get("limit"), 50),
			Offset:          parseIntDefault(q.Get("offset"), 0),
		})
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /exams/{examID}. Correct options are withheld from non-admins.
func GetExamHandler(store exam.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := rbac.ViewerFromContext(r.Context())
		e, err := store.GetExam(r.Context(), v, chi.URLParam(r, "examID"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		if !rbac.CanSeeAnswerKey(v) {
			e = e.WithoutAnswerKey()
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// GET /exams/{examID}/questions in order. Keys are withheld from non-admins.
func ListQuestionsHandler(store exam.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := rbac.ViewerFromContext(r.Context())
		qs, err := store.ListQuestions(r.Context(), v, chi.URLParam(r, "examID"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		if !rbac.CanSeeAnswerKey(v) {
			qs = exam.Exam{Questions: qs}.WithoutAnswerKey().Questions
		}
		writeJSON(w, http.StatusOK, qs)
	}
}

// POST /exams
func CreateExamHandler(store exam.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in exam.ExamInput
		if !decodeJSON(w, r, &in) {
			return
		}
		e, err := store.CreateExam(r.Context(), rbac.ViewerFromContext(r.Context()), in)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

// PUT /exams/{examID}
func UpdateExamHandler(store exam.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in exam.ExamInput
		if !decodeJSON(w, r, &in) {
			return
		}
		e, err := store.UpdateExam(r.Context(), rbac.ViewerFromContext(r.Context()), chi.URLParam(r, "examID"), in)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// PATCH /exams/{examID}/active  { "is_active": false }
func SetExamActiveHandler(store exam.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IsActive *bool `json:"is_active"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.IsActive == nil {
			http.Error(w, "is_active required", http.StatusBadRequest)
			return
		}
		e, err := store.SetExamActive(r.Context(), rbac.ViewerFromContext(r.Context()), chi.URLParam(r, "examID"), *req.IsActive)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// DELETE /exams/{examID}
func DeleteExamHandler(store exam.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteExam(r.Context(), rbac.ViewerFromContext(r.Context()), chi.URLParam(r, "examID")); err != nil {
			writeError(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /exams/{examID}/export returns the exam with its answer key as a
// downloadable JSON document that POST /exams accepts back.
func ExportExamHandler(store exam.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := rbac.ViewerFromContext(r.Context())
		if !rbac.CanSeeAnswerKey(v) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		e, err := store.GetExam(r.Context(), v, chi.URLParam(r, "examID"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="exam-`+e.ID+`.json"`)
		writeJSON(w, http.StatusOK, exam.ToInput(e))
	}
}
