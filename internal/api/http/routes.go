package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/mind-engage/examprep/internal/account"
	authmw "github.com/mind-engage/examprep/internal/auth/middleware"
	"github.com/mind-engage/examprep/internal/exam"
	"github.com/mind-engage/examprep/internal/logging"
	"github.com/mind-engage/examprep/internal/rbac"
	"github.com/mind-engage/examprep/internal/session"
	syncx "github.com/mind-engage/examprep/internal/sync"
)

type Deps struct {
	Auth     *authmw.AuthService
	Accounts *account.Store
	Exams    exam.Store
	Sessions *session.Manager
	Events   *syncx.EventRepo
	Log      *zap.Logger

	EnableSignup bool
	CORSOrigins  []string
	// Ready backs /readyz; nil means always ready.
	Ready func(ctx context.Context) error
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logging.Middleware(d.Log), middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/signup", SignupHandler(d.Auth, d.Accounts, d.EnableSignup, d.Log))
	r.Post("/auth/login", authmw.LoginHandler(d.Auth, d.Accounts, d.Log))
	r.Get("/auth/admin-exists", AdminExistsHandler(d.Accounts, d.Log))

	// Protected API (JWT → account and role from DB → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Auth), authmw.AttachSession(d.Accounts, d.Log))

		// any assigned role
		pr.Group(func(ar chi.Router) {
			ar.Use(rbac.RequireAny("dashboard:student", "dashboard:admin"))
			ar.Get("/me", MeHandler(d.Accounts, d.Log))
			ar.Post("/me/password", ChangePasswordHandler(d.Accounts, d.Log))
			ar.Get("/categories", ListCategoriesHandler())
		})

		pr.With(rbac.Require("exam:view")).Get("/exams", ListExamsHandler(d.Exams, d.Log))
		pr.With(rbac.Require("exam:create")).Post("/exams", CreateExamHandler(d.Exams, d.Log))
		pr.With(rbac.Require("exam:view")).Get("/exams/{examID}", GetExamHandler(d.Exams, d.Log))
		pr.With(rbac.Require("exam:view")).Get("/exams/{examID}/questions", ListQuestionsHandler(d.Exams, d.Log))
		pr.With(rbac.Require("exam:update")).Put("/exams/{examID}", UpdateExamHandler(d.Exams, d.Log))
		pr.With(rbac.Require("exam:update")).Patch("/exams/{examID}/active", SetExamActiveHandler(d.Exams, d.Log))
		pr.With(rbac.Require("exam:delete")).Delete("/exams/{examID}", DeleteExamHandler(d.Exams, d.Log))
		pr.With(rbac.Require("exam:export")).Get("/exams/{examID}/export", ExportExamHandler(d.Exams, d.Log))

		pr.With(rbac.Require("session:start")).Post("/sessions", StartSessionHandler(d.Sessions, d.Log))
		pr.Route("/sessions/{sessionID}", func(sr chi.Router) {
			sr.Use(rbac.Require("session:take"))
			sr.Get("/", GetSessionHandler(d.Sessions, d.Log))
			sr.Delete("/", AbandonSessionHandler(d.Sessions, d.Log))
			sr.Put("/answers/{questionID}", SelectAnswerHandler(d.Sessions, d.Log))
			sr.Post("/goto", GoToHandler(d.Sessions, d.Log))
			sr.Post("/submit", SubmitSessionHandler(d.Sessions, d.Log))
		})

		pr.With(rbac.Require("attempt:view-own")).Get("/attempts", ListAttemptsHandler(d.Exams, d.Log))
		pr.With(rbac.Require("attempt:view-own")).Get("/attempts/{attemptID}", GetAttemptHandler(d.Exams, d.Log))

		pr.With(rbac.Require("dashboard:student")).Get("/dashboard", StudentDashboardHandler(d.Exams, d.Log))
		pr.With(rbac.Require("dashboard:admin")).Get("/admin/dashboard", AdminDashboardHandler(d.Exams, d.Accounts, d.Log))
		pr.With(rbac.Require("dashboard:admin")).Get("/admin/events", ListEventsHandler(d.Events, d.Log))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	return r
}
