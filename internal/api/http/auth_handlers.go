package http

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mind-engage/examprep/internal/account"
	authmw "github.com/mind-engage/examprep/internal/auth/middleware"
	"github.com/mind-engage/examprep/internal/rbac"
)

// POST /auth/signup  { "email", "password", "display_name", "role" }
// Signs the new account in straight away.
func SignupHandler(authSvc *authmw.AuthService, accounts *account.Store, enabled bool, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !enabled {
			http.Error(w, "sign-up disabled", http.StatusForbidden)
			return
		}
		var in account.SignUpInput
		if !decodeJSON(w, r, &in) {
			return
		}
		acct, err := accounts.SignUp(r.Context(), in)
		if err != nil {
			writeError(w, log, err)
			return
		}
		out, err := authSvc.IssueFor(acct)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

// GET /auth/admin-exists lets the sign-up form hide the admin choice.
func AdminExistsHandler(accounts *account.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok, err := accounts.AdminExists(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"admin_exists": ok})
	}
}

// GET /me
func MeHandler(accounts *account.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := rbac.ViewerFromContext(r.Context())
		acct, err := accounts.Get(r.Context(), v, v.ID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, acct)
	}
}
