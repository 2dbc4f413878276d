package http

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mind-engage/examprep/internal/account"
	"github.com/mind-engage/examprep/internal/rbac"
)

type changePasswordReq struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// POST /me/password
func ChangePasswordHandler(accounts *account.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changePasswordReq
		if !decodeJSON(w, r, &req) {
			return
		}
		err := accounts.ChangePassword(r.Context(), rbac.ViewerFromContext(r.Context()), req.OldPassword, req.NewPassword)
		if errors.Is(err, account.ErrInvalidCredentials) {
			http.Error(w, "incorrect old password", http.StatusForbidden)
			return
		}
		if err != nil {
			writeError(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
