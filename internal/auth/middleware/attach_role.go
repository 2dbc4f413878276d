package auth

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mind-engage/examprep/internal/account"
	"github.com/mind-engage/examprep/internal/rbac"
)

// Resolver loads the account behind a token subject.
type Resolver interface {
	Resolve(ctx context.Context, id string) (account.Account, error)
}

// AttachSession resolves the token subject to an account and its role from
// the database. Tokens for deleted accounts are refused, and so are accounts
// holding no assignable role.
func AttachSession(accounts Resolver, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			acct, err := accounts.Resolve(ctx, SubjectFromContext(ctx))
			switch {
			case errors.Is(err, account.ErrNotFound):
				http.Error(w, "unknown account", http.StatusUnauthorized)
				return
			case err != nil:
				log.Error("resolve session", zap.Error(err))
				http.Error(w, "session lookup failed", http.StatusInternalServerError)
				return
			case !rbac.ValidRole(acct.Role):
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			ctx = WithSession(ctx, Session{
				UserID:      acct.ID,
				Email:       acct.Email,
				DisplayName: acct.DisplayName,
				Role:        acct.Role,
			})
			ctx = rbac.WithViewer(ctx, rbac.Viewer{ID: acct.ID, Role: acct.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
