package rbac

import (
	"context"
	"strings"
)

type Checker struct {
	RolePermissions map[string][]string
}

func NewChecker(rp map[string][]string) *Checker {
	if rp == nil {
		rp = RolePermissions
	}
	return &Checker{RolePermissions: rp}
}

func (c *Checker) Has(role, perm string) bool {
	perms, ok := c.RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == "*" || matchPerm(p, perm) {
			return true
		}
	}
	return false
}

func (c *Checker) Any(role string, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

func matchPerm(pattern, perm string) bool {
	if pattern == "*" || pattern == perm {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(perm, strings.TrimSuffix(pattern, "*"))
	}
	return false
}

// ---- viewer in context ----

// Viewer is the caller identity every store read and write is evaluated
// against. The zero Viewer is anonymous.
type Viewer struct {
	ID   string
	Role string
}

func (v Viewer) IsAdmin() bool       { return v.Role == RoleAdmin }
func (v Viewer) Authenticated() bool { return v.ID != "" }

type ctxKey struct{}

var ctxKeyViewer = ctxKey{}

func WithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, ctxKeyViewer, v)
}

func ViewerFromContext(ctx context.Context) Viewer {
	if v, ok := ctx.Value(ctxKeyViewer).(Viewer); ok {
		return v
	}
	return Viewer{}
}

func RoleFromContext(ctx context.Context) string {
	return ViewerFromContext(ctx).Role
}
