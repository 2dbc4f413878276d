package account

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/examprep/internal/db"
	"github.com/mind-engage/examprep/internal/rbac"
	syncx "github.com/mind-engage/examprep/internal/sync"
	"github.com/mind-engage/examprep/internal/validate"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", t.Name())
	dbh, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })
	s := NewStore(dbh, syncx.NewEventRepo(dbh), zap.NewNop())
	s.cost = bcrypt.MinCost
	return s
}

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestSignUpDefaultsDisplayName(t *testing.T) {
	s := newTestStore(t)
	a, err := s.SignUp(context.Background(), SignUpInput{Email: " Ravi@Example.com ", Password: "secret1", Role: "student"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if a.Email != "ravi@example.com" || a.DisplayName != "ravi" || a.Role != rbac.RoleStudent {
		t.Errorf("account = %+v", a)
	}
}

func TestSecondAdminRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.SignUp(ctx, SignUpInput{Email: "root@example.com", Password: "secret1", Role: "admin"}); err != nil {
		t.Fatalf("first admin: %v", err)
	}
	accounts, roles := countRows(t, s, "accounts"), countRows(t, s, "user_roles")

	_, err := s.SignUp(ctx, SignUpInput{Email: "other@example.com", Password: "secret1", Role: "admin"})
	if !errors.Is(err, ErrAdminExists) {
		t.Fatalf("second admin err = %v, want ErrAdminExists", err)
	}
	if got := countRows(t, s, "accounts"); got != accounts {
		t.Errorf("accounts = %d, want %d", got, accounts)
	}
	if got := countRows(t, s, "user_roles"); got != roles {
		t.Errorf("user_roles = %d, want %d", got, roles)
	}
}

func TestAdminIndexClosesPrecheckRace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.SignUp(ctx, SignUpInput{Email: "root@example.com", Password: "secret1", Role: "admin"}); err != nil {
		t.Fatalf("first admin: %v", err)
	}
	// simulate a signup that passed the pre-check before the first admin committed
	if _, err := s.db.Exec(`INSERT INTO accounts (id,email,display_name,password_hash,created_at) VALUES ('late','late@example.com','late','x',1)`); err != nil {
		t.Fatal(err)
	}
	_, err := s.db.Exec(`INSERT INTO user_roles (id,user_id,role,created_at) VALUES ('r-late','late','admin',1)`)
	if !db.IsUniqueViolation(err) {
		t.Fatalf("err = %v, want unique violation", err)
	}
}

func TestDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	in := SignUpInput{Email: "dup@example.com", Password: "secret1", Role: "student"}
	if _, err := s.SignUp(ctx, in); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SignUp(ctx, in); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
	if got := countRows(t, s, "user_roles"); got != 1 {
		t.Errorf("user_roles = %d, want 1", got)
	}
}

func TestSignUpValidation(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SignUp(context.Background(), SignUpInput{Email: "not-an-email", Password: "123", Role: "teacher"})
	var ve *validate.Error
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want validation error", err)
	}
	for _, f := range []string{"email", "password", "role"} {
		if ve.Fields[f] == "" {
			t.Errorf("missing error for %s: %v", f, ve.Fields)
		}
	}
	if got := countRows(t, s, "accounts"); got != 0 {
		t.Errorf("accounts = %d, want 0", got)
	}
}

func TestAuthenticate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created, err := s.SignUp(ctx, SignUpInput{Email: "kim@example.com", Password: "hunter22", DisplayName: "Kim", Role: "student"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Authenticate(ctx, "KIM@example.com", "hunter22")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != created.ID || got.Role != rbac.RoleStudent {
		t.Errorf("got %+v", got)
	}
	if _, err := s.Authenticate(ctx, "kim@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v", err)
	}
	if _, err := s.Authenticate(ctx, "nobody@example.com", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email err = %v", err)
	}
}

func TestGetIsSelfOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, err := s.SignUp(ctx, SignUpInput{Email: "lee@example.com", Password: "secret1", Role: "student"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, rbac.Viewer{ID: a.ID, Role: a.Role}, a.ID); err != nil {
		t.Errorf("self read: %v", err)
	}
	if _, err := s.Get(ctx, rbac.Viewer{ID: "someone-else", Role: rbac.RoleAdmin}, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign read err = %v, want ErrNotFound", err)
	}
}

func TestChangePassword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, err := s.SignUp(ctx, SignUpInput{Email: "mo@example.com", Password: "secret1", Role: "student"})
	if err != nil {
		t.Fatal(err)
	}
	v := rbac.Viewer{ID: a.ID, Role: a.Role}
	if err := s.ChangePassword(ctx, v, "wrong", "newsecret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong old password err = %v", err)
	}
	var ve *validate.Error
	if err := s.ChangePassword(ctx, v, "secret1", "123"); !errors.As(err, &ve) {
		t.Errorf("short password err = %v", err)
	}
	if err := s.ChangePassword(ctx, v, "secret1", "newsecret"); err != nil {
		t.Fatalf("change: %v", err)
	}
	if _, err := s.Authenticate(ctx, "mo@example.com", "newsecret"); err != nil {
		t.Errorf("login with new password: %v", err)
	}
	if err := s.ChangePassword(ctx, rbac.Viewer{}, "x", "newsecret"); !errors.Is(err, rbac.ErrUnauthenticated) {
		t.Errorf("anonymous err = %v", err)
	}
}
