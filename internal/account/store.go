package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/examprep/internal/db"
	"github.com/mind-engage/examprep/internal/rbac"
	syncx "github.com/mind-engage/examprep/internal/sync"
	"github.com/mind-engage/examprep/internal/validate"
)

const bcryptCost = 12

type Store struct {
	db     *sql.DB
	events *syncx.EventRepo
	log    *zap.Logger
	cost   int
}

func NewStore(dbh *sql.DB, events *syncx.EventRepo, log *zap.Logger) *Store {
	return &Store{db: dbh, events: events, log: log, cost: bcryptCost}
}

// SignUp creates the account and its single role. A second admin is refused
// by the pre-check and, under a concurrent race, by the single-admin unique
// index; either way nothing is written.
func (s *Store) SignUp(ctx context.Context, in SignUpInput) (Account, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	if err := validate.Struct(in); err != nil {
		return Account{}, err
	}

	if in.Role == rbac.RoleAdmin {
		exists, err := s.AdminExists(ctx)
		if err != nil {
			return Account{}, err
		}
		if exists {
			return Account{}, ErrAdminExists
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}

	a := Account{
		ID:          uuid.NewString(),
		Email:       in.Email,
		DisplayName: in.DisplayName,
		Role:        in.Role,
		CreatedAt:   time.Now().Unix(),
	}
	if a.DisplayName == "" {
		a.DisplayName = defaultDisplayName(a.Email)
	}

	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (id, email, display_name, password_hash, created_at) VALUES ($1,$2,$3,$4,$5)`,
			a.ID, a.Email, a.DisplayName, string(hash), a.CreatedAt); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrEmailTaken
			}
			return fmt.Errorf("insert account: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_roles (id, user_id, role, created_at) VALUES ($1,$2,$3,$4)`,
			uuid.NewString(), a.ID, a.Role, a.CreatedAt); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrAdminExists
			}
			return fmt.Errorf("insert role: %w", err)
		}
		return s.events.Append(ctx, tx, syncx.TypeAccountCreated, a.ID, map[string]string{"role": a.Role})
	})
	if err != nil {
		return Account{}, err
	}
	s.log.Info("account created", zap.String("account_id", a.ID), zap.String("role", a.Role))
	return a, nil
}

// Authenticate checks email and password and returns the account with its
// current role.
func (s *Store) Authenticate(ctx context.Context, email, password string) (Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var a Account
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, password_hash, created_at FROM accounts WHERE email=$1`, email).
		Scan(&a.ID, &a.Email, &a.DisplayName, &hash, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Account{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return Account{}, ErrInvalidCredentials
	}
	role, err := s.roleOf(ctx, a.ID)
	if err != nil {
		return Account{}, err
	}
	a.Role = role
	return a, nil
}

// ChangePassword replaces the viewer's own password after checking the old
// one.
func (s *Store) ChangePassword(ctx context.Context, v rbac.Viewer, oldPassword, newPassword string) error {
	if !v.Authenticated() {
		return rbac.ErrUnauthenticated
	}
	in := struct {
		NewPassword string `json:"new_password" validate:"required,min=6,max=72"`
	}{newPassword}
	if err := validate.Struct(in); err != nil {
		return err
	}
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT password_hash FROM accounts WHERE id=$1`, v.ID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}
	next, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE accounts SET password_hash=$1 WHERE id=$2`, string(next), v.ID); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.log.Info("password changed", zap.String("account_id", v.ID))
	return nil
}

// Get returns an account. Self-only: a viewer may read just its own row.
func (s *Store) Get(ctx context.Context, v rbac.Viewer, id string) (Account, error) {
	if !rbac.OwnsRow(v, id) {
		return Account{}, ErrNotFound
	}
	return s.lookup(ctx, id)
}

// Resolve loads identity and authoritative role for a token subject. It is
// the session resolver's read path and is not viewer-scoped.
func (s *Store) Resolve(ctx context.Context, id string) (Account, error) {
	return s.lookup(ctx, id)
}

func (s *Store) lookup(ctx context.Context, id string) (Account, error) {
	var a Account
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, created_at FROM accounts WHERE id=$1`, id).
		Scan(&a.ID, &a.Email, &a.DisplayName, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}
	role, err := s.roleOf(ctx, a.ID)
	if err != nil {
		return Account{}, err
	}
	a.Role = role
	return a, nil
}

func (s *Store) AdminExists(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM user_roles WHERE role='admin'`).Scan(&n); err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return n > 0, nil
}

// CountStudents backs the admin dashboard.
func (s *Store) CountStudents(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM user_roles WHERE role='student'`).Scan(&n)
	return n, err
}

// roleOf picks admin over student if an account somehow holds both.
func (s *Store) roleOf(ctx context.Context, userID string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT role FROM user_roles WHERE user_id=$1 ORDER BY CASE role WHEN 'admin' THEN 0 ELSE 1 END LIMIT 1`, userID).
		Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return role, err
}

func defaultDisplayName(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
