package users

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aegis-auth/aegis/internal/platform/db"
	"github.com/aegis-auth/aegis/internal/shared"
)

// ErrDuplicateEmail reports a violation of the unique email constraint.
// The constraint, not the pre-check in the service, is what actually
// closes the check-then-act race on registration.
var ErrDuplicateEmail = errors.New("users: duplicate email")

// Store defines persistence operations for user accounts.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, email, passwordHash string) (*User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	MarkVerified(ctx context.Context, id int64) (*User, error)
}

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	q db.Querier
}

// NewPGStore constructs a PostgreSQL user store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{q: pool}
}

// WithTx returns a copy of the store whose statements run on tx.
func (s *PGStore) WithTx(tx pgx.Tx) *PGStore {
	return &PGStore{q: tx}
}

const userColumns = `id, email, password_hash, verified, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var user User
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Verified, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound("User not found")
		}
		return nil, err
	}
	return &user, nil
}

// FindByEmail fetches a user by exact email.
func (s *PGStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// FindByID fetches a user by id.
func (s *PGStore) FindByID(ctx context.Context, id int64) (*User, error) {
	row := s.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// ExistsByEmail reports whether an account with the email exists.
func (s *PGStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	return exists, err
}

// Create inserts a new account. A concurrent insert of the same email
// surfaces as ErrDuplicateEmail via the unique constraint.
func (s *PGStore) Create(ctx context.Context, email, passwordHash string) (*User, error) {
	now := time.Now().UTC()
	row := s.q.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, verified, created_at, updated_at)
		 VALUES ($1, $2, FALSE, $3, $3)
		 RETURNING `+userColumns,
		email, passwordHash, now)
	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return user, nil
}

// UpdatePassword stores a new password hash. The hash is produced by the
// caller; this layer never re-hashes.
func (s *PGStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, passwordHash, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound("User not found")
	}
	return nil
}

// MarkVerified flips the verified flag and returns the updated record.
func (s *PGStore) MarkVerified(ctx context.Context, id int64) (*User, error) {
	row := s.q.QueryRow(ctx,
		`UPDATE users SET verified = TRUE, updated_at = $2 WHERE id = $1 RETURNING `+userColumns,
		id, time.Now().UTC())
	return scanUser(row)
}

var _ Store = (*PGStore)(nil)
