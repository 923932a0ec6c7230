package verification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aegis-auth/aegis/internal/platform/db"
	"github.com/aegis-auth/aegis/internal/shared"
)

// Store defines persistence operations for verification codes.
type Store interface {
	Create(ctx context.Context, userID int64, kind Kind, expiresAt time.Time) (*Code, error)
	// Redeem atomically matches and deletes a valid code, returning the
	// owning user id. The id, kind and expiry filters run in one statement
	// so an expired or already-consumed code can never win a race.
	Redeem(ctx context.Context, id string, kind Kind, now time.Time) (int64, error)
	// Peek reports whether a valid code exists without consuming it.
	Peek(ctx context.Context, id string, kind Kind, now time.Time) (bool, error)
	CountSince(ctx context.Context, userID int64, kind Kind, since time.Time) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	q db.Querier
}

// NewPGStore constructs a PostgreSQL verification code store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{q: pool}
}

// Create issues a new code for the user.
func (s *PGStore) Create(ctx context.Context, userID int64, kind Kind, expiresAt time.Time) (*Code, error) {
	code := &Code{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.q.Exec(ctx,
		`INSERT INTO verification_codes (id, user_id, kind, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		code.ID, code.UserID, string(code.Kind), code.ExpiresAt, code.CreatedAt)
	if err != nil {
		return nil, err
	}
	return code, nil
}

// Redeem consumes a valid code in one atomic statement.
func (s *PGStore) Redeem(ctx context.Context, id string, kind Kind, now time.Time) (int64, error) {
	var userID int64
	err := s.q.QueryRow(ctx,
		`DELETE FROM verification_codes
		 WHERE id = $1 AND kind = $2 AND expires_at > $3
		 RETURNING user_id`,
		id, string(kind), now.UTC()).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrUnprocessableCode("Invalid or expired verification code")
		}
		return 0, err
	}
	return userID, nil
}

// Peek checks validity without consuming the code.
func (s *PGStore) Peek(ctx context.Context, id string, kind Kind, now time.Time) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM verification_codes
		   WHERE id = $1 AND kind = $2 AND expires_at > $3
		 )`,
		id, string(kind), now.UTC()).Scan(&exists)
	return exists, err
}

// CountSince counts codes of a kind issued to the user after the cutoff.
// Supports the password-reset request rate limit.
func (s *PGStore) CountSince(ctx context.Context, userID int64, kind Kind, since time.Time) (int, error) {
	var n int
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM verification_codes
		 WHERE user_id = $1 AND kind = $2 AND created_at > $3`,
		userID, string(kind), since.UTC()).Scan(&n)
	return n, err
}

// DeleteExpired purges codes whose expiry has passed.
func (s *PGStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM verification_codes WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Store = (*PGStore)(nil)
