package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aegis-auth/aegis/internal/platform/db"
	"github.com/aegis-auth/aegis/internal/shared"
)

// Store defines persistence operations for sessions.
type Store interface {
	Create(ctx context.Context, session *Session) error
	FindByID(ctx context.Context, id string) (*Session, error)
	UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error
	DeleteByID(ctx context.Context, id string) error
	DeleteForUser(ctx context.Context, id string, userID int64) error
	DeleteAllForUser(ctx context.Context, userID int64) error
	ListForUser(ctx context.Context, userID int64) ([]Session, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	q db.Querier
}

// NewPGStore constructs a PostgreSQL session store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{q: pool}
}

// WithTx returns a copy of the store whose statements run on tx.
func (s *PGStore) WithTx(tx pgx.Tx) *PGStore {
	return &PGStore{q: tx}
}

// Create persists a new session.
func (s *PGStore) Create(ctx context.Context, session *Session) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO sessions (id, user_id, user_agent, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		session.ID, session.UserID, session.UserAgent, session.CreatedAt.UTC(), session.ExpiresAt.UTC())
	return err
}

// FindByID fetches a session by id.
func (s *PGStore) FindByID(ctx context.Context, id string) (*Session, error) {
	var session Session
	err := s.q.QueryRow(ctx,
		`SELECT id, user_id, user_agent, created_at, expires_at FROM sessions WHERE id = $1`,
		id).Scan(&session.ID, &session.UserID, &session.UserAgent, &session.CreatedAt, &session.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound("Session not found")
		}
		return nil, err
	}
	return &session, nil
}

// UpdateExpiry moves the session expiry forward.
func (s *PGStore) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE sessions SET expires_at = $2 WHERE id = $1`, id, expiresAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound("Session not found")
	}
	return nil
}

// DeleteByID removes a session. Deleting an absent session is not an error.
func (s *PGStore) DeleteByID(ctx context.Context, id string) error {
	_, err := s.q.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// DeleteForUser removes a session only when it belongs to the user.
func (s *PGStore) DeleteForUser(ctx context.Context, id string, userID int64) error {
	tag, err := s.q.Exec(ctx,
		`DELETE FROM sessions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound("Session not found")
	}
	return nil
}

// DeleteAllForUser removes every session owned by the user.
func (s *PGStore) DeleteAllForUser(ctx context.Context, userID int64) error {
	_, err := s.q.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

// ListForUser returns the user's sessions, most recent first.
func (s *PGStore) ListForUser(ctx context.Context, userID int64) ([]Session, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, user_id, user_agent, created_at, expires_at
		 FROM sessions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Session
	for rows.Next() {
		var session Session
		if err := rows.Scan(&session.ID, &session.UserID, &session.UserAgent, &session.CreatedAt, &session.ExpiresAt); err != nil {
			return nil, err
		}
		result = append(result, session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteExpired purges sessions whose expiry has passed.
func (s *PGStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Store = (*PGStore)(nil)
