package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aegis-auth/aegis/internal/shared"
	"github.com/aegis-auth/aegis/internal/token"
)

// Manager owns the session lifecycle: creation, sliding-window refresh,
// revocation and listing.
type Manager struct {
	store        Store
	codec        *token.Codec
	ttl          time.Duration
	rotateWithin time.Duration
	now          func() time.Time
}

// NewManager constructs a Manager. ttl is the session lifetime granted at
// creation and on rotation; rotateWithin is the remaining-lifetime
// threshold below which a refresh extends the session.
func NewManager(store Store, codec *token.Codec, ttl, rotateWithin time.Duration) *Manager {
	return &Manager{
		store:        store,
		codec:        codec,
		ttl:          ttl,
		rotateWithin: rotateWithin,
		now:          time.Now,
	}
}

// WithNow overrides the manager clock. Intended for tests.
func (m *Manager) WithNow(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Create opens a new session for the user.
func (m *Manager) Create(ctx context.Context, userID int64, userAgent string) (*Session, error) {
	now := m.now()
	session := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		UserAgent: userAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Refresh validates the session and mints a fresh access token. When the
// session is within the rotation window its expiry is extended and a new
// refresh token bound to the same session id is minted; otherwise the
// returned refresh token is empty and the caller keeps using the old one.
func (m *Manager) Refresh(ctx context.Context, sessionID string) (accessToken, refreshToken string, err error) {
	session, err := m.store.FindByID(ctx, sessionID)
	if err != nil {
		if appErr, ok := shared.AsError(err); ok && appErr.Code == shared.CodeNotFound {
			return "", "", shared.ErrSessionExpired()
		}
		return "", "", err
	}

	now := m.now()
	if !session.Active(now) {
		return "", "", shared.ErrSessionExpired()
	}

	if session.ExpiresAt.Sub(now) <= m.rotateWithin {
		newExpiry := now.Add(m.ttl)
		if err := m.store.UpdateExpiry(ctx, session.ID, newExpiry); err != nil {
			return "", "", err
		}
		session.ExpiresAt = newExpiry
		refreshToken, err = m.codec.SignRefresh(session.ID, newExpiry.Sub(now))
		if err != nil {
			return "", "", err
		}
	}

	accessToken, err = m.codec.SignAccess(session.UserID, session.ID)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// Revoke deletes a session. Revoking an absent session is a no-op.
func (m *Manager) Revoke(ctx context.Context, sessionID string) error {
	return m.store.DeleteByID(ctx, sessionID)
}

// RevokeOwned deletes a session only when the user owns it.
func (m *Manager) RevokeOwned(ctx context.Context, sessionID string, userID int64) error {
	return m.store.DeleteForUser(ctx, sessionID, userID)
}

// RevokeAllForUser deletes every session the user owns. Used on password
// reset to force re-login everywhere.
func (m *Manager) RevokeAllForUser(ctx context.Context, userID int64) error {
	return m.store.DeleteAllForUser(ctx, userID)
}

// List returns the user's sessions as client-facing entries, most recent
// first, flagging the caller's own session.
func (m *Manager) List(ctx context.Context, userID int64, currentSessionID string) ([]Entry, error) {
	sessions, err := m.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(sessions))
	for _, session := range sessions {
		entries = append(entries, Entry{
			ID:        session.ID,
			UserAgent: session.UserAgent,
			CreatedAt: session.CreatedAt,
			IsCurrent: session.ID == currentSessionID,
		})
	}
	return entries, nil
}
