package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/aegis-auth/aegis/internal/shared"
	"github.com/aegis-auth/aegis/internal/token"
)

type fakeStore struct {
	sessions map[string]*Session
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]*Session)}
}

func (f *fakeStore) Create(ctx context.Context, session *Session) error {
	copied := *session
	f.sessions[session.ID] = &copied
	return nil
}

func (f *fakeStore) FindByID(ctx context.Context, id string) (*Session, error) {
	session, ok := f.sessions[id]
	if !ok {
		return nil, shared.ErrNotFound("Session not found")
	}
	copied := *session
	return &copied, nil
}

func (f *fakeStore) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	session, ok := f.sessions[id]
	if !ok {
		return shared.ErrNotFound("Session not found")
	}
	session.ExpiresAt = expiresAt
	return nil
}

func (f *fakeStore) DeleteByID(ctx context.Context, id string) error {
	delete(f.sessions, id)
	return nil
}

func (f *fakeStore) DeleteForUser(ctx context.Context, id string, userID int64) error {
	session, ok := f.sessions[id]
	if !ok || session.UserID != userID {
		return shared.ErrNotFound("Session not found")
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeStore) DeleteAllForUser(ctx context.Context, userID int64) error {
	for id, session := range f.sessions {
		if session.UserID == userID {
			delete(f.sessions, id)
		}
	}
	return nil
}

func (f *fakeStore) ListForUser(ctx context.Context, userID int64) ([]Session, error) {
	var result []Session
	for _, session := range f.sessions {
		if session.UserID == userID {
			result = append(result, *session)
		}
	}
	// Most recent first, matching the SQL ORDER BY.
	for i := 0; i < len(result); i++ {
		for j := i + 1; j < len(result); j++ {
			if result[j].CreatedAt.After(result[i].CreatedAt) {
				result[i], result[j] = result[j], result[i]
			}
		}
	}
	return result, nil
}

func (f *fakeStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for id, session := range f.sessions {
		if !session.ExpiresAt.After(now) {
			delete(f.sessions, id)
			n++
		}
	}
	return n, nil
}

func testManager(store Store, now time.Time) (*Manager, *token.Codec) {
	codec := token.NewCodec(token.Config{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     15 * time.Minute,
	}).WithNow(func() time.Time { return now })
	manager := NewManager(store, codec, 30*24*time.Hour, 24*time.Hour).
		WithNow(func() time.Time { return now })
	return manager, codec
}

func TestCreateSetsThirtyDayExpiry(t *testing.T) {
	store := newFakeStore()
	now := time.Now()
	manager, _ := testManager(store, now)

	session, err := manager.Create(context.Background(), 7, "test-agent")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got, want := session.ExpiresAt, now.Add(30*24*time.Hour); !got.Equal(want) {
		t.Fatalf("expiry = %v, want %v", got, want)
	}
	if session.UserID != 7 || session.UserAgent != "test-agent" {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestRefreshFarFromExpiryDoesNotRotate(t *testing.T) {
	store := newFakeStore()
	now := time.Now()
	manager, codec := testManager(store, now)

	session, err := manager.Create(context.Background(), 7, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	access, refresh, err := manager.Refresh(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if access == "" {
		t.Fatal("expected a fresh access token")
	}
	if refresh != "" {
		t.Fatalf("expected no refresh token rotation, got %q", refresh)
	}
	claims, err := codec.VerifyAccess(access)
	if err != nil {
		t.Fatalf("VerifyAccess() error = %v", err)
	}
	if claims.SessionID != session.ID || claims.UserID() != 7 {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if got := store.sessions[session.ID].ExpiresAt; !got.Equal(session.ExpiresAt) {
		t.Fatalf("expiry must be unchanged, got %v", got)
	}
}

func TestRefreshNearExpiryRotates(t *testing.T) {
	store := newFakeStore()
	created := time.Now()
	manager, codec := testManager(store, created)

	session, err := manager.Create(context.Background(), 7, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// 29 days + 1 hour later: 23h of lifetime left, inside the window.
	later := created.Add(29*24*time.Hour + time.Hour)
	manager.WithNow(func() time.Time { return later })
	codec.WithNow(func() time.Time { return later })

	access, refresh, err := manager.Refresh(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if access == "" || refresh == "" {
		t.Fatal("expected both tokens on rotation")
	}

	claims, err := codec.VerifyRefresh(refresh)
	if err != nil {
		t.Fatalf("VerifyRefresh() error = %v", err)
	}
	if claims.SessionID != session.ID {
		t.Fatalf("rotated refresh token bound to %s, want %s", claims.SessionID, session.ID)
	}

	got := store.sessions[session.ID].ExpiresAt
	want := later.Add(30 * 24 * time.Hour)
	if !got.Equal(want) {
		t.Fatalf("expiry = %v, want %v", got, want)
	}
	if !got.After(session.ExpiresAt) {
		t.Fatal("expiry must strictly increase on rotation")
	}
}

func TestRefreshExpiredSessionFails(t *testing.T) {
	store := newFakeStore()
	created := time.Now()
	manager, _ := testManager(store, created)

	session, err := manager.Create(context.Background(), 7, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	later := created.Add(31 * 24 * time.Hour)
	manager.WithNow(func() time.Time { return later })

	_, _, err = manager.Refresh(context.Background(), session.ID)
	appErr, ok := shared.AsError(err)
	if !ok || appErr.Code != shared.CodeSessionExpired {
		t.Fatalf("expected SessionExpired, got %v", err)
	}
}

func TestRefreshDeletedSessionFails(t *testing.T) {
	store := newFakeStore()
	manager, _ := testManager(store, time.Now())

	_, _, err := manager.Refresh(context.Background(), "missing")
	appErr, ok := shared.AsError(err)
	if !ok || appErr.Code != shared.CodeSessionExpired {
		t.Fatalf("expected SessionExpired, got %v", err)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	store := newFakeStore()
	manager, _ := testManager(store, time.Now())

	session, err := manager.Create(context.Background(), 7, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := manager.Revoke(context.Background(), session.ID); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if err := manager.Revoke(context.Background(), session.ID); err != nil {
		t.Fatalf("second Revoke() error = %v", err)
	}
}

func TestRevokeAllForUser(t *testing.T) {
	store := newFakeStore()
	manager, _ := testManager(store, time.Now())

	for i := 0; i < 3; i++ {
		if _, err := manager.Create(context.Background(), 7, ""); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	other, err := manager.Create(context.Background(), 8, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := manager.RevokeAllForUser(context.Background(), 7); err != nil {
		t.Fatalf("RevokeAllForUser() error = %v", err)
	}
	if len(store.sessions) != 1 {
		t.Fatalf("expected only the other user's session to remain, got %d", len(store.sessions))
	}
	if _, ok := store.sessions[other.ID]; !ok {
		t.Fatal("other user's session must survive")
	}
}

func TestListOrdersMostRecentFirstAndFlagsCurrent(t *testing.T) {
	store := newFakeStore()
	base := time.Now()
	manager, _ := testManager(store, base)

	first, _ := manager.Create(context.Background(), 7, "old")
	manager.WithNow(func() time.Time { return base.Add(time.Minute) })
	second, _ := manager.Create(context.Background(), 7, "new")

	entries, err := manager.List(context.Background(), 7, second.ID)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != second.ID || !entries[0].IsCurrent {
		t.Fatalf("expected current session first, got %+v", entries[0])
	}
	if entries[1].ID != first.ID || entries[1].IsCurrent {
		t.Fatalf("expected older session second, got %+v", entries[1])
	}
}

func TestRevokeOwnedRejectsForeignSession(t *testing.T) {
	store := newFakeStore()
	manager, _ := testManager(store, time.Now())

	session, _ := manager.Create(context.Background(), 7, "")
	err := manager.RevokeOwned(context.Background(), session.ID, 8)
	if appErr, ok := shared.AsError(err); !ok || appErr.Code != shared.CodeNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if _, findErr := store.FindByID(context.Background(), session.ID); findErr != nil {
		t.Fatalf("session must still exist: %v", findErr)
	}
}
