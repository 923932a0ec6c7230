package sessions

import "time"

// Session is one authenticated client login. Its expiry is independent of
// any token lifetime; a session past its expiry is dead even while the row
// still exists.
type Session struct {
	ID        string
	UserID    int64
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Active reports whether the session is still usable at the given instant.
func (s *Session) Active(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// Entry is the list projection returned to clients, with the caller's own
// session flagged.
type Entry struct {
	ID        string    `json:"id"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	IsCurrent bool      `json:"isCurrent,omitempty"`
}
