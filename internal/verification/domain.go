package verification

import "time"

// Kind distinguishes what a code authorizes. Redemption must match the
// kind it was issued for.
type Kind string

const (
	// KindEmailVerification confirms ownership of an email address. These
	// codes get a year-long expiry, effectively "until used".
	KindEmailVerification Kind = "email_verification"
	// KindPasswordReset authorizes a password reset and expires quickly.
	KindPasswordReset Kind = "password_reset"
)

// Code is a single-use, typed, time-limited token redeemed out-of-band
// through an emailed link.
type Code struct {
	ID        string
	UserID    int64
	Kind      Kind
	ExpiresAt time.Time
	CreatedAt time.Time
}
