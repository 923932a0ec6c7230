// Package token signs and verifies the compact access and refresh tokens
// issued by the auth service.
package token

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Audience is stamped into every token so tokens minted for another
// purpose or service are rejected even when otherwise well formed.
const Audience = "aegis:user"

var (
	// ErrTokenExpired reports a structurally valid token past its expiry.
	ErrTokenExpired = errors.New("token: expired")
	// ErrTokenInvalid covers every other verification failure: malformed
	// input, bad signature, wrong audience. The reasons are deliberately
	// collapsed; callers only branch on expired vs invalid.
	ErrTokenInvalid = errors.New("token: invalid")
)

// AccessClaims is the payload of a short-lived access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// RefreshClaims is the payload of a refresh token. It carries the session
// id only; the user is resolved through the session record.
type RefreshClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// Config carries the signing material for a Codec.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
}

// Codec signs and verifies tokens with HS256. Verification is pure and
// never panics on malformed input.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	now           func() time.Time
}

// NewCodec constructs a Codec. Refresh tokens use a distinct secret so a
// leaked access key cannot mint refresh tokens.
func NewCodec(cfg Config) *Codec {
	return &Codec{
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		accessTTL:     cfg.AccessTTL,
		now:           time.Now,
	}
}

// WithNow overrides the codec clock. Intended for tests.
func (c *Codec) WithNow(now func() time.Time) *Codec {
	c.now = now
	return c
}

// SignAccess mints an access token embedding the user and session ids.
func (c *Codec) SignAccess(userID int64, sessionID string) (string, error) {
	now := c.now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
		SessionID: sessionID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.accessSecret)
}

// SignRefresh mints a refresh token bound to a session. The ttl is chosen
// by the caller so the token never outlives its session.
func (c *Codec) SignRefresh(sessionID string, ttl time.Duration) (string, error) {
	now := c.now()
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		SessionID: sessionID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.refreshSecret)
}

// VerifyAccess checks an access token and returns its claims.
func (c *Codec) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.verify(tokenString, claims, c.accessSecret); err != nil {
		return nil, err
	}
	if _, err := strconv.ParseInt(claims.Subject, 10, 64); err != nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// UserID returns the user id embedded in the subject claim.
func (a *AccessClaims) UserID() int64 {
	id, _ := strconv.ParseInt(a.Subject, 10, 64)
	return id
}

// VerifyRefresh checks a refresh token and returns its claims.
func (c *Codec) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.verify(tokenString, claims, c.refreshSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (c *Codec) verify(tokenString string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(Audience),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}
	if !parsed.Valid {
		return ErrTokenInvalid
	}
	return nil
}
