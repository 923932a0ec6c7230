package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testCodec() *Codec {
	return NewCodec(Config{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     15 * time.Minute,
	})
}

func TestAccessTokenRoundTrip(t *testing.T) {
	codec := testCodec()

	signed, err := codec.SignAccess(42, "sess-1")
	if err != nil {
		t.Fatalf("SignAccess() error = %v", err)
	}

	claims, err := codec.VerifyAccess(signed)
	if err != nil {
		t.Fatalf("VerifyAccess() error = %v", err)
	}
	if claims.UserID() != 42 {
		t.Fatalf("expected user id 42, got %d", claims.UserID())
	}
	if claims.SessionID != "sess-1" {
		t.Fatalf("expected session id sess-1, got %s", claims.SessionID)
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	codec := testCodec()

	signed, err := codec.SignRefresh("sess-9", 30*24*time.Hour)
	if err != nil {
		t.Fatalf("SignRefresh() error = %v", err)
	}

	claims, err := codec.VerifyRefresh(signed)
	if err != nil {
		t.Fatalf("VerifyRefresh() error = %v", err)
	}
	if claims.SessionID != "sess-9" {
		t.Fatalf("expected session id sess-9, got %s", claims.SessionID)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	base := time.Now()
	codec := testCodec().WithNow(func() time.Time { return base })

	signed, err := codec.SignAccess(1, "sess-1")
	if err != nil {
		t.Fatalf("SignAccess() error = %v", err)
	}

	codec.WithNow(func() time.Time { return base.Add(16 * time.Minute) })
	if _, err := codec.VerifyAccess(signed); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyMalformedToken(t *testing.T) {
	codec := testCodec()
	for _, raw := range []string{"", "garbage", "a.b.c"} {
		if _, err := codec.VerifyAccess(raw); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("VerifyAccess(%q): expected ErrTokenInvalid, got %v", raw, err)
		}
	}
}

func TestVerifyRejectsCrossSecretUse(t *testing.T) {
	codec := testCodec()

	// A refresh token must not verify as an access token even though both
	// carry the same audience.
	refresh, err := codec.SignRefresh("sess-1", time.Hour)
	if err != nil {
		t.Fatalf("SignRefresh() error = %v", err)
	}
	if _, err := codec.VerifyAccess(refresh); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	codec := testCodec()

	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "7",
			Audience:  jwt.ClaimStrings{"other:service"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		SessionID: "sess-1",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("access-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := codec.VerifyAccess(signed); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}
