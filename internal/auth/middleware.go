package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aegis-auth/aegis/internal/platform/httpx"
	"github.com/aegis-auth/aegis/internal/shared"
	"github.com/aegis-auth/aegis/internal/token"
)

// Authenticate verifies the access token from the Authorization header or
// the access cookie and stores the principal in the request context.
// Expired and otherwise invalid tokens produce the same status and differ
// only in message.
func Authenticate(codec *token.Codec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				if cookie, err := r.Cookie(accessCookie); err == nil {
					raw = cookie.Value
				}
			}
			if raw == "" {
				httpx.RespondError(w, shared.ErrInvalidAccessToken("Not authorized"))
				return
			}

			claims, err := codec.VerifyAccess(raw)
			if err != nil {
				message := "Invalid token"
				if errors.Is(err, token.ErrTokenExpired) {
					message = "Token expired"
				}
				httpx.RespondError(w, shared.ErrInvalidAccessToken(message))
				return
			}

			ctx := shared.ContextWithPrincipal(r.Context(), shared.Principal{
				UserID:    claims.UserID(),
				SessionID: claims.SessionID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}
