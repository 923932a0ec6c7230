package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/aegis-auth/aegis/internal/mail"
	"github.com/aegis-auth/aegis/internal/password"
	"github.com/aegis-auth/aegis/internal/ratelimit"
	"github.com/aegis-auth/aegis/internal/sessions"
	"github.com/aegis-auth/aegis/internal/shared"
	"github.com/aegis-auth/aegis/internal/token"
	"github.com/aegis-auth/aegis/internal/users"
	"github.com/aegis-auth/aegis/internal/verification"
)

// Password reset requests are capped per user: at most resetRateMax codes
// issued in the trailing resetRateWindow.
const (
	resetRateWindow = 5 * time.Minute
	resetRateMax    = 2
)

// Config carries the policy knobs the service needs beyond its
// collaborators.
type Config struct {
	// Origin is the frontend base URL embedded in emailed links.
	Origin string
	// EmailCodeTTL is the validity of email-verification codes. It is
	// deliberately long; the code acts as "until used".
	EmailCodeTTL time.Duration
	// ResetCodeTTL is the validity of password-reset codes.
	ResetCodeTTL time.Duration
}

// Atomic runs fn against transaction-bound stores so that everything fn
// writes commits or rolls back as one unit.
type Atomic func(ctx context.Context, fn func(users.Store, sessions.Store) error) error

// Service orchestrates registration, login, token refresh, email
// verification and password reset across the collaborator stores.
type Service struct {
	cfg      Config
	users    users.Store
	sessions *sessions.Manager
	codes    verification.Store
	hasher   password.Hasher
	codec    *token.Codec
	mailer   mail.Sender
	throttle *ratelimit.Limiter
	logger   *slog.Logger
	atomic   Atomic
	now      func() time.Time
}

// NewService constructs a Service. throttle may be nil, which disables
// the login brute-force guard.
func NewService(
	cfg Config,
	userStore users.Store,
	sessionManager *sessions.Manager,
	codeStore verification.Store,
	hasher password.Hasher,
	codec *token.Codec,
	mailer mail.Sender,
	throttle *ratelimit.Limiter,
	logger *slog.Logger,
) *Service {
	return &Service{
		cfg:      cfg,
		users:    userStore,
		sessions: sessionManager,
		codes:    codeStore,
		hasher:   hasher,
		codec:    codec,
		mailer:   mailer,
		throttle: throttle,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the service clock. Intended for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithAtomic makes ResetPassword commit the password update and the
// session revocation as one unit. Without it the two writes run
// sequentially, leaving a window where the new password is stored but old
// sessions still live.
func (s *Service) WithAtomic(atomic Atomic) *Service {
	s.atomic = atomic
	return s
}

// Result is returned by the operations that establish a session.
type Result struct {
	User         users.SafeUser
	AccessToken  string
	RefreshToken string
}

// normalizeEmail applies NFC so visually identical addresses compare
// equal. Case is preserved; emails are stored and matched case-sensitively.
func normalizeEmail(email string) string {
	return norm.NFC.String(email)
}

// Register creates an account, issues an email-verification code, sends
// the verification email best-effort and opens the first session.
func (s *Service) Register(ctx context.Context, email, plainPassword, userAgent string) (*Result, error) {
	email = normalizeEmail(email)

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.ErrEmailInUse()
	}

	hash, err := s.hasher.Hash(plainPassword)
	if err != nil {
		return nil, err
	}

	// The unique constraint closes the window between the pre-check and
	// the insert.
	user, err := s.users.Create(ctx, email, hash)
	if err != nil {
		if errors.Is(err, users.ErrDuplicateEmail) {
			return nil, shared.ErrEmailInUse()
		}
		return nil, err
	}

	code, err := s.codes.Create(ctx, user.ID, verification.KindEmailVerification, s.now().Add(s.cfg.EmailCodeTTL))
	if err != nil {
		return nil, err
	}

	msg := mail.VerifyEmailMessage(s.cfg.Origin, code.ID)
	if _, err := s.mailer.Send(ctx, user.Email, msg.Subject, msg.Body); err != nil {
		// Verification can be re-requested; registration must not fail
		// because the mail gateway is down.
		s.logger.Warn("send verification email", slog.String("email", user.Email), slog.Any("error", err))
	}

	return s.openSession(ctx, user, userAgent)
}

// Login verifies credentials and opens a session. Unknown email and wrong
// password produce the identical error.
func (s *Service) Login(ctx context.Context, email, plainPassword, userAgent string) (*Result, error) {
	email = normalizeEmail(email)

	if s.throttle != nil {
		ok, err := s.throttle.Allow(ctx, email)
		if err != nil {
			s.logger.Warn("login throttle unavailable", slog.Any("error", err))
		}
		if !ok {
			return nil, shared.ErrRateLimitExceeded()
		}
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if _, ok := shared.AsError(err); ok {
			return nil, shared.ErrInvalidCredentials()
		}
		return nil, err
	}
	if !s.hasher.Verify(plainPassword, user.PasswordHash) {
		return nil, shared.ErrInvalidCredentials()
	}

	if s.throttle != nil {
		if err := s.throttle.Reset(ctx, email); err != nil {
			s.logger.Warn("login throttle reset", slog.Any("error", err))
		}
	}

	return s.openSession(ctx, user, userAgent)
}

func (s *Service) openSession(ctx context.Context, user *users.User, userAgent string) (*Result, error) {
	session, err := s.sessions.Create(ctx, user.ID, userAgent)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.codec.SignAccess(user.ID, session.ID)
	if err != nil {
		return nil, err
	}
	// The refresh token lives exactly as long as its session.
	refreshToken, err := s.codec.SignRefresh(session.ID, session.ExpiresAt.Sub(s.now()))
	if err != nil {
		return nil, err
	}

	return &Result{
		User:         user.Safe(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Logout revokes the session named by the access token. A missing or
// unusable token is not an error; logout is idempotent.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.codec.VerifyAccess(accessToken)
	if err != nil {
		return nil
	}
	return s.sessions.Revoke(ctx, claims.SessionID)
}

// RefreshTokens verifies a refresh token and delegates to the session
// manager's sliding-window refresh. The returned refresh token is empty
// when no rotation occurred.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (accessToken, newRefreshToken string, err error) {
	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return "", "", shared.ErrInvalidRefreshToken("Refresh token expired")
		}
		return "", "", shared.ErrInvalidRefreshToken("Invalid refresh token")
	}
	return s.sessions.Refresh(ctx, claims.SessionID)
}

// VerifyEmail redeems an email-verification code and marks the owning
// user verified. The code is consumed on success and cannot be replayed.
func (s *Service) VerifyEmail(ctx context.Context, codeID string) (users.SafeUser, error) {
	userID, err := s.codes.Redeem(ctx, codeID, verification.KindEmailVerification, s.now())
	if err != nil {
		return users.SafeUser{}, err
	}
	user, err := s.users.MarkVerified(ctx, userID)
	if err != nil {
		return users.SafeUser{}, err
	}
	return user.Safe(), nil
}

// RequestPasswordReset issues a reset code and emails the reset link.
// Every failure, including the rate limit, is swallowed into the uniform
// success-shaped result and logged server-side only, so the response
// never reveals whether the account exists.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) {
	if err := s.requestPasswordReset(ctx, normalizeEmail(email)); err != nil {
		s.logger.Warn("password reset request", slog.Any("error", err))
	}
}

func (s *Service) requestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	count, err := s.codes.CountSince(ctx, user.ID, verification.KindPasswordReset, s.now().Add(-resetRateWindow))
	if err != nil {
		return err
	}
	if count >= resetRateMax {
		return shared.ErrRateLimitExceeded()
	}

	expiresAt := s.now().Add(s.cfg.ResetCodeTTL)
	code, err := s.codes.Create(ctx, user.ID, verification.KindPasswordReset, expiresAt)
	if err != nil {
		return err
	}

	msg := mail.PasswordResetMessage(s.cfg.Origin, code.ID, expiresAt.UnixMilli())
	if _, err := s.mailer.Send(ctx, user.Email, msg.Subject, msg.Body); err != nil {
		return shared.ErrUnknown("password reset email failed: " + err.Error())
	}
	return nil
}

// CheckResetCode reports whether a reset code is still redeemable without
// consuming it. Backs the reset-link landing page.
func (s *Service) CheckResetCode(ctx context.Context, codeID string) error {
	ok, err := s.codes.Peek(ctx, codeID, verification.KindPasswordReset, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return shared.ErrNotFound("Invalid link")
	}
	return nil
}

// ResetPassword redeems a reset code, stores the newly hashed password
// and revokes every session of the user, forcing re-login everywhere.
func (s *Service) ResetPassword(ctx context.Context, codeID, newPassword string) error {
	userID, err := s.codes.Redeem(ctx, codeID, verification.KindPasswordReset, s.now())
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	if s.atomic != nil {
		return s.atomic(ctx, func(userStore users.Store, sessionStore sessions.Store) error {
			if err := userStore.UpdatePassword(ctx, userID, hash); err != nil {
				return err
			}
			return sessionStore.DeleteAllForUser(ctx, userID)
		})
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	return s.sessions.RevokeAllForUser(ctx, userID)
}
