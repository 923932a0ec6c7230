package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// ExpiredPurger deletes rows whose expiry has passed and reports how many
// were removed. The session and verification-code stores both satisfy it.
type ExpiredPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CleanupJob removes expired sessions and verification codes. Expiry is
// enforced at read time; this job only reclaims storage.
type CleanupJob struct {
	sessions ExpiredPurger
	codes    ExpiredPurger
	logger   *slog.Logger
}

// NewCleanupJob constructs a CleanupJob.
func NewCleanupJob(sessions, codes ExpiredPurger, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{sessions: sessions, codes: codes, logger: logger}
}

// Handle processes TaskTypeAuthCleanup tasks.
func (j *CleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	now := time.Now().UTC()

	purgedSessions, err := j.sessions.DeleteExpired(ctx, now)
	if err != nil {
		return err
	}
	purgedCodes, err := j.codes.DeleteExpired(ctx, now)
	if err != nil {
		return err
	}

	j.logger.Info("auth cleanup finished",
		slog.Int64("sessions", purgedSessions),
		slog.Int64("codes", purgedCodes))
	return nil
}
