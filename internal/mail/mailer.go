// Package mail is the notification gateway. Delivery failures are logged
// by callers and never abort the operation that triggered the email.
package mail

import (
	"context"

	"github.com/hibiken/asynq"

	"github.com/aegis-auth/aegis/jobs"
)

// Sender delivers a single email and returns a provider/queue id.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) (string, error)
}

// Enqueuer is implemented by jobs.Client; declared here so tests can
// substitute a fake without a running Redis.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// QueueSender enqueues emails on the background job queue; the worker
// binary performs the actual SMTP delivery.
type QueueSender struct {
	enqueuer Enqueuer
}

// NewQueueSender constructs a QueueSender.
func NewQueueSender(enqueuer Enqueuer) *QueueSender {
	return &QueueSender{enqueuer: enqueuer}
}

// Send enqueues a mail:send task and returns the task id.
func (s *QueueSender) Send(ctx context.Context, to, subject, body string) (string, error) {
	info, err := s.enqueuer.EnqueueSendEmail(ctx, jobs.SendEmailPayload{
		To:      to,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

var _ Sender = (*QueueSender)(nil)
