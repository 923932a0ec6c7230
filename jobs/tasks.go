package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeAuthCleanup is the task type for purging expired sessions
	// and verification codes.
	TaskTypeAuthCleanup = "auth:cleanup"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewAuthCleanupTask constructs the periodic cleanup task.
func NewAuthCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeAuthCleanup, nil)
}

// SMTPConfig carries delivery settings for the mail task handler.
type SMTPConfig struct {
	Host string
	Port int
	From string
}

// Mailer handles TaskTypeSendEmail tasks by delivering over SMTP.
type Mailer struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

// NewMailer constructs a Mailer.
func NewMailer(cfg SMTPConfig, logger *slog.Logger) *Mailer {
	return &Mailer{cfg: cfg, logger: logger}
}

// HandleSendEmail processes TaskTypeSendEmail tasks.
func (m *Mailer) HandleSendEmail(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("jobs: decode mail payload: %v: %w", err, asynq.SkipRetry)
	}

	msg := strings.Join([]string{
		"From: " + m.cfg.From,
		"To: " + payload.To,
		"Subject: " + payload.Subject,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=\"UTF-8\"",
		"",
		payload.Body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := smtp.SendMail(addr, nil, m.cfg.From, []string{payload.To}, []byte(msg)); err != nil {
		m.logger.Warn("smtp send failed", slog.String("to", payload.To), slog.Any("error", err))
		return err
	}
	m.logger.Info("email delivered", slog.String("to", payload.To), slog.String("subject", payload.Subject))
	return nil
}
