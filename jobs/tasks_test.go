package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
)

func TestHandleSendEmailRejectsBadPayload(t *testing.T) {
	mailer := NewMailer(SMTPConfig{Host: "127.0.0.1", Port: 1025, From: "no-reply@aegis.local"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	task := asynq.NewTask(TaskTypeSendEmail, []byte("{not json"))
	err := mailer.HandleSendEmail(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("undecodable payload must not be retried, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid character") {
		t.Fatalf("error must carry the decode detail, got %q", err)
	}
}
