package mail

import (
	"strings"
	"testing"
)

func TestVerifyEmailMessage(t *testing.T) {
	msg := VerifyEmailMessage("https://app.example.com", "abc-123")
	if msg.Subject == "" {
		t.Fatal("subject must not be empty")
	}
	if !strings.Contains(msg.Body, "https://app.example.com/email/verify/abc-123") {
		t.Fatalf("body missing verification link: %q", msg.Body)
	}
}

func TestPasswordResetMessage(t *testing.T) {
	msg := PasswordResetMessage("https://app.example.com", "abc-123", 1700000000000)
	if !strings.Contains(msg.Body, "code=abc-123") {
		t.Fatalf("body missing reset code: %q", msg.Body)
	}
	if !strings.Contains(msg.Body, "exp=1700000000000") {
		t.Fatalf("body missing expiry hint: %q", msg.Body)
	}
}
