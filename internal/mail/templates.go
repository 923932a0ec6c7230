package mail

import "fmt"

// Message is a rendered email ready for the gateway.
type Message struct {
	Subject string
	Body    string
}

// VerifyEmailMessage builds the email-confirmation mail pointing at the
// frontend verification route.
func VerifyEmailMessage(origin, codeID string) Message {
	url := fmt.Sprintf("%s/email/verify/%s", origin, codeID)
	return Message{
		Subject: "Verify your email address",
		Body: fmt.Sprintf(
			`<p>Welcome! Click the link below to verify your email address.</p>
<p><a href="%s">Verify email</a></p>
<p>If you did not create an account, you can ignore this message.</p>`, url),
	}
}

// PasswordResetMessage builds the reset mail. The expiry is embedded in
// the URL so the frontend can warn before the user submits a stale link.
func PasswordResetMessage(origin, codeID string, expiresAtUnixMs int64) Message {
	url := fmt.Sprintf("%s/password/reset?code=%s&exp=%d", origin, codeID, expiresAtUnixMs)
	return Message{
		Subject: "Reset your password",
		Body: fmt.Sprintf(
			`<p>We received a request to reset your password.</p>
<p><a href="%s">Reset password</a></p>
<p>The link expires in one hour. If you did not request a reset, you can ignore this message.</p>`, url),
	}
}
