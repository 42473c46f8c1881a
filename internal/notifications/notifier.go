package notifications

import (
	"context"
	"fmt"
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// PasswordResetMessage renders the reset email for a principal.
func PasswordResetMessage(to, resetURL string, validFor int) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Your password reset token (valid for %d min)", validFor),
		Body: fmt.Sprintf(
			"Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: %s\n\n"+
				"If you didn't forget your password, please ignore this email.",
			resetURL,
		),
	}
}
