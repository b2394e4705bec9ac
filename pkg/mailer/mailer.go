// Package mailer carries the dev implementation of the gateway's mail
// dependency. The real transport (SMTP relay, provider API) lives
// outside this service and is wired in at the composition root.
package mailer

import (
	"context"
	"log"
)

// LogMailer writes outgoing mail to the process log instead of
// delivering it. Useful in development and tests.
type LogMailer struct{}

func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

func (m *LogMailer) SendWelcome(_ context.Context, to, username string) error {
	log.Printf("mail: welcome for %s <%s>", username, to)
	return nil
}

func (m *LogMailer) SendPasswordReset(_ context.Context, to, username, resetURL string) error {
	log.Printf("mail: password reset for %s <%s>: %s", username, to, resetURL)
	return nil
}
