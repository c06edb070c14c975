package alert

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// EmailConfig holds SMTP settings for the email channel.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailChannel sends alerts over SMTP.
type EmailChannel struct {
	config EmailConfig
	auth   smtp.Auth
	send   sendFunc
}

// NewEmailChannel creates an email channel. Authentication is used only when
// both username and password are set.
func NewEmailChannel(config EmailConfig) *EmailChannel {
	var auth smtp.Auth
	if config.Username != "" && config.Password != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &EmailChannel{config: config, auth: auth, send: smtp.SendMail}
}

func (e *EmailChannel) Name() string {
	return "email"
}

// Send delivers the alert to every recipient in one SMTP transaction. net/smtp
// has no context support, so a cancelled ctx abandons the send.
func (e *EmailChannel) Send(ctx context.Context, a Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(e.config.Host, strconv.Itoa(e.config.Port))
	msg := buildMessage(e.config.From, e.config.To, a)

	done := make(chan error, 1)
	go func() {
		done <- e.send(addr, e.auth, e.config.From, e.config.To, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send alert email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMessage(from string, to []string, a Alert) []byte {
	recipients := make([]string, len(to))
	for i, r := range to {
		recipients[i] = sanitizeHeader(r)
	}
	lines := []string{
		fmt.Sprintf("From: %s", sanitizeHeader(from)),
		fmt.Sprintf("To: %s", strings.Join(recipients, ", ")),
		fmt.Sprintf("Subject: %s", sanitizeHeader(a.Subject())),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		strings.ReplaceAll(a.Text(), "\n", "\r\n"),
	}
	return []byte(strings.Join(lines, "\r\n"))
}

func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return s
}
