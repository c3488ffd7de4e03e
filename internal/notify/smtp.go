package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPConfig holds the mail relay settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender delivers mail through a plain SMTP relay. Auth is used only
// when a username is configured, so a local unauthenticated relay works too.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender creates an SMTP-backed sender
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPSender{cfg: cfg}
}

const altBoundary = "gatekeeper-alt-8c41"

// Send delivers one multipart/alternative message with the plain-text part
// first. net/smtp has no context support, so cancellation is checked before
// dialing only.
func (s *SMTPSender) Send(ctx context.Context, recipient, subject, textBody, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	msg := strings.Join([]string{
		"From: " + s.cfg.From,
		"To: " + recipient,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="` + altBoundary + `"`,
		"",
		"--" + altBoundary,
		"Content-Type: text/plain; charset=utf-8",
		"",
		textBody,
		"--" + altBoundary,
		"Content-Type: text/html; charset=utf-8",
		"",
		htmlBody,
		"--" + altBoundary + "--",
	}, "\r\n")

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{recipient}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", recipient, err)
	}
	return nil
}

var _ Sender = (*SMTPSender)(nil)
