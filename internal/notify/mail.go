// Package notify delivers daily archives by mail. It is the only component
// that knows a transport; everything upstream sees the pipeline's Notifier
// interface and a success/failure result.
package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// Config holds SMTP settings. Sender doubles as the login username, which is
// how consumer SMTP providers expect it.
type Config struct {
	Host       string
	Port       int
	Sender     string
	Password   string
	Recipients []string
}

// Mailer sends file attachments over SMTP with implicit TLS. One message per
// recipient; the first failing recipient aborts the send so the caller's
// at-least-once retry covers the rest.
type Mailer struct {
	cfg    Config
	logger zerolog.Logger
}

// NewMailer validates cfg and returns a Mailer.
func NewMailer(cfg Config, logger zerolog.Logger) (*Mailer, error) {
	if cfg.Host == "" || cfg.Sender == "" || len(cfg.Recipients) == 0 {
		return nil, fmt.Errorf("notify: smtp host, sender and recipients are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 465
	}
	return &Mailer{cfg: cfg, logger: logger}, nil
}

// Send mails the given files to every configured recipient. Implements
// pipeline.Notifier.
func (m *Mailer) Send(ctx context.Context, filePaths []string, subject, body string) error {
	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Sender),
		mail.WithPassword(m.cfg.Password),
	)
	if err != nil {
		return fmt.Errorf("notify: client: %w", err)
	}

	for _, rcpt := range m.cfg.Recipients {
		msg, err := buildMessage(m.cfg.Sender, rcpt, subject, body, filePaths)
		if err != nil {
			return err
		}
		if err := client.DialAndSendWithContext(ctx, msg); err != nil {
			return fmt.Errorf("notify: send to %s: %w", rcpt, err)
		}
		m.logger.Debug().Str("to", rcpt).Str("subject", subject).Msg("mail sent")
	}
	m.logger.Info().
		Int("recipients", len(m.cfg.Recipients)).
		Int("attachments", len(filePaths)).
		Str("subject", subject).
		Msg("notification delivered")
	return nil
}

func buildMessage(from, to, subject, body string, filePaths []string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("notify: from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("notify: to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	for _, path := range filePaths {
		msg.AttachFile(path)
	}
	return msg, nil
}
