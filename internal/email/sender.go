package email

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"enoriel/autos/internal/config"
)

// Sender delivers a fully formatted message (headers and body).
type Sender interface {
	Send(ctx context.Context, to []string, subject string, rawMessage []byte) error
}

var errNoRecipients = errors.New("email has no recipients")

// recipients drops blank addresses. Bookings created without an email leave the
// customer address empty.
func recipients(to []string) []string {
	out := make([]string, 0, len(to))
	for _, addr := range to {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// SMTPSender delivers through the configured relay.
type SMTPSender struct {
	from string
	auth smtp.Auth
	addr string
}

// NewSMTPSender returns a LoggingSender when no SMTP host is configured.
func NewSMTPSender(cfg *config.Config) Sender {
	if cfg.SmtpHost == "" {
		log.Println("SMTP host not configured, notifications will only be logged.")
		return &LoggingSender{from: cfg.SmtpFromAddress}
	}
	return &SMTPSender{
		from: cfg.SmtpFromAddress,
		auth: smtp.PlainAuth("", cfg.SmtpUsername, cfg.SmtpPassword, cfg.SmtpHost),
		addr: fmt.Sprintf("%s:%d", cfg.SmtpHost, cfg.SmtpPort),
	}
}

func (s *SMTPSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	to = recipients(to)
	if len(to) == 0 {
		return errNoRecipients
	}
	// net/smtp has no context support; at least honour a cancelled task.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := smtp.SendMail(s.addr, s.auth, s.from, to, rawMessage); err != nil {
		return fmt.Errorf("smtp delivery to %v failed: %w", to, err)
	}
	log.Printf("Email '%s' sent via SMTP to %v", subject, to)
	return nil
}

// LoggingSender logs the envelope instead of delivering. Bodies are left out
// since they carry customer contact details.
type LoggingSender struct {
	from string
}

func (s *LoggingSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	to = recipients(to)
	if len(to) == 0 {
		return errNoRecipients
	}
	log.Printf("Email (not sent) from %s to %v: '%s' [template=%s, %d bytes]",
		s.from, to, subject, headerValue(rawMessage, TemplateHeader), len(rawMessage))
	return nil
}
