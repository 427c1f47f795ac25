package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"soomhub/market/internal/config"
)

// Sender delivers a fully rendered RFC 5322 message, headers included.
type Sender interface {
	Send(ctx context.Context, to []string, subject string, rawMessage []byte) error
}

const smtpTimeout = 30 * time.Second

// SMTPSender delivers notifications over SMTP, upgrading with STARTTLS when the server offers it.
type SMTPSender struct {
	cfg  *config.Config
	auth smtp.Auth
	addr string
}

// NewSMTPSender falls back to a LoggingSender when SMTP_HOST is empty.
func NewSMTPSender(cfg *config.Config) Sender {
	if cfg.SmtpHost == "" {
		log.Println("Warning: SMTP_HOST not set, notifications will only be logged")
		return &LoggingSender{cfg: cfg}
	}

	var auth smtp.Auth
	if cfg.SmtpUsername != "" {
		auth = smtp.PlainAuth("", cfg.SmtpUsername, cfg.SmtpPassword, cfg.SmtpHost)
	}
	return &SMTPSender{
		cfg:  cfg,
		auth: auth,
		addr: net.JoinHostPort(cfg.SmtpHost, strconv.Itoa(cfg.SmtpPort)),
	}
}

// Send honours ctx for the dial and the overall deadline of the SMTP conversation.
func (s *SMTPSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	templateID := TemplateIDFromMessage(rawMessage)
	if err := s.deliver(ctx, to, rawMessage); err != nil {
		return fmt.Errorf("smtp delivery of %s to %v failed: %w", templateID, to, err)
	}
	log.Printf("Email %s sent via SMTP to %v (Subject: %s)", templateID, to, subject)
	return nil
}

func (s *SMTPSender) deliver(ctx context.Context, to []string, rawMessage []byte) error {
	dialer := &net.Dialer{Timeout: smtpTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(smtpTimeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return err
	}

	client, err := smtp.NewClient(conn, s.cfg.SmtpHost)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.SmtpHost}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if s.auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(s.auth); err != nil {
				return fmt.Errorf("auth: %w", err)
			}
		}
	}
	if err := client.Mail(s.cfg.SmtpFromAddress); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(rawMessage); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// LoggingSender writes notifications to the process log instead of delivering them.
type LoggingSender struct {
	cfg *config.Config
}

func (s *LoggingSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	log.Printf("Email %s (logged, not sent) from %s to %v, subject %q:\n%s",
		TemplateIDFromMessage(rawMessage), s.cfg.SmtpFromAddress, to, subject, rawMessage)
	return nil
}
