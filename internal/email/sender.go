package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/redmonkez12/taskhub-api/internal/config"
	"github.com/redmonkez12/taskhub-api/internal/logging"
)

// Message is a rendered HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers mail through an SMTP relay, upgrading with STARTTLS
// when the server offers it.
type SMTPSender struct {
	addr    string
	host    string
	auth    smtp.Auth
	from    string
	timeout time.Duration
}

func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	var auth smtp.Auth
	if cfg.SMTPUser != "" || cfg.SMTPPassword != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return &SMTPSender{
		addr:    net.JoinHostPort(cfg.SMTPHost, cfg.SMTPPort),
		host:    cfg.SMTPHost,
		auth:    auth,
		from:    cfg.FromAddress,
		timeout: 10 * time.Second,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	dialer := net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer func() { _ = c.Close() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if s.auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(s.auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}
	if err := c.Mail(s.from); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	if err := c.Rcpt(msg.To); err != nil {
		return fmt.Errorf("smtp RCPT TO: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(buildMessage(s.from, msg)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}

	return c.Quit()
}

func buildMessage(from string, msg Message) []byte {
	return []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		from, msg.To, msg.Subject, msg.HTML,
	))
}

// ErrSMTPRequired is returned by NewSender outside development when no SMTP
// host is configured.
var ErrSMTPRequired = errors.New("SMTP_HOST must be set outside development")

// NewSender picks SMTP delivery when a host is configured. Development
// without SMTP falls back to LogSender.
func NewSender(cfg config.EmailConfig, isDevelopment bool, logger *logging.Logger) (Sender, error) {
	if cfg.SMTPEnabled() {
		return NewSMTPSender(cfg), nil
	}
	if !isDevelopment {
		return nil, ErrSMTPRequired
	}
	logger.Warn("SMTP_HOST not set, emails will not be delivered")
	return NewLogSender(logger), nil
}

// LogSender records that a message would have been sent. The body carries
// codes and links, so only its size is logged.
type LogSender struct {
	logger *logging.Logger
}

func NewLogSender(logger *logging.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email not sent, SMTP disabled", "to", msg.To, "subject", msg.Subject, "body_bytes", len(msg.HTML))
	return nil
}
