package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"time"

	"github.com/redmonkez12/taskhub-api/internal/logging"
	"github.com/redmonkez12/taskhub-api/internal/tokens"
	"github.com/redmonkez12/taskhub-api/templates"
)

const (
	TemplateVerification  = "verification"
	TemplatePasswordReset = "password_reset"
)

// Recorder receives the outcome of every delivery attempt.
type Recorder interface {
	EmailSent(template string, err error)
}

type Service struct {
	sender      Sender
	frontendURL string
	appName     string
	recorder    Recorder
	now         func() time.Time
	views       map[string]*template.Template
}

func NewService(sender Sender, frontendURL, appName string, recorder Recorder) (*Service, error) {
	s := &Service{
		sender:      sender,
		frontendURL: frontendURL,
		appName:     appName,
		recorder:    recorder,
		now:         time.Now,
		views:       make(map[string]*template.Template),
	}

	for _, name := range []string{TemplateVerification, TemplatePasswordReset} {
		t, err := template.ParseFS(templates.EmailFS, "email/layout.html", "email/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		s.views[name] = t
	}

	return s, nil
}

type view struct {
	AppName  string
	Year     int
	Name     string
	Link     string
	Code     string
	Validity string
}

// VerificationLink is the frontend URL a verification token is delivered in.
func (s *Service) VerificationLink(token string) string {
	return fmt.Sprintf("%s/verify-email/%s", s.frontendURL, url.PathEscape(token))
}

// SendVerificationEmail sends the welcome email with the activation link.
func (s *Service) SendVerificationEmail(ctx context.Context, toEmail, name, token string) error {
	return s.send(ctx, TemplateVerification, toEmail, "Verify your email address", view{
		Name:     name,
		Link:     s.VerificationLink(token),
		Validity: validity(tokens.VerificationTTL),
	})
}

// SendPasswordResetCode emails the one-time code that accompanies a reset
// token.
func (s *Service) SendPasswordResetCode(ctx context.Context, toEmail, name, code string) error {
	return s.send(ctx, TemplatePasswordReset, toEmail, "Your password reset code", view{
		Name:     name,
		Code:     code,
		Validity: validity(tokens.ResetTTL),
	})
}

func (s *Service) send(ctx context.Context, name, to, subject string, data view) error {
	logger := logging.GetLoggerFromContext(ctx)

	data.AppName = s.appName
	data.Year = s.now().Year()

	var buf bytes.Buffer
	if err := s.views[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		logger.Error("failed to render email template", "template", name, "error", err)
		s.record(name, err)
		return fmt.Errorf("render template: %w", err)
	}

	err := s.sender.Send(ctx, Message{
		To:      to,
		Subject: fmt.Sprintf("%s: %s", s.appName, subject),
		HTML:    buf.String(),
	})
	s.record(name, err)
	if err != nil {
		logger.Error("failed to send email", "template", name, "email", to, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("email sent", "template", name, "email", to)
	return nil
}

func (s *Service) record(name string, err error) {
	if s.recorder != nil {
		s.recorder.EmailSent(name, err)
	}
}

func validity(d time.Duration) string {
	switch {
	case d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d/time.Minute), "minute")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
