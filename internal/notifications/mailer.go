package notifications

import (
	"context"
	"fmt"
	"net/smtp"
	"net/url"
	"strings"

	"github.com/ovlasenko/webshop-backend/pkg/config"
	"github.com/ovlasenko/webshop-backend/pkg/logger"
)

// Mailer delivers a notification by email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type smtpMailer struct {
	cfg  config.MailConfig
	logg *logger.Logger
}

// NewMailer builds the SMTP mailer. With DryRun set, messages are logged
// instead of being handed to the SMTP server, which is the default for
// every environment without real mail credentials.
func NewMailer(cfg config.MailConfig, logg *logger.Logger) Mailer {
	return &smtpMailer{cfg: cfg, logg: logg}
}

func (m *smtpMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.cfg.DryRun || strings.TrimSpace(m.cfg.SMTPURL) == "" {
		if m.logg != nil {
			logCtx := m.logg.WithFields(ctx, map[string]any{
				"to":      to,
				"subject": subject,
			})
			m.logg.Info(logCtx, "mail dry run, message not sent")
		}
		return nil
	}

	parsed, err := url.Parse(m.cfg.SMTPURL)
	if err != nil {
		return fmt.Errorf("parsing smtp url: %w", err)
	}
	addr := parsed.Host

	var auth smtp.Auth
	if parsed.User != nil {
		password, _ := parsed.User.Password()
		auth = smtp.PlainAuth("", parsed.User.Username(), password, parsed.Hostname())
	}

	msg := strings.Join([]string{
		"From: " + m.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")
	return smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg))
}
