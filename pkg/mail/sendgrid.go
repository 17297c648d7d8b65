package mail

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/aozora-juku/lesson-match-api/pkg/config"
)

// Message is a plain-text outbound notification.
type Message struct {
	To      []string
	Subject string
	Text    string
}

// Sender delivers notification messages. Delivery failures must be surfaced
// as errors so the dispatch layer can log and retry; they are never
// propagated to the operation that triggered the notification.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SendGridSender delivers mail through the SendGrid v3 API.
type SendGridSender struct {
	client *sendgrid.Client
	from   *sgmail.Email
	logger *zap.Logger
}

// NewSendGrid builds a SendGrid-backed sender.
func NewSendGrid(cfg config.MailConfig, logger *zap.Logger) *SendGridSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(cfg.SendGridKey),
		from:   sgmail.NewEmail(cfg.FromName, cfg.FromEmail),
		logger: logger,
	}
}

// Send delivers a single message to all recipients.
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return nil
	}

	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail("", to))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))

	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}

	s.logger.Debug("mail sent", zap.Strings("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

// LogSender writes messages to the log instead of delivering them. Used when
// outbound mail is disabled (development, tests).
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender builds a log-only sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send logs the message and reports success.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Sugar().Infow("mail (disabled)", "to", msg.To, "subject", msg.Subject, "text", msg.Text)
	return nil
}
