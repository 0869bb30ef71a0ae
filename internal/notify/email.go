package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/smiledent/clinic-site/pkg/logging"
)

// EmailSender defines the interface for sending emails.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage represents an email to be sent.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string
	HTML    string
}

// SendGridSender sends emails via SendGrid API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridSender creates a new SendGrid email sender, nil without an API key.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = "Клиника"
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

// Send sends an email via SendGrid.
func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.To)
	html := msg.HTML
	if html == "" {
		html = msg.Body
	}
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, html)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid returned error status", "status", response.StatusCode, "to", msg.To)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}
	return nil
}

var subjects = map[Kind]string{
	KindAppointment:    "Новая запись на приём",
	KindOrder:          "Новый заказ в магазине",
	KindLoyalty:        "Заявка в программу лояльности",
	KindJobApplication: "Отклик на вакансию",
	KindReview:         "Новый отзыв",
}

// EmailRelay mails submission summaries to a fixed list of staff addresses.
type EmailRelay struct {
	sender     EmailSender
	recipients []string
}

// NewEmailRelay returns nil when sender or recipients are missing.
func NewEmailRelay(sender EmailSender, recipients []string) *EmailRelay {
	if sender == nil || len(recipients) == 0 {
		return nil
	}
	return &EmailRelay{sender: sender, recipients: recipients}
}

func (e *EmailRelay) Name() string { return "email" }

// Relay sends one message per recipient and joins the failures.
func (e *EmailRelay) Relay(ctx context.Context, s Submission) error {
	subject, ok := subjects[s.Kind]
	if !ok {
		subject = "Новая заявка с сайта"
	}
	var errs []error
	for _, to := range e.recipients {
		if err := e.sender.Send(ctx, EmailMessage{To: to, Subject: subject, Body: s.Summary()}); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", to, err))
		}
	}
	return errors.Join(errs...)
}
