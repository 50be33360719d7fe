package email

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jordanlanch/assetdesk/pkg/domain"
	"github.com/jordanlanch/assetdesk/pkg/logger"
	"github.com/jordanlanch/assetdesk/pkg/metrics"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Client is the subset of the SendGrid client used to deliver messages
type Client interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Service handles email sending.
// With a SendGrid client messages are delivered with retries; without one they are logged.
type Service struct {
	fromEmail  string
	fromName   string
	baseURL    string
	client     Client
	maxTries   uint
	newBackOff func() backoff.BackOff
	log        logger.Logger
	metrics    *metrics.Metrics
}

var _ domain.EmailSender = (*Service)(nil)

// NewService creates a new email service.
// If sendGridAPIKey is empty, emails are logged to the console (development mode).
func NewService(fromEmail, fromName, baseURL, sendGridAPIKey string, log logger.Logger) *Service {
	var client Client
	if sendGridAPIKey != "" {
		client = sendgrid.NewSendClient(sendGridAPIKey)
	}
	return NewWithClient(fromEmail, fromName, baseURL, client, log)
}

// NewWithClient creates an email service delivering through client, which may be nil
func NewWithClient(fromEmail, fromName, baseURL string, client Client, lg logger.Logger) *Service {
	if lg == nil {
		lg = logger.Nop()
	}
	if client != nil {
		log.Printf("✅ Email service initialized with SendGrid")
	} else {
		log.Printf("⚠️  Email service in console-only mode (set SENDGRID_API_KEY for production)")
	}

	return &Service{
		fromEmail: fromEmail,
		fromName:  fromName,
		baseURL:   baseURL,
		client:    client,
		maxTries:  3,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			return b
		},
		log: lg,
	}
}

// SetMetrics sets the metrics recorder
func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// SendWelcomeEmail greets a newly created account
func (s *Service) SendWelcomeEmail(ctx context.Context, to, name, organization string) error {
	return s.send(ctx, "welcome", to, name, welcomeMessage(name, organization, s.baseURL))
}

// SendTicketNotification tells an admin about a new failure report
func (s *Service) SendTicketNotification(ctx context.Context, to, adminName string, ticket domain.TicketNotice) error {
	return s.send(ctx, "ticket_notification", to, adminName, ticketMessage(adminName, ticket, s.baseURL))
}

// SendSubscriptionConfirmation confirms an activated paid plan
func (s *Service) SendSubscriptionConfirmation(ctx context.Context, to, name, planName string) error {
	return s.send(ctx, "subscription_confirmation", to, name, subscriptionMessage(name, planName, s.baseURL))
}

func (s *Service) send(ctx context.Context, template, to, name string, msg message) error {
	if s.client == nil {
		s.logToConsole(to, name, msg.subject)
		s.metrics.RecordEmail(template, "skipped")
		return nil
	}

	if err := s.deliver(ctx, to, name, msg); err != nil {
		s.metrics.RecordEmail(template, "failed")
		return err
	}
	s.metrics.RecordEmail(template, "sent")
	return nil
}

// deliver sends through SendGrid. Server errors are retried with exponential
// backoff; client errors are permanent.
func (s *Service) deliver(ctx context.Context, to, name string, msg message) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	message := mail.NewSingleEmail(from, msg.subject, mail.NewEmail(name, to), msg.plainText, msg.html)

	_, err := backoff.Retry(ctx, func() (int, error) {
		resp, err := s.client.SendWithContext(ctx, message)
		if err != nil {
			return 0, err
		}
		switch {
		case resp.StatusCode >= 500:
			return resp.StatusCode, fmt.Errorf("sendgrid returned error status: %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return resp.StatusCode, backoff.Permanent(fmt.Errorf("sendgrid rejected message with status %d: %s", resp.StatusCode, resp.Body))
		}
		return resp.StatusCode, nil
	}, backoff.WithBackOff(s.newBackOff()), backoff.WithMaxTries(s.maxTries))
	if err != nil {
		s.log.Error("failed to send email", "to", to, "subject", msg.subject, "error", err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.log.Info("email sent", "to", to, "subject", msg.subject)
	return nil
}

// logToConsole logs email details (development mode)
func (s *Service) logToConsole(to, name, subject string) {
	log.Printf("📧 [EMAIL] %s", subject)
	log.Printf("   To: %s <%s>", name, to)
	log.Printf("   From: %s <%s>", s.fromName, s.fromEmail)
	log.Printf("   ⚠️  Email NOT sent (development mode)")
}
