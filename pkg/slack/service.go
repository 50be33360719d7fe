// Package slack posts ticket and subscription events to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jordanlanch/assetdesk/pkg/domain"
	"github.com/jordanlanch/assetdesk/pkg/logger"
	"github.com/jordanlanch/assetdesk/pkg/organization"
)

// ErrSlackSendFailed is returned when Slack rejects a message
var ErrSlackSendFailed = errors.New("failed to send Slack notification")

// Message represents a Slack message
type Message struct {
	Text string `json:"text"`
}

// Client sends messages to Slack
type Client interface {
	SendMessage(ctx context.Context, msg Message) error
}

// WebhookClient implements Client using Slack incoming webhooks
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
	maxTries   uint
	newBackOff func() backoff.BackOff
}

// NewWebhookClient creates a new Slack webhook client
func NewWebhookClient(webhookURL string) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxTries:   3,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			return b
		},
	}
}

// SendMessage posts msg to the webhook. Rate limiting and server errors are
// retried; other rejections are permanent.
func (c *WebhookClient) SendMessage(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	_, err = backoff.Retry(ctx, func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
		if err != nil {
			return 0, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return resp.StatusCode, fmt.Errorf("%w: status %d", ErrSlackSendFailed, resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return resp.StatusCode, backoff.Permanent(fmt.Errorf("%w: status %d", ErrSlackSendFailed, resp.StatusCode))
		}
		return resp.StatusCode, nil
	}, backoff.WithBackOff(c.newBackOff()), backoff.WithMaxTries(c.maxTries))
	return err
}

// OrganizationGetter resolves organization names for messages
type OrganizationGetter interface {
	Get(ctx context.Context, id int) (*organization.Organization, error)
}

// Service formats application events as Slack messages
type Service struct {
	client Client
	orgs   OrganizationGetter
	log    logger.Logger
}

var _ domain.ChatNotifier = (*Service)(nil)

// NewService creates a new Slack service. orgs may be nil.
func NewService(client Client, orgs OrganizationGetter, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{client: client, orgs: orgs, log: log}
}

func (s *Service) organizationLabel(ctx context.Context, orgID int) string {
	if s.orgs != nil {
		if org, err := s.orgs.Get(ctx, orgID); err == nil {
			return org.Name
		}
	}
	return fmt.Sprintf("#%d", orgID)
}

// NotifyTicketCreated announces a new failure report
func (s *Service) NotifyTicketCreated(ctx context.Context, orgID int, ticket domain.TicketNotice) error {
	text := fmt.Sprintf("🛠️ *New Ticket #%d*\n"+
		"• Organization: %s\n"+
		"• Asset: %s (%s)\n"+
		"• Reported by: %s\n"+
		"• Description: %s",
		ticket.TicketID, s.organizationLabel(ctx, orgID),
		ticket.AssetName, ticket.SerialNumber, ticket.ReporterName, ticket.Description)

	return s.client.SendMessage(ctx, Message{Text: text})
}

// NotifySubscriptionChange announces a plan change applied from billing
func (s *Service) NotifySubscriptionChange(ctx context.Context, orgID int, tier, status string) error {
	text := fmt.Sprintf("🚀 *Subscription Updated*\n"+
		"• Organization: %s\n"+
		"• Tier: %s\n"+
		"• Status: %s",
		s.organizationLabel(ctx, orgID), tier, status)

	return s.client.SendMessage(ctx, Message{Text: text})
}
