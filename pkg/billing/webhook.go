package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jordanlanch/assetdesk/pkg/audit"
	"github.com/jordanlanch/assetdesk/pkg/database"
	"github.com/jordanlanch/assetdesk/pkg/organization"
	"github.com/jordanlanch/assetdesk/pkg/plans"
	"github.com/stripe/stripe-go/v76"
)

// Handled Stripe event types
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// dedupeTTL is how long a processed event id is remembered
const dedupeTTL = 24 * time.Hour

// SignatureError reports a webhook payload that failed verification
type SignatureError struct {
	Err error
}

func (e *SignatureError) Error() string {
	return e.Err.Error()
}

func (e *SignatureError) Unwrap() error {
	return e.Err
}

// IsSignatureError reports whether err is a webhook verification failure
func IsSignatureError(err error) bool {
	var sigErr *SignatureError
	return errors.As(err, &sigErr)
}

// HandleWebhook verifies and applies one Stripe event.
// payload must be the unparsed request body. Events that cannot be correlated
// with an organization are acknowledged; only storage failures return an error,
// which makes Stripe redeliver the event later.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.api == nil {
		return ErrNotConfigured
	}

	event, err := s.api.ConstructEvent(payload, signature)
	if err != nil {
		return &SignatureError{Err: err}
	}

	s.log.Info("stripe webhook received", "event_id", event.ID, "type", event.Type)

	claimed, release := s.claim(ctx, event.ID)
	if !claimed {
		s.log.Info("duplicate stripe webhook ignored", "event_id", event.ID)
		s.metrics.RecordWebhookEvent(string(event.Type), "duplicate")
		return nil
	}

	result, err := s.dispatch(ctx, event)
	if err != nil {
		release()
		s.metrics.RecordWebhookEvent(string(event.Type), "failed")
		return fmt.Errorf("failed to handle %s: %w", event.Type, err)
	}

	s.metrics.RecordWebhookEvent(string(event.Type), result)
	return nil
}

// claim marks the event as being processed. Without a cache every delivery is processed.
func (s *Service) claim(ctx context.Context, eventID string) (bool, func()) {
	noop := func() {}
	if s.cache == nil || eventID == "" {
		return true, noop
	}

	key := "billing:webhook:" + eventID
	ok, err := s.cache.SetNX(ctx, key, "1", dedupeTTL)
	if err != nil {
		s.log.Warn("webhook dedupe unavailable", "event_id", eventID, "error", err)
		return true, noop
	}
	if !ok {
		return false, noop
	}

	return true, func() {
		if err := s.cache.Delete(context.WithoutCancel(ctx), key); err != nil {
			s.log.Warn("failed to release webhook claim", "event_id", eventID, "error", err)
		}
	}
}

func (s *Service) dispatch(ctx context.Context, event stripe.Event) (string, error) {
	eventAt := time.Unix(event.Created, 0).UTC()

	switch event.Type {
	case EventCheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, event, eventAt)
	case EventSubscriptionUpdated:
		return s.handleSubscriptionChanged(ctx, event, eventAt, false)
	case EventSubscriptionDeleted:
		return s.handleSubscriptionChanged(ctx, event, eventAt, true)
	default:
		s.log.Debug("unhandled stripe webhook event", "type", event.Type)
		return "ignored", nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event stripe.Event, eventAt time.Time) (string, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return "", fmt.Errorf("failed to unmarshal session: %w", err)
	}

	orgID, err := strconv.Atoi(sess.Metadata["organizationId"])
	if err != nil {
		s.log.Warn("checkout session without organization", "session_id", sess.ID)
		return "skipped", nil
	}
	plan, ok := s.catalog.Get(sess.Metadata["tier"])
	if !ok || plan.Tier == plans.Free {
		s.log.Warn("checkout session with unknown tier", "session_id", sess.ID, "tier", sess.Metadata["tier"])
		return "skipped", nil
	}

	tier := string(plan.Tier)
	status := StatusActive
	update := organization.SubscriptionUpdate{
		Tier:           &tier,
		Status:         &status,
		BillingEventAt: &eventAt,
	}

	if sess.Subscription != nil && sess.Subscription.ID != "" {
		subID := sess.Subscription.ID
		update.StripeSubscriptionID = &subID
		update.CurrentPeriodEnd = s.periodEnd(ctx, sess.Subscription)
	}

	if err := s.orgs.UpdateSubscription(ctx, orgID, update); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.log.Warn("checkout completed for unknown organization", "organization_id", orgID)
			return "skipped", nil
		}
		return "", err
	}

	s.log.Info("organization upgraded", "organization_id", orgID, "tier", tier)
	s.metrics.RecordSubscriptionSold(tier)
	s.recordChange(ctx, orgID, event, tier, status)
	s.sendConfirmation(ctx, orgID, plan.Name)
	return "applied", nil
}

// periodEnd reads the period end from the session's subscription, fetching it
// when the event only carries its id.
func (s *Service) periodEnd(ctx context.Context, sub *stripe.Subscription) *time.Time {
	if sub.CurrentPeriodEnd == 0 {
		fetched, err := s.api.GetSubscription(ctx, sub.ID)
		if err != nil {
			s.log.Warn("failed to fetch subscription period", "subscription_id", sub.ID, "error", err)
			return nil
		}
		sub = fetched
	}
	if sub.CurrentPeriodEnd == 0 {
		return nil
	}
	end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	return &end
}

// handleSubscriptionChanged mirrors an updated subscription, or resets the
// organization to FREE when it was deleted. Events older than the last one
// applied are skipped; replays of the same event are applied again.
func (s *Service) handleSubscriptionChanged(ctx context.Context, event stripe.Event, eventAt time.Time, deleted bool) (string, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return "", fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	org, err := s.orgs.GetByStripeSubscriptionID(ctx, sub.ID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.log.Warn("subscription not linked to an organization", "subscription_id", sub.ID)
			return "skipped", nil
		}
		return "", err
	}

	if org.BillingEventAt != nil && eventAt.Before(*org.BillingEventAt) {
		s.log.Info("stale subscription event skipped",
			"organization_id", org.ID, "event_id", event.ID, "event_at", eventAt, "last_applied", *org.BillingEventAt)
		return "stale", nil
	}

	var update organization.SubscriptionUpdate
	if deleted {
		update = canceledUpdate()
	} else {
		update = mirrorUpdate(&sub)
	}
	update.BillingEventAt = &eventAt

	if err := s.orgs.UpdateSubscription(ctx, org.ID, update); err != nil {
		return "", err
	}

	s.log.Info("subscription mirrored", "organization_id", org.ID, "status", sub.Status, "deleted", deleted)
	tier := org.SubscriptionTier
	if update.Tier != nil {
		tier = *update.Tier
	}
	s.recordChange(ctx, org.ID, event, tier, *update.Status)
	return "applied", nil
}

// recordChange writes the audit entry of an applied event and announces it.
// Neither failure affects the webhook response.
func (s *Service) recordChange(ctx context.Context, orgID int, event stripe.Event, tier, status string) {
	s.audit.Record(ctx, audit.LogEntry{
		OrganizationID: orgID,
		Action:         audit.ActionSubscriptionChange,
		ResourceType:   "organization",
		ResourceID:     strconv.Itoa(orgID),
		Metadata: map[string]any{
			"source":    "stripe",
			"eventId":   event.ID,
			"eventType": string(event.Type),
			"tier":      tier,
			"status":    status,
		},
	})

	if s.chat != nil {
		if err := s.chat.NotifySubscriptionChange(ctx, orgID, tier, status); err != nil {
			s.log.Warn("failed to announce subscription change", "organization_id", orgID, "error", err)
		}
	}
}

// sendConfirmation emails the organization's first admin. Failures are logged only.
func (s *Service) sendConfirmation(ctx context.Context, orgID int, planName string) {
	if s.email == nil || s.users == nil {
		return
	}

	admins, err := s.users.Admins(ctx, orgID)
	if err != nil || len(admins) == 0 {
		if err != nil {
			s.log.Warn("failed to load admin for subscription email", "organization_id", orgID, "error", err)
		}
		return
	}

	admin := admins[0]
	if err := s.email.SendSubscriptionConfirmation(ctx, admin.Email, admin.Name, planName); err != nil {
		s.log.Warn("failed to send subscription confirmation", "organization_id", orgID, "error", err)
	}
}
