// Package billing mirrors Stripe subscription state onto organizations.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jordanlanch/assetdesk/pkg/audit"
	"github.com/jordanlanch/assetdesk/pkg/database"
	"github.com/jordanlanch/assetdesk/pkg/domain"
	"github.com/jordanlanch/assetdesk/pkg/logger"
	"github.com/jordanlanch/assetdesk/pkg/metrics"
	"github.com/jordanlanch/assetdesk/pkg/models"
	"github.com/jordanlanch/assetdesk/pkg/organization"
	"github.com/jordanlanch/assetdesk/pkg/plans"
	"github.com/jordanlanch/assetdesk/pkg/users"
	"github.com/stripe/stripe-go/v76"
)

// ErrNotConfigured is returned by Stripe operations when no API key is set
var ErrNotConfigured = errors.New("billing is not configured")

// Subscription statuses written locally
const (
	StatusActive   = plans.StatusActive
	StatusCanceled = "canceled"
)

// demoPeriod is the billing period granted by a demo upgrade
const demoPeriod = 30 * 24 * time.Hour

// Config holds billing settings
type Config struct {
	FrontendURL string
	DemoMode    bool
}

// Service handles checkout, portal, webhook reconciliation and subscription status
type Service struct {
	api     StripeAPI
	orgs    *organization.Service
	users   *users.Service
	catalog *plans.Catalog
	config  Config
	cache   domain.CacheRepository
	email   domain.EmailSender
	chat    domain.ChatNotifier
	metrics *metrics.Metrics
	audit   *audit.Service
	log     logger.Logger
	now     func() time.Time
}

// NewService creates a new billing service. api may be nil when Stripe is not configured.
func NewService(api StripeAPI, orgs *organization.Service, userSvc *users.Service, catalog *plans.Catalog, config Config, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		api:     api,
		orgs:    orgs,
		users:   userSvc,
		catalog: catalog,
		config:  config,
		log:     log,
		now:     time.Now,
	}
}

// Enabled reports whether a Stripe client is configured
func (s *Service) Enabled() bool { return s.api != nil }

// SetCache sets the cache used to remember processed webhook events
func (s *Service) SetCache(c domain.CacheRepository) { s.cache = c }

// SetEmailSender sets the sender used for subscription confirmations
func (s *Service) SetEmailSender(e domain.EmailSender) { s.email = e }

// SetChatNotifier sets the channel that announces applied subscription changes
func (s *Service) SetChatNotifier(chat domain.ChatNotifier) { s.chat = chat }

// SetMetrics sets the metrics recorder
func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// SetAudit sets the audit log that records applied subscription changes
func (s *Service) SetAudit(a *audit.Service) { s.audit = a }

// Plans returns the public tier catalogue
func (s *Service) Plans() []models.PlanResponse {
	all := s.catalog.All()
	out := make([]models.PlanResponse, 0, len(all))
	for _, p := range all {
		out = append(out, p.Response())
	}
	return out
}

// Status returns the organization's tier, billing status, plan and usage
func (s *Service) Status(ctx context.Context, orgID int) (*models.SubscriptionStatusResponse, error) {
	org, err := s.organization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	usage, err := s.orgs.Usage(ctx, orgID)
	if err != nil {
		return nil, err
	}

	plan := s.catalog.Resolve(org.SubscriptionTier)
	return &models.SubscriptionStatusResponse{
		Tier:             org.SubscriptionTier,
		Status:           org.SubscriptionStatus,
		CurrentPeriodEnd: org.CurrentPeriodEnd,
		Plan:             models.PlanSummary{Name: plan.Name, Price: plan.Price, Limits: plan.Limits},
		Usage:            *usage,
	}, nil
}

// CreateCheckout starts a hosted checkout for tier. The organization's Stripe
// customer is created on first use. Local tier state only changes when the
// completion webhook arrives.
func (s *Service) CreateCheckout(ctx context.Context, orgID int, email, tier string) (*models.URLResponse, error) {
	if s.api == nil {
		return nil, ErrNotConfigured
	}

	org, err := s.organization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	plan, ok := s.catalog.Get(tier)
	if !ok || plan.Tier == plans.Free {
		return nil, domain.NewValidationError("Invalid subscription tier")
	}
	if org.SubscriptionTier == string(plan.Tier) {
		return nil, domain.NewBadRequestError("You are already on this plan")
	}
	if !plan.Purchasable() {
		return nil, domain.NewBadRequestError("Stripe price ID not configured for this plan")
	}

	customerID, err := s.ensureCustomer(ctx, org, email)
	if err != nil {
		return nil, err
	}

	orgRef := strconv.Itoa(orgID)
	sess, err := s.api.NewCheckoutSession(ctx, &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(plan.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.config.FrontendURL + "/billing?success=true"),
		CancelURL:  stripe.String(s.config.FrontendURL + "/billing?canceled=true"),
		Metadata: map[string]string{
			"organizationId": orgRef,
			"tier":           string(plan.Tier),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	s.log.Info("checkout session created", "organization_id", orgID, "tier", plan.Tier, "session_id", sess.ID)
	return &models.URLResponse{URL: sess.URL}, nil
}

func (s *Service) ensureCustomer(ctx context.Context, org *organization.Organization, email string) (string, error) {
	if org.StripeCustomerID != nil && *org.StripeCustomerID != "" {
		return *org.StripeCustomerID, nil
	}

	cust, err := s.api.NewCustomer(ctx, &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(org.Name),
		Metadata: map[string]string{
			"organizationId": strconv.Itoa(org.ID),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create customer: %w", err)
	}

	if err := s.orgs.SetStripeCustomerID(ctx, org.ID, cust.ID); err != nil {
		return "", fmt.Errorf("failed to save customer ID: %w", err)
	}
	return cust.ID, nil
}

// CreatePortal opens the Stripe customer portal for the organization
func (s *Service) CreatePortal(ctx context.Context, orgID int) (*models.URLResponse, error) {
	if s.api == nil {
		return nil, ErrNotConfigured
	}

	org, err := s.organization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org.StripeCustomerID == nil || *org.StripeCustomerID == "" {
		return nil, domain.NewBadRequestError("No active subscription found")
	}

	sess, err := s.api.NewPortalSession(ctx, &stripe.BillingPortalSessionParams{
		Customer:  org.StripeCustomerID,
		ReturnURL: stripe.String(s.config.FrontendURL + "/billing"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create portal session: %w", err)
	}
	return &models.URLResponse{URL: sess.URL}, nil
}

// DemoUpgrade switches the organization's tier without a payment.
// It is only available when demo mode is enabled.
func (s *Service) DemoUpgrade(ctx context.Context, orgID int, tier string) (*models.SubscriptionStatusResponse, error) {
	if !s.config.DemoMode {
		return nil, domain.NewForbiddenError("Demo upgrades are disabled")
	}

	plan, ok := s.catalog.Get(tier)
	if !ok {
		return nil, domain.NewValidationError("Invalid subscription tier")
	}

	status := StatusActive
	tierName := string(plan.Tier)
	update := organization.SubscriptionUpdate{Tier: &tierName, Status: &status}
	if plan.Tier == plans.Free {
		update.ClearPeriodEnd = true
	} else {
		periodEnd := s.now().UTC().Add(demoPeriod)
		update.CurrentPeriodEnd = &periodEnd
	}

	if err := s.orgs.UpdateSubscription(ctx, orgID, update); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, domain.NewNotFoundError("Organization not found")
		}
		return nil, err
	}

	s.log.Info("demo upgrade applied", "organization_id", orgID, "tier", tierName)
	return s.Status(ctx, orgID)
}

// SyncSubscriptions re-reads every known subscription from Stripe and mirrors
// it locally. It returns the number of organizations updated.
func (s *Service) SyncSubscriptions(ctx context.Context) (int, error) {
	if s.api == nil {
		return 0, nil
	}

	orgs, err := s.orgs.ListWithSubscription(ctx)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, org := range orgs {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}

		sub, err := s.api.GetSubscription(ctx, *org.StripeSubscriptionID)
		if err != nil {
			s.log.Warn("failed to fetch subscription", "organization_id", org.ID, "subscription_id", *org.StripeSubscriptionID, "error", err)
			continue
		}

		now := s.now().UTC()
		var update organization.SubscriptionUpdate
		if sub.Status == stripe.SubscriptionStatusCanceled {
			update = canceledUpdate()
		} else {
			update = mirrorUpdate(sub)
			if tier, ok := s.tierOf(sub); ok {
				name := string(tier)
				update.Tier = &name
			}
		}
		update.BillingEventAt = &now

		if err := s.orgs.UpdateSubscription(ctx, org.ID, update); err != nil {
			s.log.Error("failed to sync subscription", "organization_id", org.ID, "error", err)
			continue
		}
		synced++
	}
	return synced, nil
}

func (s *Service) tierOf(sub *stripe.Subscription) (plans.Tier, bool) {
	if sub.Items == nil {
		return "", false
	}
	for _, item := range sub.Items.Data {
		if item.Price == nil {
			continue
		}
		if tier, ok := s.catalog.TierForPriceID(item.Price.ID); ok {
			return tier, true
		}
	}
	return "", false
}

func (s *Service) organization(ctx context.Context, orgID int) (*organization.Organization, error) {
	org, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, domain.NewNotFoundError("Organization not found")
		}
		return nil, err
	}
	return org, nil
}

// mirrorUpdate copies status and period end verbatim from Stripe
func mirrorUpdate(sub *stripe.Subscription) organization.SubscriptionUpdate {
	status := string(sub.Status)
	update := organization.SubscriptionUpdate{Status: &status}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		update.CurrentPeriodEnd = &end
	}
	return update
}

// canceledUpdate resets the organization to FREE and forgets the subscription
func canceledUpdate() organization.SubscriptionUpdate {
	tier := string(plans.Free)
	status := StatusCanceled
	return organization.SubscriptionUpdate{
		Tier:                &tier,
		Status:              &status,
		ClearPeriodEnd:      true,
		ClearSubscriptionID: true,
	}
}
