package organization

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jordanlanch/assetdesk/pkg/database"
	"github.com/jordanlanch/assetdesk/pkg/models"
	"github.com/jordanlanch/assetdesk/pkg/plans"
)

// ErrSlugTaken is returned when an organization slug is already in use
var ErrSlugTaken = errors.New("organization slug already taken")

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Organization is a tenant and its mirrored billing state
type Organization struct {
	ID                   int
	Name                 string
	Slug                 string
	SubscriptionTier     string
	SubscriptionStatus   string
	CurrentPeriodEnd     *time.Time
	StripeCustomerID     *string
	StripeSubscriptionID *string
	BillingEventAt       *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Summary returns the organization as embedded in user responses
func (o *Organization) Summary() *models.OrganizationSummary {
	return &models.OrganizationSummary{ID: o.ID, Name: o.Name, Slug: o.Slug}
}

// SubscriptionUpdate describes a change to the mirrored billing state.
// Nil fields are left untouched.
type SubscriptionUpdate struct {
	Tier                 *string
	Status               *string
	CurrentPeriodEnd     *time.Time
	ClearPeriodEnd       bool
	StripeSubscriptionID *string
	ClearSubscriptionID  bool
	BillingEventAt       *time.Time
}

var columns = []string{
	"id", "name", "slug", "subscription_tier", "subscription_status", "current_period_end",
	"stripe_customer_id", "stripe_subscription_id", "billing_event_at", "created_at", "updated_at",
}

// Service handles organization persistence
type Service struct {
	db   *database.Client
	conn dialect.ExecQuerier
}

// NewService creates a new organization service
func NewService(db *database.Client) *Service {
	return &Service{db: db, conn: db.Driver}
}

// Tx returns a copy of the service bound to a transaction
func (s *Service) Tx(tx dialect.ExecQuerier) *Service {
	return &Service{db: s.db, conn: tx}
}

// IsValidSlug reports whether slug has only lowercase letters, digits and single hyphens
func IsValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}

// Create inserts a new organization on the FREE tier
func (s *Service) Create(ctx context.Context, name, slug string) (*Organization, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	slug = strings.ToLower(slug)
	if !IsValidSlug(slug) {
		return nil, errors.New("slug must contain only letters, numbers, and hyphens")
	}

	now := time.Now().UTC()
	org := &Organization{
		Name:               name,
		Slug:               slug,
		SubscriptionTier:   string(plans.Free),
		SubscriptionStatus: plans.StatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	id, err := database.InsertID(ctx, s.conn, s.db.Builder().
		Insert(database.OrganizationsTable).
		Columns("name", "slug", "subscription_tier", "subscription_status", "created_at", "updated_at").
		Values(org.Name, org.Slug, org.SubscriptionTier, org.SubscriptionStatus, now, now))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	org.ID = id
	return org, nil
}

func (s *Service) selectOne(ctx context.Context, p *entsql.Predicate) (*Organization, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var org *Organization
	err := database.Query(ctx, s.conn, s.db.Builder().
		Select(columns...).
		From(entsql.Table(database.OrganizationsTable)).
		Where(p).
		Limit(1), func(rows *entsql.Rows) error {
		o, err := scan(rows)
		org = o
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query organization: %w", err)
	}
	if org == nil {
		return nil, database.ErrNotFound
	}
	return org, nil
}

// Get returns the organization with id
func (s *Service) Get(ctx context.Context, id int) (*Organization, error) {
	return s.selectOne(ctx, entsql.EQ("id", id))
}

// GetBySlug returns the organization with slug
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Organization, error) {
	return s.selectOne(ctx, entsql.EQ("slug", slug))
}

// GetByStripeSubscriptionID returns the organization mirroring the subscription
func (s *Service) GetByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*Organization, error) {
	return s.selectOne(ctx, entsql.EQ("stripe_subscription_id", subscriptionID))
}

// GetByStripeCustomerID returns the organization owning the billing customer
func (s *Service) GetByStripeCustomerID(ctx context.Context, customerID string) (*Organization, error) {
	return s.selectOne(ctx, entsql.EQ("stripe_customer_id", customerID))
}

// ListWithSubscription returns every organization holding an external subscription id
func (s *Service) ListWithSubscription(ctx context.Context) ([]*Organization, error) {
	var orgs []*Organization
	err := database.Query(ctx, s.conn, s.db.Builder().
		Select(columns...).
		From(entsql.Table(database.OrganizationsTable)).
		Where(entsql.NotNull("stripe_subscription_id")).
		OrderBy("id"), func(rows *entsql.Rows) error {
		o, err := scan(rows)
		if err != nil {
			return err
		}
		orgs = append(orgs, o)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return orgs, nil
}

// IDs returns the id of every organization in ascending order
func (s *Service) IDs(ctx context.Context) ([]int, error) {
	var ids []int
	err := database.Query(ctx, s.conn, s.db.Builder().
		Select("id").
		From(entsql.Table(database.OrganizationsTable)).
		OrderBy("id"), func(rows *entsql.Rows) error {
		var id int
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list organization ids: %w", err)
	}
	return ids, nil
}

// SetStripeCustomerID persists the external billing customer of an organization
func (s *Service) SetStripeCustomerID(ctx context.Context, id int, customerID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	n, err := database.Exec(ctx, s.conn, s.db.Builder().
		Update(database.OrganizationsTable).
		Set("stripe_customer_id", customerID).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id)))
	if err != nil {
		return fmt.Errorf("failed to set stripe customer: %w", err)
	}
	if n == 0 {
		return database.ErrNotFound
	}
	return nil
}

// UpdateSubscription overwrites the mirrored billing state
func (s *Service) UpdateSubscription(ctx context.Context, id int, u SubscriptionUpdate) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	upd := s.db.Builder().
		Update(database.OrganizationsTable).
		Set("updated_at", time.Now().UTC())

	if u.Tier != nil {
		upd.Set("subscription_tier", *u.Tier)
	}
	if u.Status != nil {
		upd.Set("subscription_status", *u.Status)
	}
	switch {
	case u.ClearPeriodEnd:
		upd.SetNull("current_period_end")
	case u.CurrentPeriodEnd != nil:
		upd.Set("current_period_end", u.CurrentPeriodEnd.UTC())
	}
	switch {
	case u.ClearSubscriptionID:
		upd.SetNull("stripe_subscription_id")
	case u.StripeSubscriptionID != nil:
		upd.Set("stripe_subscription_id", *u.StripeSubscriptionID)
	}
	if u.BillingEventAt != nil {
		upd.Set("billing_event_at", u.BillingEventAt.UTC())
	}

	n, err := database.Exec(ctx, s.conn, upd.Where(entsql.EQ("id", id)))
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if n == 0 {
		return database.ErrNotFound
	}
	return nil
}

// GetSubscriptionState returns the tier and billing status of an organization
func (s *Service) GetSubscriptionState(ctx context.Context, id int) (string, string, error) {
	org, err := s.Get(ctx, id)
	if err != nil {
		return "", "", err
	}
	return org.SubscriptionTier, org.SubscriptionStatus, nil
}

// CountUsage counts the organization's resources of kind
func (s *Service) CountUsage(ctx context.Context, id int, kind plans.Kind) (int, error) {
	var table string
	switch kind {
	case plans.KindAsset:
		table = database.AssetsTable
	case plans.KindTicket:
		table = database.TicketsTable
	case plans.KindUser:
		table = database.UsersTable
	default:
		return 0, fmt.Errorf("unknown resource kind %q", kind)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return database.Count(ctx, s.conn, s.db.Builder().
		Select(entsql.Count("*")).
		From(entsql.Table(table)).
		Where(entsql.EQ("organization_id", id)))
}

// Usage returns all resource counts of the organization
func (s *Service) Usage(ctx context.Context, id int) (*models.UsageInfo, error) {
	usage := &models.UsageInfo{}
	for kind, dst := range map[plans.Kind]*int{
		plans.KindAsset:  &usage.Assets,
		plans.KindTicket: &usage.Tickets,
		plans.KindUser:   &usage.Users,
	} {
		n, err := s.CountUsage(ctx, id, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to count %ss: %w", kind, err)
		}
		*dst = n
	}
	return usage, nil
}

func scan(rows *entsql.Rows) (*Organization, error) {
	var (
		o          Organization
		periodEnd  sql.NullTime
		customerID sql.NullString
		subID      sql.NullString
		eventAt    sql.NullTime
	)
	if err := rows.Scan(&o.ID, &o.Name, &o.Slug, &o.SubscriptionTier, &o.SubscriptionStatus, &periodEnd,
		&customerID, &subID, &eventAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	if periodEnd.Valid {
		t := periodEnd.Time.UTC()
		o.CurrentPeriodEnd = &t
	}
	if customerID.Valid {
		o.StripeCustomerID = &customerID.String
	}
	if subID.Valid {
		o.StripeSubscriptionID = &subID.String
	}
	if eventAt.Valid {
		t := eventAt.Time.UTC()
		o.BillingEventAt = &t
	}
	return &o, nil
}
