package plans

import (
	"context"
	"errors"
	"fmt"

	"github.com/jordanlanch/assetdesk/pkg/database"
	"github.com/jordanlanch/assetdesk/pkg/domain"
)

// StatusActive is the billing status that keeps a paid tier usable
const StatusActive = "active"

// Subscription is an organization's resolved plan
type Subscription struct {
	OrganizationID int
	Tier           Tier
	Status         string
	Plan           Plan
}

// Store loads subscription state and current usage.
// GetSubscriptionState returns database.ErrNotFound for unknown organizations.
type Store interface {
	GetSubscriptionState(ctx context.Context, orgID int) (tier, status string, err error)
	CountUsage(ctx context.Context, orgID int, kind Kind) (int, error)
}

// Gate enforces per-tier resource limits before creation.
// The count and the following insert are not atomic, so concurrent
// requests can overshoot a limit slightly.
type Gate struct {
	catalog *Catalog
	store   Store
}

// NewGate creates a plan-limit gate
func NewGate(catalog *Catalog, store Store) *Gate {
	return &Gate{catalog: catalog, store: store}
}

// Catalog returns the plan catalogue used by the gate
func (g *Gate) Catalog() *Catalog {
	return g.catalog
}

// Resolve loads the organization's subscription without counting usage
func (g *Gate) Resolve(ctx context.Context, orgID int) (*Subscription, error) {
	tier, status, err := g.store.GetSubscriptionState(ctx, orgID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, domain.NewNotFoundError("Organization not found")
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	plan := g.catalog.Resolve(tier)
	return &Subscription{
		OrganizationID: orgID,
		Tier:           plan.Tier,
		Status:         status,
		Plan:           plan,
	}, nil
}

// Check verifies that one more resource of kind may be created.
// A paid tier requires an active status; FREE has no billing requirement.
// A limit of N allows N resources and rejects the (N+1)th.
func (g *Gate) Check(ctx context.Context, orgID int, kind Kind) (*Subscription, error) {
	sub, err := g.Resolve(ctx, orgID)
	if err != nil {
		return nil, err
	}

	if sub.Tier != Free && sub.Status != StatusActive {
		return nil, domain.NewSubscriptionInactiveError()
	}

	limit := sub.Plan.Limit(kind)
	if limit == Unlimited {
		return sub, nil
	}

	current, err := g.store.CountUsage(ctx, orgID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to count %ss: %w", kind, err)
	}

	if current >= limit {
		return nil, &domain.LimitError{
			Kind:    string(kind),
			Current: current,
			Limit:   limit,
			Tier:    string(sub.Tier),
			Message: fmt.Sprintf("Your %s plan allows up to %d %ss. Please upgrade to add more.", sub.Plan.Name, limit, kind),
		}
	}

	return sub, nil
}
