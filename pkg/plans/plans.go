// Package plans holds the subscription tier catalogue and the plan-limit gate.
package plans

import (
	"strings"

	"github.com/jordanlanch/assetdesk/pkg/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tier is a named subscription level
type Tier string

// Tiers
const (
	Free       Tier = "FREE"
	Pro        Tier = "PRO"
	Enterprise Tier = "ENTERPRISE"
)

// Unlimited disables the count check for a resource kind
const Unlimited = -1

// Kind is a metered resource
type Kind string

// Metered resources
const (
	KindAsset  Kind = "asset"
	KindTicket Kind = "ticket"
	KindUser   Kind = "user"
)

// Plan describes one tier: price in cents, external price id and limits
type Plan struct {
	Tier    Tier
	Name    string
	Price   int
	PriceID string
	Limits  models.PlanLimits
}

// Limit returns the plan's cap for kind
func (p Plan) Limit(kind Kind) int {
	switch kind {
	case KindAsset:
		return p.Limits.MaxAssets
	case KindTicket:
		return p.Limits.MaxTickets
	case KindUser:
		return p.Limits.MaxUsers
	default:
		return 0
	}
}

// Purchasable reports whether the plan can be bought through checkout
func (p Plan) Purchasable() bool {
	return p.Tier != Free && p.PriceID != ""
}

// Response converts the plan to its API representation
func (p Plan) Response() models.PlanResponse {
	return models.PlanResponse{Tier: string(p.Tier), Name: p.Name, Price: p.Price, Limits: p.Limits}
}

// Catalog is the fixed set of plans offered
type Catalog struct {
	plans map[Tier]Plan
	order []Tier
}

// NewCatalog builds the catalogue with the external price ids of the paid tiers
func NewCatalog(proPriceID, enterprisePriceID string) *Catalog {
	c := &Catalog{
		plans: make(map[Tier]Plan, 3),
		order: []Tier{Free, Pro, Enterprise},
	}
	c.plans[Free] = Plan{
		Tier:   Free,
		Name:   displayName(Free),
		Price:  0,
		Limits: models.PlanLimits{MaxAssets: 5, MaxTickets: 10, MaxUsers: 2},
	}
	c.plans[Pro] = Plan{
		Tier:    Pro,
		Name:    displayName(Pro),
		Price:   2900,
		PriceID: proPriceID,
		Limits:  models.PlanLimits{MaxAssets: 50, MaxTickets: Unlimited, MaxUsers: 10},
	}
	c.plans[Enterprise] = Plan{
		Tier:    Enterprise,
		Name:    displayName(Enterprise),
		Price:   9900,
		PriceID: enterprisePriceID,
		Limits:  models.PlanLimits{MaxAssets: Unlimited, MaxTickets: Unlimited, MaxUsers: Unlimited},
	}
	return c
}

// Get looks up a plan by tier name
func (c *Catalog) Get(tier string) (Plan, bool) {
	p, ok := c.plans[Tier(strings.ToUpper(tier))]
	return p, ok
}

// Resolve returns the plan for tier, falling back to FREE for unknown tiers
func (c *Catalog) Resolve(tier string) Plan {
	if p, ok := c.Get(tier); ok {
		return p
	}
	return c.plans[Free]
}

// All returns the plans ordered from cheapest to most expensive
func (c *Catalog) All() []Plan {
	out := make([]Plan, 0, len(c.order))
	for _, t := range c.order {
		out = append(out, c.plans[t])
	}
	return out
}

// TierForPriceID maps an external price id back to its tier
func (c *Catalog) TierForPriceID(priceID string) (Tier, bool) {
	if priceID == "" {
		return "", false
	}
	for _, p := range c.plans {
		if p.PriceID == priceID {
			return p.Tier, true
		}
	}
	return "", false
}

func displayName(t Tier) string {
	return cases.Title(language.English).String(strings.ToLower(string(t)))
}
