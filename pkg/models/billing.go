package models

import "time"

// CheckoutRequest represents a request to create a checkout session.
// FREE has no external price and cannot be purchased.
type CheckoutRequest struct {
	Tier string `json:"tier" validate:"required,oneof=PRO ENTERPRISE"`
}

// DemoUpgradeRequest switches tiers without a payment provider
type DemoUpgradeRequest struct {
	Tier string `json:"tier" validate:"required,oneof=FREE PRO ENTERPRISE"`
}

// URLResponse carries a redirect URL to an externally hosted page
type URLResponse struct {
	URL string `json:"url"`
}

// WebhookResponse acknowledges a webhook delivery
type WebhookResponse struct {
	Received bool `json:"received"`
}

// PlanLimits holds per-resource limits, -1 means unlimited
type PlanLimits struct {
	MaxAssets  int `json:"maxAssets"`
	MaxTickets int `json:"maxTickets"`
	MaxUsers   int `json:"maxUsers"`
}

// PlanResponse describes one tier of the catalogue
type PlanResponse struct {
	Tier   string     `json:"tier"`
	Name   string     `json:"name"`
	Price  int        `json:"price"`
	Limits PlanLimits `json:"limits"`
}

// PlanSummary is the plan embedded in the subscription status
type PlanSummary struct {
	Name   string     `json:"name"`
	Price  int        `json:"price"`
	Limits PlanLimits `json:"limits"`
}

// UsageInfo holds current resource counts of an organization
type UsageInfo struct {
	Assets  int `json:"assets"`
	Tickets int `json:"tickets"`
	Users   int `json:"users"`
}

// SubscriptionStatusResponse represents the organization's current subscription
type SubscriptionStatusResponse struct {
	Tier             string      `json:"tier"`
	Status           string      `json:"status"`
	CurrentPeriodEnd *time.Time  `json:"currentPeriodEnd"`
	Plan             PlanSummary `json:"plan"`
	Usage            UsageInfo   `json:"usage"`
}

// LimitReachedResponse is returned when a plan limit blocks a creation
type LimitReachedResponse struct {
	Error        string `json:"error"`
	Message      string `json:"message"`
	CurrentCount int    `json:"currentCount"`
	Limit        int    `json:"limit"`
	Tier         string `json:"tier"`
}
