package domain

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by CacheRepository.Get when the key does not exist
var ErrCacheMiss = errors.New("cache miss")

// Roles
const (
	RoleAdmin    = "ADMIN"
	RoleEmployee = "EMPLOYEE"
)

// Ticket statuses
const (
	TicketOpen   = "OPEN"
	TicketClosed = "CLOSED"
)

// Asset statuses
const (
	AssetOperational = "OPERATIONAL"
	AssetRepair      = "REPAIR"
	AssetRetired     = "RETIRED"
)

// CacheRepository defines caching operations.
// Get returns ErrCacheMiss when the key does not exist.
type CacheRepository interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Close() error
}

// EmailSender defines the outbound notifications sent by the application
type EmailSender interface {
	SendWelcomeEmail(ctx context.Context, to, name, organization string) error
	SendTicketNotification(ctx context.Context, to, adminName string, ticket TicketNotice) error
	SendSubscriptionConfirmation(ctx context.Context, to, name, planName string) error
}

// TicketNotice carries the fields rendered in a ticket notification email
type TicketNotice struct {
	TicketID     int
	Title        string
	Description  string
	AssetName    string
	SerialNumber string
	ReporterName string
}

// ChatNotifier posts operational events to a team chat channel
type ChatNotifier interface {
	NotifyTicketCreated(ctx context.Context, orgID int, ticket TicketNotice) error
	NotifySubscriptionChange(ctx context.Context, orgID int, tier, status string) error
}
