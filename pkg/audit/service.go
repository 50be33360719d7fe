// Package audit records an organization-scoped trail of security and billing events.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jordanlanch/assetdesk/pkg/database"
	"github.com/jordanlanch/assetdesk/pkg/logger"
	"github.com/jordanlanch/assetdesk/pkg/models"
)

// Actions
const (
	ActionUserRegister       = "user.register"
	ActionUserLogin          = "user.login"
	ActionUserInvite         = "user.invite"
	ActionAssetCreate        = "asset.create"
	ActionTicketCreate       = "ticket.create"
	ActionTicketClose        = "ticket.close"
	ActionTicketExport       = "ticket.export"
	ActionSubscriptionChange = "subscription.change"
)

// Listing bounds
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

var columns = []string{
	"id", "action", "user_id", "resource_type", "resource_id",
	"ip_address", "user_agent", "metadata", "created_at",
}

// LogEntry represents an audit log entry
type LogEntry struct {
	OrganizationID int
	UserID         *int
	Action         string
	ResourceType   string
	ResourceID     string
	IPAddress      string
	UserAgent      string
	Metadata       map[string]any
}

// Service handles audit logging
type Service struct {
	db  *database.Client
	log logger.Logger
	now func() time.Time
}

// NewService creates a new audit service
func NewService(db *database.Client, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{db: db, log: log, now: time.Now}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Log creates a new audit log entry
func (s *Service) Log(ctx context.Context, entry LogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var metadata any
	if len(entry.Metadata) > 0 {
		data, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode audit metadata: %w", err)
		}
		metadata = string(data)
	}

	var userID any
	if entry.UserID != nil {
		userID = *entry.UserID
	}

	_, err := database.InsertID(ctx, s.db.Driver, s.db.Builder().
		Insert(database.AuditLogsTable).
		Columns("organization_id", "user_id", "action", "resource_type", "resource_id",
			"ip_address", "user_agent", "metadata", "created_at").
		Values(entry.OrganizationID, userID, entry.Action, nullable(entry.ResourceType), nullable(entry.ResourceID),
			nullable(entry.IPAddress), nullable(entry.UserAgent), metadata, s.now().UTC()))
	if err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// Record writes entry and only logs a failure. A nil service records nothing.
func (s *Service) Record(ctx context.Context, entry LogEntry) {
	if s == nil {
		return
	}
	if err := s.Log(ctx, entry); err != nil {
		s.log.Error("audit log write failed", "action", entry.Action, "organization_id", entry.OrganizationID, "error", err)
	}
}

// List returns the organization's most recent entries, newest first
func (s *Service) List(ctx context.Context, orgID, limit int) ([]models.AuditLogResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	out := []models.AuditLogResponse{}
	err := database.Query(ctx, s.db.Driver, s.db.Builder().
		Select(columns...).
		From(entsql.Table(database.AuditLogsTable)).
		Where(entsql.EQ("organization_id", orgID)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).
		Limit(limit), func(rows *entsql.Rows) error {
		entry, err := scan(rows)
		if err != nil {
			return err
		}
		out = append(out, *entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return out, nil
}

func scan(rows *entsql.Rows) (*models.AuditLogResponse, error) {
	var (
		e        models.AuditLogResponse
		userID   sql.NullInt64
		metadata sql.NullString

		resourceType, resourceID, ipAddress, userAgent sql.NullString
	)
	if err := rows.Scan(&e.ID, &e.Action, &userID, &resourceType, &resourceID,
		&ipAddress, &userAgent, &metadata, &e.CreatedAt); err != nil {
		return nil, err
	}

	if userID.Valid {
		id := int(userID.Int64)
		e.UserID = &id
	}
	e.ResourceType = stringPtr(resourceType)
	e.ResourceID = stringPtr(resourceID)
	e.IPAddress = stringPtr(ipAddress)
	e.UserAgent = stringPtr(userAgent)
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode audit metadata: %w", err)
		}
	}
	return &e, nil
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
