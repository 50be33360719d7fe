// Package tickets implements the failure ticket lifecycle: an OPEN ticket is
// filed against an asset and an admin moves it to CLOSED. There is no reopen.
package tickets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jordanlanch/assetdesk/pkg/assets"
	"github.com/jordanlanch/assetdesk/pkg/database"
	"github.com/jordanlanch/assetdesk/pkg/domain"
	"github.com/jordanlanch/assetdesk/pkg/logger"
	"github.com/jordanlanch/assetdesk/pkg/metrics"
	"github.com/jordanlanch/assetdesk/pkg/models"
	"github.com/jordanlanch/assetdesk/pkg/users"
)

const (
	msgOpenTicketExists = "This asset already has an active failure report."
	msgAssetNotFound    = "Asset not found or access denied"
	msgTicketNotFound   = "Ticket not found or access denied"
	msgAlreadyClosed    = "Ticket is already closed"
)

// Invalidator drops cached aggregates of an organization
type Invalidator interface {
	Invalidate(ctx context.Context, orgID int)
}

// Ticket is a failure report filed against an asset
type Ticket struct {
	ID             int
	Title          string
	Description    string
	Status         string
	UserID         int
	AssetID        *int
	OrganizationID int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

var columns = []string{"id", "title", "description", "status", "user_id", "asset_id", "organization_id", "created_at", "updated_at"}

// Service handles ticket creation, listing and closing
type Service struct {
	db      *database.Client
	assets  *assets.Service
	users   *users.Service
	email   domain.EmailSender
	chat    domain.ChatNotifier
	cache   Invalidator
	metrics *metrics.Metrics
	log     logger.Logger
	wg      sync.WaitGroup
}

// NewService creates a new ticket service
func NewService(db *database.Client, assetSvc *assets.Service, userSvc *users.Service, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{db: db, assets: assetSvc, users: userSvc, log: log}
}

// SetEmailSender sets the sender used for admin notifications
func (s *Service) SetEmailSender(sender domain.EmailSender) { s.email = sender }

// SetChatNotifier sets the channel that announces new tickets
func (s *Service) SetChatNotifier(chat domain.ChatNotifier) { s.chat = chat }

// SetInvalidator sets the cache dropped whenever tickets change
func (s *Service) SetInvalidator(inv Invalidator) { s.cache = inv }

// SetMetrics sets the metrics recorder
func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// Create files a failure report for an asset of the organization.
// Only one OPEN ticket may exist per asset; the title is derived from the asset name.
func (s *Service) Create(ctx context.Context, orgID, userID int, req models.CreateTicketRequest) (*models.TicketResponse, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, domain.NewValidationError("Description is required")
	}
	assetID := int(req.AssetID)
	if assetID <= 0 {
		return nil, domain.NewValidationError("Invalid asset ID")
	}

	asset, err := s.assets.Get(ctx, orgID, assetID)
	if err != nil {
		if assets.IsNotFound(err) {
			return nil, domain.NewNotFoundError(msgAssetNotFound)
		}
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	open, err := database.Count(ctx, s.db.Driver, s.db.Builder().
		Select(entsql.Count("*")).
		From(entsql.Table(database.TicketsTable)).
		Where(entsql.And(
			entsql.EQ("asset_id", assetID),
			entsql.EQ("organization_id", orgID),
			entsql.EQ("status", domain.TicketOpen),
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to check open tickets: %w", err)
	}
	if open > 0 {
		return nil, domain.NewConflictError(msgOpenTicketExists)
	}

	now := time.Now().UTC()
	title := "Issue with " + asset.Name
	id, err := database.InsertID(ctx, s.db.Driver, s.db.Builder().
		Insert(database.TicketsTable).
		Columns("title", "description", "status", "user_id", "asset_id", "organization_id", "created_at", "updated_at").
		Values(title, description, domain.TicketOpen, userID, assetID, orgID, now, now))
	if err != nil {
		// A concurrent report won the race for the partial unique index.
		if database.IsUniqueViolation(err) {
			return nil, domain.NewConflictError(msgOpenTicketExists)
		}
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	s.metrics.RecordTicketCreated()
	s.invalidate(ctx, orgID)

	ticket, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	notice := domain.TicketNotice{
		TicketID:     ticket.ID,
		Title:        ticket.Title,
		Description:  ticket.Description,
		AssetName:    asset.Name,
		SerialNumber: asset.SerialNumber,
		ReporterName: reporterName(ticket),
	}
	s.notifyAdmins(orgID, notice)
	s.announce(orgID, notice)

	return ticket, nil
}

// List returns the organization's tickets newest first with reporter and asset expanded
func (s *Service) List(ctx context.Context, orgID int) ([]models.TicketResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tickets, err := s.query(ctx, entsql.EQ("organization_id", orgID))
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, orgID, tickets)
}

// Get returns one ticket of the organization with reporter and asset expanded
func (s *Service) Get(ctx context.Context, orgID, id int) (*models.TicketResponse, error) {
	tickets, err := s.query(ctx, entsql.And(
		entsql.EQ("id", id),
		entsql.EQ("organization_id", orgID),
	))
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, domain.NewNotFoundError(msgTicketNotFound)
	}

	out, err := s.expand(ctx, orgID, tickets)
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// Close moves an OPEN ticket of the organization to CLOSED.
// Closing a CLOSED ticket is rejected and changes nothing.
func (s *Service) Close(ctx context.Context, orgID, id int) (*models.TicketResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	n, err := database.Exec(ctx, s.db.Driver, s.db.Builder().
		Update(database.TicketsTable).
		Set("status", domain.TicketClosed).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("organization_id", orgID),
			entsql.EQ("status", domain.TicketOpen),
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to close ticket: %w", err)
	}

	ticket, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, domain.NewConflictError(msgAlreadyClosed)
	}

	s.metrics.RecordTicketClosed()
	s.invalidate(ctx, orgID)
	return ticket, nil
}

// Wait blocks until pending notifications have been delivered or dropped
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) query(ctx context.Context, p *entsql.Predicate) ([]*Ticket, error) {
	var tickets []*Ticket
	err := database.Query(ctx, s.db.Driver, s.db.Builder().
		Select(columns...).
		From(entsql.Table(database.TicketsTable)).
		Where(p).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")), func(rows *entsql.Rows) error {
		t, err := scan(rows)
		if err != nil {
			return err
		}
		tickets = append(tickets, t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	return tickets, nil
}

// expand loads reporters and assets in one query each.
func (s *Service) expand(ctx context.Context, orgID int, tickets []*Ticket) ([]models.TicketResponse, error) {
	var userIDs, assetIDs []any
	for _, t := range tickets {
		userIDs = append(userIDs, t.UserID)
		if t.AssetID != nil {
			assetIDs = append(assetIDs, *t.AssetID)
		}
	}

	reporters := make(map[int]*models.TicketUser)
	if len(userIDs) > 0 {
		err := database.Query(ctx, s.db.Driver, s.db.Builder().
			Select("id", "name", "email").
			From(entsql.Table(database.UsersTable)).
			Where(entsql.In("id", userIDs...)), func(rows *entsql.Rows) error {
			var u models.TicketUser
			if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
				return err
			}
			reporters[u.ID] = &u
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load reporters: %w", err)
		}
	}

	assetsByID := make(map[int]*models.TicketAsset)
	if len(assetIDs) > 0 {
		err := database.Query(ctx, s.db.Driver, s.db.Builder().
			Select("id", "name", "serial_number", "type").
			From(entsql.Table(database.AssetsTable)).
			Where(entsql.And(
				entsql.In("id", assetIDs...),
				entsql.EQ("organization_id", orgID),
			)), func(rows *entsql.Rows) error {
			var a models.TicketAsset
			if err := rows.Scan(&a.ID, &a.Name, &a.SerialNumber, &a.Type); err != nil {
				return err
			}
			assetsByID[a.ID] = &a
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load assets: %w", err)
		}
	}

	out := make([]models.TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		resp := models.TicketResponse{
			ID:             t.ID,
			Title:          t.Title,
			Description:    t.Description,
			Status:         t.Status,
			UserID:         t.UserID,
			AssetID:        t.AssetID,
			OrganizationID: t.OrganizationID,
			CreatedAt:      t.CreatedAt,
			UpdatedAt:      t.UpdatedAt,
			User:           reporters[t.UserID],
		}
		if t.AssetID != nil {
			resp.Asset = assetsByID[*t.AssetID]
		}
		out = append(out, resp)
	}
	return out, nil
}

// notifyAdmins emails every ADMIN of the organization in the background.
// Failures are logged and never reach the caller.
func (s *Service) notifyAdmins(orgID int, notice domain.TicketNotice) {
	if s.email == nil || s.users == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		admins, err := s.users.Admins(ctx, orgID)
		if err != nil {
			s.log.Error("failed to load admins for ticket notification", "ticket_id", notice.TicketID, "error", err)
			return
		}
		for _, admin := range admins {
			if err := s.email.SendTicketNotification(ctx, admin.Email, admin.Name, notice); err != nil {
				s.log.Warn("failed to send ticket notification",
					"ticket_id", notice.TicketID, "admin_id", admin.ID, "error", err)
			}
		}
	}()
}

// announce posts the ticket to the chat channel in the background
func (s *Service) announce(orgID int, notice domain.TicketNotice) {
	if s.chat == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.chat.NotifyTicketCreated(ctx, orgID, notice); err != nil {
			s.log.Warn("failed to announce ticket", "ticket_id", notice.TicketID, "error", err)
		}
	}()
}

func (s *Service) invalidate(ctx context.Context, orgID int) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, orgID)
	}
}

func reporterName(t *models.TicketResponse) string {
	if t.User == nil {
		return "Unknown"
	}
	return t.User.Name
}

// IsNotFound reports whether err means the ticket is absent from the organization
func IsNotFound(err error) bool {
	return domain.IsNotFound(err) || errors.Is(err, database.ErrNotFound)
}

func scan(rows *entsql.Rows) (*Ticket, error) {
	var (
		t       Ticket
		assetID sql.NullInt64
	)
	if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.UserID, &assetID,
		&t.OrganizationID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if assetID.Valid {
		id := int(assetID.Int64)
		t.AssetID = &id
	}
	return &t, nil
}
