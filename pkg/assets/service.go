// Package assets stores the equipment tracked by each organization.
package assets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jordanlanch/assetdesk/pkg/database"
	"github.com/jordanlanch/assetdesk/pkg/domain"
	"github.com/jordanlanch/assetdesk/pkg/models"
)

// Asset is a piece of equipment owned by an organization
type Asset struct {
	ID             int
	Name           string
	SerialNumber   string
	Type           string
	Status         string
	OrganizationID int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Response converts the asset to its API representation
func (a *Asset) Response() models.AssetResponse {
	return models.AssetResponse{
		ID:             a.ID,
		Name:           a.Name,
		SerialNumber:   a.SerialNumber,
		Type:           a.Type,
		Status:         a.Status,
		OrganizationID: a.OrganizationID,
		CreatedAt:      a.CreatedAt,
	}
}

var columns = []string{"id", "name", "serial_number", "type", "status", "organization_id", "created_at", "updated_at"}

// Invalidator drops cached aggregates of an organization
type Invalidator interface {
	Invalidate(ctx context.Context, orgID int)
}

// Service handles organization-scoped asset persistence
type Service struct {
	db    *database.Client
	cache Invalidator
}

// NewService creates a new asset service
func NewService(db *database.Client) *Service {
	return &Service{db: db}
}

// SetInvalidator sets the cache dropped whenever an asset is added
func (s *Service) SetInvalidator(inv Invalidator) { s.cache = inv }

// List returns the organization's assets ordered by name
func (s *Service) List(ctx context.Context, orgID int) ([]*Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var assets []*Asset
	err := database.Query(ctx, s.db.Driver, s.db.Builder().
		Select(columns...).
		From(entsql.Table(database.AssetsTable)).
		Where(entsql.EQ("organization_id", orgID)).
		OrderBy("name", "id"), func(rows *entsql.Rows) error {
		a, err := scan(rows)
		if err != nil {
			return err
		}
		assets = append(assets, a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return assets, nil
}

// Get returns the asset with id if it belongs to the organization.
// Assets of other organizations are reported as not found.
func (s *Service) Get(ctx context.Context, orgID, id int) (*Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var asset *Asset
	err := database.Query(ctx, s.db.Driver, s.db.Builder().
		Select(columns...).
		From(entsql.Table(database.AssetsTable)).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("organization_id", orgID),
		)).
		Limit(1), func(rows *entsql.Rows) error {
		a, err := scan(rows)
		asset = a
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	if asset == nil {
		return nil, database.ErrNotFound
	}
	return asset, nil
}

// Create registers an asset in the organization
func (s *Service) Create(ctx context.Context, orgID int, req models.CreateAssetRequest) (*Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	status := req.Status
	if status == "" {
		status = domain.AssetOperational
	}

	now := time.Now().UTC()
	asset := &Asset{
		Name:           strings.TrimSpace(req.Name),
		SerialNumber:   strings.TrimSpace(req.SerialNumber),
		Type:           strings.TrimSpace(req.Type),
		Status:         status,
		OrganizationID: orgID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	id, err := database.InsertID(ctx, s.db.Driver, s.db.Builder().
		Insert(database.AssetsTable).
		Columns("name", "serial_number", "type", "status", "organization_id", "created_at", "updated_at").
		Values(asset.Name, asset.SerialNumber, asset.Type, asset.Status, orgID, now, now))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, domain.NewConflictError("An asset with this serial number already exists.")
		}
		if database.IsForeignKeyViolation(err) {
			return nil, domain.NewNotFoundError("Organization not found")
		}
		return nil, fmt.Errorf("failed to create asset: %w", err)
	}

	asset.ID = id
	if s.cache != nil {
		s.cache.Invalidate(ctx, orgID)
	}
	return asset, nil
}

// Count returns the number of assets in the organization
func (s *Service) Count(ctx context.Context, orgID int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	n, err := database.Count(ctx, s.db.Driver, s.db.Builder().
		Select(entsql.Count("*")).
		From(entsql.Table(database.AssetsTable)).
		Where(entsql.EQ("organization_id", orgID)))
	if err != nil {
		return 0, fmt.Errorf("failed to count assets: %w", err)
	}
	return n, nil
}

// IsNotFound reports whether err means the asset is absent from the organization
func IsNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}

func scan(rows *entsql.Rows) (*Asset, error) {
	var a Asset
	if err := rows.Scan(&a.ID, &a.Name, &a.SerialNumber, &a.Type, &a.Status, &a.OrganizationID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
