package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jordanlanch/assetdesk/pkg/database"
	"github.com/jordanlanch/assetdesk/pkg/domain"
	"github.com/jordanlanch/assetdesk/pkg/models"
)

// UnknownAsset names tickets whose asset no longer exists
const UnknownAsset = "Unknown"

// TimelineDays is the length of the trailing timeline window
const TimelineDays = 7

func (s *Service) compute(ctx context.Context, orgID int, now time.Time) (*models.DashboardResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	summary, err := s.summary(ctx, orgID)
	if err != nil {
		return nil, err
	}

	byAsset, err := s.ticketsByAsset(ctx, orgID)
	if err != nil {
		return nil, err
	}

	timeline, err := s.timeline(ctx, orgID, now.UTC().AddDate(0, 0, -TimelineDays))
	if err != nil {
		return nil, err
	}

	return &models.DashboardResponse{
		Summary:        *summary,
		TicketsByAsset: byAsset,
		Timeline:       timeline,
	}, nil
}

func (s *Service) summary(ctx context.Context, orgID int) (*models.DashboardSummary, error) {
	summary := &models.DashboardSummary{}

	err := database.Query(ctx, s.db.Driver, s.db.Builder().
		Select("status", entsql.Count("*")).
		From(entsql.Table(database.TicketsTable)).
		Where(entsql.EQ("organization_id", orgID)).
		GroupBy("status"), func(rows *entsql.Rows) error {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return err
		}
		summary.TotalTickets += n
		switch status {
		case domain.TicketOpen:
			summary.OpenTickets = n
		case domain.TicketClosed:
			summary.ClosedTickets = n
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}

	summary.TotalAssets, err = database.Count(ctx, s.db.Driver, s.db.Builder().
		Select(entsql.Count("*")).
		From(entsql.Table(database.AssetsTable)).
		Where(entsql.EQ("organization_id", orgID)))
	if err != nil {
		return nil, fmt.Errorf("failed to count assets: %w", err)
	}
	return summary, nil
}

// ticketsByAsset groups tickets per asset, most reported first.
func (s *Service) ticketsByAsset(ctx context.Context, orgID int) ([]models.AssetTicketCount, error) {
	type group struct {
		assetID sql.NullInt64
		count   int
	}
	var groups []group

	err := database.Query(ctx, s.db.Driver, s.db.Builder().
		Select("asset_id", entsql.Count("*")).
		From(entsql.Table(database.TicketsTable)).
		Where(entsql.EQ("organization_id", orgID)).
		GroupBy("asset_id"), func(rows *entsql.Rows) error {
		var g group
		if err := rows.Scan(&g.assetID, &g.count); err != nil {
			return err
		}
		groups = append(groups, g)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to group tickets by asset: %w", err)
	}

	var ids []any
	for _, g := range groups {
		if g.assetID.Valid {
			ids = append(ids, g.assetID.Int64)
		}
	}

	names := make(map[int64]string)
	if len(ids) > 0 {
		err = database.Query(ctx, s.db.Driver, s.db.Builder().
			Select("id", "name").
			From(entsql.Table(database.AssetsTable)).
			Where(entsql.And(
				entsql.In("id", ids...),
				entsql.EQ("organization_id", orgID),
			)), func(rows *entsql.Rows) error {
			var (
				id   int64
				name string
			)
			if err := rows.Scan(&id, &name); err != nil {
				return err
			}
			names[id] = name
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load asset names: %w", err)
		}
	}

	out := make([]models.AssetTicketCount, 0, len(groups))
	for _, g := range groups {
		name, ok := names[g.assetID.Int64]
		if !g.assetID.Valid || !ok {
			name = UnknownAsset
		}
		out = append(out, models.AssetTicketCount{AssetName: name, Count: g.count})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].AssetName < out[j].AssetName
	})
	return out, nil
}

// timeline buckets tickets created since by UTC day and status.
// Days without tickets are omitted.
func (s *Service) timeline(ctx context.Context, orgID int, since time.Time) ([]models.TimelinePoint, error) {
	byDate := make(map[string]*models.TimelinePoint)

	err := database.Query(ctx, s.db.Driver, s.db.Builder().
		Select("created_at", "status").
		From(entsql.Table(database.TicketsTable)).
		Where(entsql.And(
			entsql.EQ("organization_id", orgID),
			entsql.GTE("created_at", since),
		)), func(rows *entsql.Rows) error {
		var (
			createdAt time.Time
			status    string
		)
		if err := rows.Scan(&createdAt, &status); err != nil {
			return err
		}

		date := createdAt.UTC().Format("2006-01-02")
		point, ok := byDate[date]
		if !ok {
			point = &models.TimelinePoint{Date: date}
			byDate[date] = point
		}
		if status == domain.TicketOpen {
			point.Open++
		} else {
			point.Closed++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket timeline: %w", err)
	}

	timeline := make([]models.TimelinePoint, 0, len(byDate))
	for _, p := range byDate {
		timeline = append(timeline, *p)
	}
	sort.Slice(timeline, func(i, j int) bool { return timeline[i].Date < timeline[j].Date })
	return timeline, nil
}
