package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jordanlanch/assetdesk/pkg/cache"
	"github.com/jordanlanch/assetdesk/pkg/database"
	"github.com/jordanlanch/assetdesk/pkg/database/dbtest"
	"github.com/jordanlanch/assetdesk/pkg/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC)

type seeded struct {
	db     *database.Client
	acme   int
	other  int
	userID int
}

func insert(t *testing.T, db *database.Client, table string, cols []string, vals ...any) int {
	t.Helper()
	id, err := database.InsertID(context.Background(), db.Driver, db.Builder().Insert(table).Columns(cols...).Values(vals...))
	require.NoError(t, err)
	return id
}

func seed(t *testing.T) *seeded {
	t.Helper()
	db := dbtest.Open(t)
	s := &seeded{db: db}

	orgCols := []string{"name", "slug", "created_at", "updated_at"}
	s.acme = insert(t, db, database.OrganizationsTable, orgCols, "Acme Corp", "acme-corp", now, now)
	s.other = insert(t, db, database.OrganizationsTable, orgCols, "Tech Startup", "tech-startup", now, now)

	s.userID = insert(t, db, database.UsersTable,
		[]string{"name", "email", "password_hash", "role", "organization_id", "created_at", "updated_at"},
		"Bob", "bob@acme.com", "x", domain.RoleEmployee, s.acme, now, now)

	assetCols := []string{"name", "serial_number", "type", "status", "organization_id", "created_at", "updated_at"}
	laptop := insert(t, db, database.AssetsTable, assetCols, "MacBook Pro 14", "SN-001", "Laptop", domain.AssetOperational, s.acme, now, now)
	phone := insert(t, db, database.AssetsTable, assetCols, "iPhone 15 Pro", "SN-003", "Phone", domain.AssetOperational, s.acme, now, now)
	foreign := insert(t, db, database.AssetsTable, assetCols, "Dell XPS 15", "TS-002", "Laptop", domain.AssetOperational, s.other, now, now)

	ticketCols := []string{"title", "description", "status", "user_id", "asset_id", "organization_id", "created_at", "updated_at"}
	ticket := func(asset any, org int, status string, created time.Time) {
		insert(t, db, database.TicketsTable, ticketCols, "Issue", "desc", status, s.userID, asset, org, created, created)
	}
	ticket(laptop, s.acme, domain.TicketOpen, now.Add(-1*time.Hour))
	ticket(laptop, s.acme, domain.TicketClosed, now.Add(-2*time.Hour))
	ticket(laptop, s.acme, domain.TicketClosed, now.AddDate(0, 0, -3))
	ticket(phone, s.acme, domain.TicketOpen, now.AddDate(0, 0, -10))
	ticket(nil, s.acme, domain.TicketClosed, now.AddDate(0, 0, -3))
	ticket(foreign, s.other, domain.TicketOpen, now.Add(-1*time.Hour))

	return s
}

func TestDashboard(t *testing.T) {
	s := seed(t)
	svc := NewService(s.db, nil, nil)

	d, err := svc.Dashboard(context.Background(), s.acme, now)
	require.NoError(t, err)

	assert.Equal(t, 5, d.Summary.TotalTickets)
	assert.Equal(t, 2, d.Summary.OpenTickets)
	assert.Equal(t, 3, d.Summary.ClosedTickets)
	assert.Equal(t, 2, d.Summary.TotalAssets)

	require.Len(t, d.TicketsByAsset, 3)
	assert.Equal(t, "MacBook Pro 14", d.TicketsByAsset[0].AssetName)
	assert.Equal(t, 3, d.TicketsByAsset[0].Count)
	assert.ElementsMatch(t, []string{"Unknown", "iPhone 15 Pro"},
		[]string{d.TicketsByAsset[1].AssetName, d.TicketsByAsset[2].AssetName})

	// Sparse: only days with tickets inside the 7 day window, oldest first.
	require.Len(t, d.Timeline, 2)
	assert.Equal(t, "2026-10-13", d.Timeline[0].Date)
	assert.Equal(t, 0, d.Timeline[0].Open)
	assert.Equal(t, 2, d.Timeline[0].Closed)
	assert.Equal(t, "2026-10-16", d.Timeline[1].Date)
	assert.Equal(t, 1, d.Timeline[1].Open)
	assert.Equal(t, 1, d.Timeline[1].Closed)
}

func TestDashboard_TenantScoped(t *testing.T) {
	s := seed(t)
	svc := NewService(s.db, nil, nil)

	d, err := svc.Dashboard(context.Background(), s.other, now)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Summary.TotalTickets)
	assert.Equal(t, 1, d.Summary.TotalAssets)
	require.Len(t, d.TicketsByAsset, 1)
	assert.Equal(t, "Dell XPS 15", d.TicketsByAsset[0].AssetName)

	empty, err := svc.Dashboard(context.Background(), 9999, now)
	require.NoError(t, err)
	assert.Zero(t, empty.Summary.TotalTickets)
	assert.Empty(t, empty.TicketsByAsset)
	assert.Empty(t, empty.Timeline)
}

func TestDashboard_Cache(t *testing.T) {
	s := seed(t)
	mr := miniredis.RunT(t)
	rc := &cache.Client{Redis: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = rc.Close() })

	svc := NewService(s.db, rc, nil)
	ctx := context.Background()

	first, err := svc.Dashboard(ctx, s.acme, now)
	require.NoError(t, err)
	assert.True(t, mr.Exists("analytics:dashboard:1"))
	assert.Equal(t, CacheTTL, mr.TTL("analytics:dashboard:1"))

	// Rows written behind the cache are not visible until invalidation.
	_, err = s.db.Driver.DB().ExecContext(ctx, "DELETE FROM tickets WHERE organization_id = ?", s.acme)
	require.NoError(t, err)

	cached, err := svc.Dashboard(ctx, s.acme, now)
	require.NoError(t, err)
	assert.Equal(t, first.Summary, cached.Summary)

	svc.Invalidate(ctx, s.acme)
	assert.False(t, mr.Exists("analytics:dashboard:1"))

	fresh, err := svc.Dashboard(ctx, s.acme, now)
	require.NoError(t, err)
	assert.Zero(t, fresh.Summary.TotalTickets)
}
