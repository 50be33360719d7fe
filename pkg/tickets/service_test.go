package tickets

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jordanlanch/assetdesk/pkg/assets"
	"github.com/jordanlanch/assetdesk/pkg/database/dbtest"
	"github.com/jordanlanch/assetdesk/pkg/domain"
	"github.com/jordanlanch/assetdesk/pkg/models"
	"github.com/jordanlanch/assetdesk/pkg/organization"
	"github.com/jordanlanch/assetdesk/pkg/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEmailSender records ticket notifications
type mockEmailSender struct {
	mu          sync.Mutex
	notified    []string
	notices     []domain.TicketNotice
	shouldError bool
}

func (m *mockEmailSender) SendWelcomeEmail(ctx context.Context, to, name, org string) error {
	return nil
}

func (m *mockEmailSender) SendTicketNotification(ctx context.Context, to, adminName string, ticket domain.TicketNotice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notified = append(m.notified, to)
	m.notices = append(m.notices, ticket)
	if m.shouldError {
		return errors.New("smtp unavailable")
	}
	return nil
}

func (m *mockEmailSender) SendSubscriptionConfirmation(ctx context.Context, to, name, planName string) error {
	return nil
}

func (m *mockEmailSender) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.notified...)
}

type countingInvalidator struct {
	mu   sync.Mutex
	orgs []int
}

func (c *countingInvalidator) Invalidate(ctx context.Context, orgID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orgs = append(c.orgs, orgID)
}

type fixture struct {
	svc    *Service
	users  *users.Service
	assets *assets.Service
	email  *mockEmailSender
	cache  *countingInvalidator
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	orgs := organization.NewService(db)
	userSvc := users.NewService(db, orgs, "test-secret", 168, nil)
	assetSvc := assets.NewService(db)

	f := &fixture{
		svc:    NewService(db, assetSvc, userSvc, nil),
		users:  userSvc,
		assets: assetSvc,
		email:  &mockEmailSender{},
		cache:  &countingInvalidator{},
	}
	f.svc.SetEmailSender(f.email)
	f.svc.SetInvalidator(f.cache)
	return f
}

// tenant registers an admin, invites an employee and registers one asset.
func (f *fixture) tenant(t *testing.T, admin, employee, serial string) (orgID, adminID, employeeID, assetID int) {
	t.Helper()
	ctx := context.Background()

	resp, err := f.users.Register(ctx, models.RegisterRequest{Name: admin, Email: admin + "@example.com", Password: "secret1"})
	require.NoError(t, err)
	me, err := f.users.Me(ctx, resp.User.ID)
	require.NoError(t, err)
	orgID = *me.OrganizationID

	emp, err := f.users.Invite(ctx, orgID, models.InviteRequest{Name: employee, Email: employee + "@example.com", Password: "secret1"})
	require.NoError(t, err)

	asset, err := f.assets.Create(ctx, orgID, models.CreateAssetRequest{Name: "MacBook Pro 14", SerialNumber: serial, Type: "Laptop"})
	require.NoError(t, err)

	return orgID, resp.User.ID, emp.ID, asset.ID
}

func TestTicketLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	orgID, _, bob, assetID := f.tenant(t, "alice", "bob", "SN-001")

	ticket, err := f.svc.Create(ctx, orgID, bob, models.CreateTicketRequest{Description: "  Screen flickers  ", AssetID: models.ID(assetID)})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketOpen, ticket.Status)
	assert.Equal(t, "Issue with MacBook Pro 14", ticket.Title)
	assert.Equal(t, "Screen flickers", ticket.Description)
	assert.Equal(t, bob, ticket.UserID)
	require.NotNil(t, ticket.User)
	assert.Equal(t, "bob", ticket.User.Name)
	require.NotNil(t, ticket.Asset)
	assert.Equal(t, "SN-001", ticket.Asset.SerialNumber)

	_, err = f.svc.Create(ctx, orgID, bob, models.CreateTicketRequest{Description: "Still broken", AssetID: models.ID(assetID)})
	require.Error(t, err)
	var de *domain.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, domain.ErrCodeConflict, de.Code)
	assert.Equal(t, msgOpenTicketExists, de.Message)

	closed, err := f.svc.Close(ctx, orgID, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketClosed, closed.Status)
	require.NotNil(t, closed.Asset)

	_, err = f.svc.Close(ctx, orgID, ticket.ID)
	assert.True(t, domain.IsConflict(err))

	again, err := f.svc.Get(ctx, orgID, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketClosed, again.Status)
	assert.Equal(t, closed.UpdatedAt, again.UpdatedAt, "rejected close must not mutate the ticket")

	reopened, err := f.svc.Create(ctx, orgID, bob, models.CreateTicketRequest{Description: "Broken again", AssetID: models.ID(assetID)})
	require.NoError(t, err, "a closed ticket frees the asset")
	assert.NotEqual(t, ticket.ID, reopened.ID)

	f.svc.Wait()
	assert.Equal(t, []string{"alice@example.com", "alice@example.com"}, f.email.recipients())
	assert.Equal(t, []int{orgID, orgID, orgID}, f.cache.orgs)
}

func TestCreate_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	orgID, _, bob, assetID := f.tenant(t, "alice", "bob", "SN-001")

	_, err := f.svc.Create(ctx, orgID, bob, models.CreateTicketRequest{Description: "   ", AssetID: models.ID(assetID)})
	assert.True(t, domain.IsValidation(err))

	_, err = f.svc.Create(ctx, orgID, bob, models.CreateTicketRequest{Description: "Broken", AssetID: 0})
	assert.True(t, domain.IsValidation(err))

	_, err = f.svc.Create(ctx, orgID, bob, models.CreateTicketRequest{Description: "Broken", AssetID: 9999})
	assert.True(t, domain.IsNotFound(err))
}

func TestTenantIsolation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	acme, _, bob, acmeAsset := f.tenant(t, "alice", "bob", "SN-001")
	tech, _, dave, techAsset := f.tenant(t, "carol", "dave", "TS-001")

	acmeTicket, err := f.svc.Create(ctx, acme, bob, models.CreateTicketRequest{Description: "Broken", AssetID: models.ID(acmeAsset)})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, tech, dave, models.CreateTicketRequest{Description: "Broken", AssetID: models.ID(techAsset)})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, tech, dave, models.CreateTicketRequest{Description: "Broken", AssetID: models.ID(acmeAsset)})
	assert.True(t, domain.IsNotFound(err), "assets of another organization look absent")

	_, err = f.svc.Close(ctx, tech, acmeTicket.ID)
	assert.True(t, domain.IsNotFound(err), "tickets of another organization look absent")

	list, err := f.svc.List(ctx, acme)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, acme, list[0].OrganizationID)

	ticket, err := f.svc.Get(ctx, acme, acmeTicket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketOpen, ticket.Status)
}

func TestList_NewestFirst(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	orgID, _, bob, first := f.tenant(t, "alice", "bob", "SN-001")

	second, err := f.assets.Create(ctx, orgID, models.CreateAssetRequest{Name: "Dell XPS 15", SerialNumber: "SN-002", Type: "Laptop"})
	require.NoError(t, err)

	a, err := f.svc.Create(ctx, orgID, bob, models.CreateTicketRequest{Description: "Keyboard", AssetID: models.ID(first)})
	require.NoError(t, err)
	b, err := f.svc.Create(ctx, orgID, bob, models.CreateTicketRequest{Description: "Battery", AssetID: models.ID(second.ID)})
	require.NoError(t, err)

	list, err := f.svc.List(ctx, orgID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)
	assert.Equal(t, "Dell XPS 15", list[0].AssetNameOr("Unknown"))
}

func TestNotificationFailureDoesNotFailCreate(t *testing.T) {
	f := setup(t)
	f.email.shouldError = true
	orgID, _, bob, assetID := f.tenant(t, "alice", "bob", "SN-001")

	ticket, err := f.svc.Create(context.Background(), orgID, bob, models.CreateTicketRequest{Description: "Broken", AssetID: models.ID(assetID)})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketOpen, ticket.Status)

	f.svc.Wait()
	require.Len(t, f.email.notices, 1)
	assert.Equal(t, "SN-001", f.email.notices[0].SerialNumber)
	assert.Equal(t, "bob", f.email.notices[0].ReporterName)
}

type recordingChat struct {
	mu      sync.Mutex
	orgs    []int
	notices []domain.TicketNotice
}

func (r *recordingChat) NotifyTicketCreated(ctx context.Context, orgID int, ticket domain.TicketNotice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orgs = append(r.orgs, orgID)
	r.notices = append(r.notices, ticket)
	return errors.New("webhook down")
}

func (r *recordingChat) NotifySubscriptionChange(ctx context.Context, orgID int, tier, status string) error {
	return nil
}

func TestCreate_AnnouncesToChat(t *testing.T) {
	f := setup(t)
	chat := &recordingChat{}
	f.svc.SetChatNotifier(chat)
	orgID, _, bob, assetID := f.tenant(t, "alice", "bob", "SN-002")

	_, err := f.svc.Create(context.Background(), orgID, bob, models.CreateTicketRequest{Description: "Keyboard sticks", AssetID: models.ID(assetID)})
	require.NoError(t, err, "chat failures are not reported to the caller")

	f.svc.Wait()
	assert.Equal(t, []int{orgID}, chat.orgs)
	require.Len(t, chat.notices, 1)
	assert.Equal(t, "SN-002", chat.notices[0].SerialNumber)
}

func TestOpenTicketIndexBacksThePreCheck(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	orgID, _, bob, assetID := f.tenant(t, "alice", "bob", "SN-001")

	_, err := f.svc.Create(ctx, orgID, bob, models.CreateTicketRequest{Description: "Broken", AssetID: models.ID(assetID)})
	require.NoError(t, err)

	// Insert bypassing the pre-check, as a racing request would.
	_, err = f.svc.db.Driver.DB().ExecContext(ctx,
		"INSERT INTO tickets (title, description, status, user_id, asset_id, organization_id, created_at, updated_at) VALUES ('x', 'y', 'OPEN', ?, ?, ?, datetime('now'), datetime('now'))",
		bob, assetID, orgID)
	assert.Error(t, err)
}
