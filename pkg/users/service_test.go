package users

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jordanlanch/assetdesk/pkg/auth"
	"github.com/jordanlanch/assetdesk/pkg/database/dbtest"
	"github.com/jordanlanch/assetdesk/pkg/domain"
	"github.com/jordanlanch/assetdesk/pkg/models"
	"github.com/jordanlanch/assetdesk/pkg/organization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-minimum-32-characters-long"

// mockEmailSender records welcome emails
type mockEmailSender struct {
	mu          sync.Mutex
	welcomed    []string
	shouldError bool
}

func (m *mockEmailSender) SendWelcomeEmail(ctx context.Context, to, name, org string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.welcomed = append(m.welcomed, to)
	if m.shouldError {
		return errors.New("email send failed")
	}
	return nil
}

func (m *mockEmailSender) SendTicketNotification(ctx context.Context, to, adminName string, ticket domain.TicketNotice) error {
	return nil
}

func (m *mockEmailSender) SendSubscriptionConfirmation(ctx context.Context, to, name, planName string) error {
	return nil
}

func (m *mockEmailSender) getWelcomed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.welcomed...)
}

func setup(t *testing.T) (*Service, *organization.Service, *mockEmailSender) {
	t.Helper()
	db := dbtest.Open(t)
	orgs := organization.NewService(db)
	svc := NewService(db, orgs, testSecret, 168, nil)
	sender := &mockEmailSender{}
	svc.SetEmailSender(sender)
	return svc, orgs, sender
}

func register(t *testing.T, svc *Service, name, email string) *models.AuthResponse {
	t.Helper()
	resp, err := svc.Register(context.Background(), models.RegisterRequest{Name: name, Email: email, Password: "secret1"})
	require.NoError(t, err)
	return resp
}

func orgFromToken(t *testing.T, token string) int {
	t.Helper()
	claims, err := auth.ValidateJWT(token, testSecret)
	require.NoError(t, err)
	require.NotNil(t, claims.OrganizationID)
	return *claims.OrganizationID
}

func TestSlugFromEmail(t *testing.T) {
	at := time.UnixMilli(1700000000123)

	assert.Equal(t, "x-1700000000123", SlugFromEmail("alice@x.com", at))
	assert.Equal(t, "acmecorp-1700000000123", SlugFromEmail("bob@Acme_Corp.co.uk", at))
	assert.Equal(t, "org-1700000000123", SlugFromEmail("broken", at))
	assert.True(t, organization.IsValidSlug(SlugFromEmail("a@b.c", at)))
}

func TestRegister_CreatesOrganizationAndAdmin(t *testing.T) {
	svc, orgs, sender := setup(t)
	ctx := context.Background()

	resp := register(t, svc, "Alice", "Alice@X.com")
	assert.Equal(t, "User registered successfully", resp.Message)
	assert.Equal(t, "alice@x.com", resp.User.Email)
	assert.Equal(t, domain.RoleAdmin, resp.User.Role)
	assert.NotEmpty(t, resp.Token)

	claims, err := auth.ValidateJWT(resp.Token, testSecret)
	require.NoError(t, err)
	require.NotNil(t, claims.OrganizationID)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, domain.RoleAdmin, claims.Role)

	org, err := orgs.Get(ctx, *claims.OrganizationID)
	require.NoError(t, err)
	assert.Equal(t, "Alice's Organization", org.Name)
	assert.Equal(t, "FREE", org.SubscriptionTier)
	assert.Regexp(t, `^x-\d+$`, org.Slug)
	require.NotNil(t, resp.User.OrganizationID)
	assert.Equal(t, org.ID, *resp.User.OrganizationID)
	require.NotNil(t, resp.User.Organization)
	assert.Equal(t, org.Slug, resp.User.Organization.Slug)

	assert.Equal(t, []string{"alice@x.com"}, sender.getWelcomed())
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := setup(t)
	register(t, svc, "Alice", "alice@x.com")

	_, err := svc.Register(context.Background(), models.RegisterRequest{Name: "Eve", Email: "ALICE@x.com", Password: "secret1"})
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))
}

func TestRegister_BlankNameRejected(t *testing.T) {
	svc, _, sender := setup(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, models.RegisterRequest{Name: "   ", Email: "alice@x.com", Password: "secret1"})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.Empty(t, sender.getWelcomed())

	resp := register(t, svc, "  Alice  ", "alice@x.com")
	assert.Equal(t, "Alice", resp.User.Name)
	require.NotNil(t, resp.User.Organization)
	assert.Equal(t, "Alice's Organization", resp.User.Organization.Name)

	_, err = svc.Invite(ctx, *resp.User.OrganizationID, models.InviteRequest{Name: "\t", Email: "bob@x.com", Password: "secret1"})
	assert.True(t, domain.IsValidation(err))
}

func TestRegister_SlugCollisionRetries(t *testing.T) {
	svc, _, _ := setup(t)
	fixed := time.UnixMilli(1700000000000)
	svc.now = func() time.Time { return fixed }

	register(t, svc, "Alice", "alice@x.com")
	resp := register(t, svc, "Bob", "bob@x.com")
	assert.Equal(t, domain.RoleAdmin, resp.User.Role)
}

func TestRegister_EmailFailureIsSwallowed(t *testing.T) {
	svc, _, sender := setup(t)
	sender.shouldError = true

	resp := register(t, svc, "Alice", "alice@x.com")
	assert.NotEmpty(t, resp.Token)
}

func TestLogin(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	register(t, svc, "Alice", "alice@x.com")

	resp, err := svc.Login(ctx, models.LoginRequest{Email: "alice@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "Login successful", resp.Message)
	require.NotNil(t, resp.User.Organization)
	assert.Equal(t, "Alice's Organization", resp.User.Organization.Name)
	require.NotNil(t, resp.User.OrganizationID)
	assert.Equal(t, resp.User.Organization.ID, *resp.User.OrganizationID)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "alice@x.com", Password: "wrong-password"})
	assert.True(t, domain.IsUnauthorized(err))

	_, err = svc.Login(ctx, models.LoginRequest{Email: "nobody@x.com", Password: "secret1"})
	assert.True(t, domain.IsUnauthorized(err))
}

func TestMe(t *testing.T) {
	svc, _, _ := setup(t)
	resp := register(t, svc, "Alice", "alice@x.com")

	me, err := svc.Me(context.Background(), resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", me.Name)
	require.NotNil(t, me.CreatedAt)
	require.NotNil(t, me.Organization)

	_, err = svc.Me(context.Background(), 9999)
	assert.True(t, domain.IsNotFound(err))
}

func TestInvite_AndTenantScopedListing(t *testing.T) {
	svc, _, sender := setup(t)
	ctx := context.Background()

	alice := register(t, svc, "Alice", "alice@x.com")
	carol := register(t, svc, "Carol", "carol@y.com")
	aliceOrg := orgFromToken(t, alice.Token)
	carolOrg := orgFromToken(t, carol.Token)

	bob, err := svc.Invite(ctx, aliceOrg, models.InviteRequest{Name: "Bob", Email: "bob@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleEmployee, bob.Role)
	require.NotNil(t, bob.OrganizationID)
	assert.Equal(t, aliceOrg, *bob.OrganizationID)
	assert.Contains(t, sender.getWelcomed(), "bob@x.com")

	_, err = svc.Invite(ctx, aliceOrg, models.InviteRequest{Name: "Bob", Email: "bob@x.com", Password: "secret1"})
	assert.True(t, domain.IsConflict(err))

	members, err := svc.List(ctx, aliceOrg)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Alice", members[0].Name)
	assert.Equal(t, "Bob", members[1].Name)

	others, err := svc.List(ctx, carolOrg)
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, "carol@y.com", others[0].Email)

	admins, err := svc.Admins(ctx, aliceOrg)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "alice@x.com", admins[0].Email)

	_, err = svc.Invite(ctx, 9999, models.InviteRequest{Name: "Zed", Email: "zed@x.com", Password: "secret1"})
	assert.True(t, domain.IsNotFound(err))
}

func TestAddMember_DoesNotSendWelcome(t *testing.T) {
	svc, _, sender := setup(t)
	ctx := context.Background()

	alice := register(t, svc, "Alice", "alice@x.com")
	orgID := orgFromToken(t, alice.Token)

	admin, err := svc.AddMember(ctx, orgID, domain.RoleAdmin, models.InviteRequest{Name: "Dana", Email: "dana@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	assert.NotContains(t, sender.getWelcomed(), "dana@x.com")

	admins, err := svc.Admins(ctx, orgID)
	require.NoError(t, err)
	assert.Len(t, admins, 2)

	_, err = svc.AddMember(ctx, orgID, domain.RoleEmployee, models.InviteRequest{Name: "Dana", Email: "DANA@x.com", Password: "secret1"})
	assert.True(t, domain.IsConflict(err))
}
