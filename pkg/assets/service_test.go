package assets

import (
	"context"
	"testing"

	"github.com/jordanlanch/assetdesk/pkg/database/dbtest"
	"github.com/jordanlanch/assetdesk/pkg/domain"
	"github.com/jordanlanch/assetdesk/pkg/models"
	"github.com/jordanlanch/assetdesk/pkg/organization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Service, int, int) {
	t.Helper()
	db := dbtest.Open(t)
	orgs := organization.NewService(db)

	acme, err := orgs.Create(context.Background(), "Acme Corp", "acme-corp")
	require.NoError(t, err)
	tech, err := orgs.Create(context.Background(), "Tech Startup", "tech-startup")
	require.NoError(t, err)

	return NewService(db), acme.ID, tech.ID
}

func TestCreateAndGet(t *testing.T) {
	svc, acme, tech := setup(t)
	ctx := context.Background()

	asset, err := svc.Create(ctx, acme, models.CreateAssetRequest{Name: " MacBook Pro 14 ", SerialNumber: "SN-001", Type: "Laptop"})
	require.NoError(t, err)
	assert.Positive(t, asset.ID)
	assert.Equal(t, "MacBook Pro 14", asset.Name)
	assert.Equal(t, domain.AssetOperational, asset.Status)

	got, err := svc.Get(ctx, acme, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, "SN-001", got.SerialNumber)
	assert.Equal(t, acme, got.Response().OrganizationID)

	_, err = svc.Get(ctx, tech, asset.ID)
	assert.True(t, IsNotFound(err), "assets of another organization are invisible")
}

func TestCreate_DuplicateSerial(t *testing.T) {
	svc, acme, tech := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, acme, models.CreateAssetRequest{Name: "iPhone 15 Pro", SerialNumber: "SN-003", Type: "Phone"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, tech, models.CreateAssetRequest{Name: "iPhone 15 Pro", SerialNumber: "SN-003", Type: "Phone"})
	assert.True(t, domain.IsConflict(err))
}

func TestList_IsTenantScopedAndSorted(t *testing.T) {
	svc, acme, tech := setup(t)
	ctx := context.Background()

	for _, in := range []struct {
		org    int
		name   string
		serial string
	}{
		{acme, "iPad Air", "SN-004"},
		{acme, "Dell XPS 15", "SN-002"},
		{tech, "Dell XPS 15", "TS-002"},
		{acme, "MacBook Pro 14", "SN-001"},
	} {
		_, err := svc.Create(ctx, in.org, models.CreateAssetRequest{Name: in.name, SerialNumber: in.serial, Type: "Laptop", Status: domain.AssetRepair})
		require.NoError(t, err)
	}

	list, err := svc.List(ctx, acme)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Dell XPS 15", list[0].Name)
	assert.Equal(t, "MacBook Pro 14", list[1].Name)
	assert.Equal(t, "iPad Air", list[2].Name)
	for _, a := range list {
		assert.Equal(t, acme, a.OrganizationID)
		assert.Equal(t, domain.AssetRepair, a.Status)
	}

	n, err := svc.Count(ctx, tech)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	empty, err := svc.List(ctx, 9999)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

type recordingInvalidator struct{ orgs []int }

func (r *recordingInvalidator) Invalidate(ctx context.Context, orgID int) {
	r.orgs = append(r.orgs, orgID)
}

func TestCreate_InvalidatesDashboard(t *testing.T) {
	svc, acme, _ := setup(t)
	inv := &recordingInvalidator{}
	svc.SetInvalidator(inv)
	ctx := context.Background()

	_, err := svc.Create(ctx, acme, models.CreateAssetRequest{Name: "Dell XPS 13", SerialNumber: "SN-010", Type: "Laptop"})
	require.NoError(t, err)
	assert.Equal(t, []int{acme}, inv.orgs)

	_, err = svc.Create(ctx, acme, models.CreateAssetRequest{Name: "Dell XPS 13", SerialNumber: "SN-010", Type: "Laptop"})
	require.Error(t, err)
	assert.Equal(t, []int{acme}, inv.orgs)
}
