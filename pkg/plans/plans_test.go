package plans

import (
	"context"
	"errors"
	"testing"

	"github.com/jordanlanch/assetdesk/pkg/database"
	"github.com/jordanlanch/assetdesk/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	tier, status string
	counts       map[Kind]int
	err          error
	countCalls   int
}

func (f *fakeStore) GetSubscriptionState(ctx context.Context, orgID int) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	return f.tier, f.status, nil
}

func (f *fakeStore) CountUsage(ctx context.Context, orgID int, kind Kind) (int, error) {
	f.countCalls++
	return f.counts[kind], nil
}

func TestCatalog(t *testing.T) {
	c := NewCatalog("price_pro", "price_ent")

	all := c.All()
	require.Len(t, all, 3)
	assert.Equal(t, []Tier{Free, Pro, Enterprise}, []Tier{all[0].Tier, all[1].Tier, all[2].Tier})
	assert.Equal(t, "Free", all[0].Name)
	assert.Equal(t, "Enterprise", all[2].Name)
	assert.Equal(t, 2900, all[1].Price)

	free, ok := c.Get("free")
	require.True(t, ok)
	assert.Equal(t, 5, free.Limit(KindAsset))
	assert.Equal(t, 10, free.Limit(KindTicket))
	assert.Equal(t, 2, free.Limit(KindUser))
	assert.False(t, free.Purchasable())

	pro := c.Resolve("PRO")
	assert.Equal(t, Unlimited, pro.Limit(KindTicket))
	assert.True(t, pro.Purchasable())

	assert.Equal(t, Free, c.Resolve("GOLD").Tier)

	tier, ok := c.TierForPriceID("price_ent")
	assert.True(t, ok)
	assert.Equal(t, Enterprise, tier)
	_, ok = c.TierForPriceID("")
	assert.False(t, ok)
}

func TestGate_Check(t *testing.T) {
	catalog := NewCatalog("price_pro", "price_ent")

	tests := []struct {
		name      string
		store     *fakeStore
		kind      Kind
		wantErr   func(error) bool
		wantCount bool
	}{
		{
			name:      "free tier below ticket limit",
			store:     &fakeStore{tier: "FREE", status: "active", counts: map[Kind]int{KindTicket: 9}},
			kind:      KindTicket,
			wantCount: true,
		},
		{
			name:      "free tier at ticket limit",
			store:     &fakeStore{tier: "FREE", status: "active", counts: map[Kind]int{KindTicket: 10}},
			kind:      KindTicket,
			wantErr:   domain.IsLimitExceeded,
			wantCount: true,
		},
		{
			name:      "third user on free tier",
			store:     &fakeStore{tier: "FREE", status: "active", counts: map[Kind]int{KindUser: 2}},
			kind:      KindUser,
			wantErr:   domain.IsLimitExceeded,
			wantCount: true,
		},
		{
			name:  "pro tickets are unlimited",
			store: &fakeStore{tier: "PRO", status: "active", counts: map[Kind]int{KindTicket: 100000}},
			kind:  KindTicket,
		},
		{
			name:      "free tier ignores billing status",
			store:     &fakeStore{tier: "FREE", status: "canceled", counts: map[Kind]int{KindAsset: 0}},
			kind:      KindAsset,
			wantCount: true,
		},
		{
			name:    "paid tier with inactive subscription",
			store:   &fakeStore{tier: "PRO", status: "past_due"},
			kind:    KindAsset,
			wantErr: domain.IsSubscriptionInactive,
		},
		{
			name:    "missing organization",
			store:   &fakeStore{err: database.ErrNotFound},
			kind:    KindAsset,
			wantErr: domain.IsNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewGate(catalog, tt.store)
			sub, err := gate.Check(context.Background(), 1, tt.kind)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
				assert.Nil(t, sub)
			} else {
				require.NoError(t, err)
				require.NotNil(t, sub)
				assert.Equal(t, 1, sub.OrganizationID)
			}
			assert.Equal(t, tt.wantCount, tt.store.countCalls > 0)
		})
	}
}

func TestGate_LimitErrorPayload(t *testing.T) {
	gate := NewGate(NewCatalog("", ""), &fakeStore{tier: "FREE", status: "active", counts: map[Kind]int{KindAsset: 5}})

	_, err := gate.Check(context.Background(), 1, KindAsset)

	var le *domain.LimitError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 5, le.Current)
	assert.Equal(t, 5, le.Limit)
	assert.Equal(t, "FREE", le.Tier)
	assert.Equal(t, "Your Free plan allows up to 5 assets. Please upgrade to add more.", le.Message)
}

func TestGate_StoreError(t *testing.T) {
	gate := NewGate(NewCatalog("", ""), &fakeStore{err: errors.New("db down")})

	_, err := gate.Check(context.Background(), 1, KindAsset)
	require.Error(t, err)
	assert.False(t, domain.IsNotFound(err))
	assert.Contains(t, err.Error(), "db down")
}
