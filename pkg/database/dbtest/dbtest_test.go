package dbtest_test

import (
	"context"
	"testing"

	"github.com/jordanlanch/assetdesk/pkg/database"
	"github.com/jordanlanch/assetdesk/pkg/database/dbtest"
	"github.com/jordanlanch/assetdesk/pkg/organization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SeparateDatabasesPerCall(t *testing.T) {
	ctx := context.Background()

	first := organization.NewService(dbtest.Open(t))
	second := organization.NewService(dbtest.Open(t))

	_, err := first.Create(ctx, "Acme", "acme")
	require.NoError(t, err)

	_, err = second.GetBySlug(ctx, "acme")
	assert.ErrorIs(t, err, database.ErrNotFound)

	_, err = second.Create(ctx, "Acme", "acme")
	require.NoError(t, err)
}
