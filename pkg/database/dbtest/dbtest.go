// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"entgo.io/ent/dialect"
	"github.com/jordanlanch/assetdesk/pkg/database"
	_ "github.com/mattn/go-sqlite3"
)

var seq atomic.Int64

// Open returns a migrated client backed by a private in-memory database.
// The database is closed when the test ends.
func Open(t testing.TB) *database.Client {
	t.Helper()

	name := fmt.Sprintf("%s_%d", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()), seq.Add(1))
	db, err := sql.Open(dialect.SQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", name))
	if err != nil {
		t.Fatalf("failed opening sqlite: %v", err)
	}
	// A single connection keeps the in-memory database alive and serializes writes.
	db.SetMaxOpenConns(1)

	client := database.NewFromDB(dialect.SQLite, db)
	if err := client.Migrate(context.Background()); err != nil {
		t.Fatalf("failed migrating sqlite: %v", err)
	}

	t.Cleanup(func() { _ = client.Close() })
	return client
}
