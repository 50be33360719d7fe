package archive

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jordanlanch/assetdesk/pkg/export"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string]Object
	data    map[string][]byte
	failPut string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string]Object{}, data: map[string][]byte{}}
}

func (m *memStore) Put(_ context.Context, key, _ string, body io.Reader) error {
	if m.failPut != "" && strings.HasPrefix(key, m.failPut) {
		return errors.New("access denied")
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{Key: key, Size: int64(len(b)), LastModified: time.Now()}
	m.data[key] = b
	return nil
}

func (m *memStore) List(_ context.Context, _ string) ([]Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Object, 0, len(m.objects))
	for _, o := range m.objects {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	delete(m.data, key)
	return nil
}

func (m *memStore) keys() []string {
	objs, _ := m.List(context.Background(), Prefix)
	keys := make([]string, 0, len(objs))
	for _, o := range objs {
		keys = append(keys, o.Key)
	}
	return keys
}

type stubExporter struct {
	fail map[int]bool
}

func (s stubExporter) Tickets(_ context.Context, orgID int, format export.Format, w io.Writer) error {
	if s.fail[orgID] {
		return errors.New("export failed")
	}
	_, err := io.WriteString(w, "PK"+string(format))
	return err
}

type stubOrgs []int

func (s stubOrgs) IDs(context.Context) ([]int, error) { return s, nil }

var runAt = time.Date(2026, 5, 4, 4, 0, 0, 0, time.UTC)

func newTestService(store ObjectStore, exp Exporter, orgs OrganizationLister, retention int) *Service {
	svc := NewService(store, exp, orgs, retention, nil)
	svc.now = func() time.Time { return runAt }
	return svc
}

func TestKey(t *testing.T) {
	assert.Equal(t, "tickets/7/20260504-040000.xlsx", Key(7, runAt))
}

func TestRun_UploadsOneExportPerOrganization(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, stubExporter{}, stubOrgs{1, 2}, 0)

	res, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Organizations)
	assert.Equal(t, 2, res.Uploaded)
	assert.Equal(t, int64(12), res.Bytes)
	assert.Equal(t, []string{"tickets/1/20260504-040000.xlsx", "tickets/2/20260504-040000.xlsx"}, store.keys())
	assert.Equal(t, "PKxlsx", string(store.data["tickets/1/20260504-040000.xlsx"]))
}

func TestRun_ContinuesPastFailures(t *testing.T) {
	store := newMemStore()
	store.failPut = "tickets/3/"
	svc := newTestService(store, stubExporter{fail: map[int]bool{2: true}}, stubOrgs{1, 2, 3}, 0)

	n, err := svc.ArchiveTickets(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "organization 2")
	assert.Contains(t, err.Error(), "organization 3")
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"tickets/1/20260504-040000.xlsx"}, store.keys())
}

func TestCleanup_RemovesExpiredArchives(t *testing.T) {
	store := newMemStore()
	store.objects["tickets/1/old.xlsx"] = Object{Key: "tickets/1/old.xlsx", LastModified: runAt.AddDate(0, 0, -100)}
	store.objects["tickets/1/recent.xlsx"] = Object{Key: "tickets/1/recent.xlsx", LastModified: runAt.AddDate(0, 0, -10)}

	svc := newTestService(store, stubExporter{}, stubOrgs{}, 90)
	deleted, err := svc.Cleanup(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, deleted)
	assert.Equal(t, []string{"tickets/1/recent.xlsx"}, store.keys())
}

func TestCleanup_DisabledWithoutRetention(t *testing.T) {
	store := newMemStore()
	store.objects["tickets/1/old.xlsx"] = Object{Key: "tickets/1/old.xlsx", LastModified: runAt.AddDate(-5, 0, 0)}

	deleted, err := newTestService(store, stubExporter{}, stubOrgs{}, 0).Cleanup(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Len(t, store.keys(), 1)
}
