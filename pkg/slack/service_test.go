package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jordanlanch/assetdesk/pkg/database/dbtest"
	"github.com/jordanlanch/assetdesk/pkg/domain"
	"github.com/jordanlanch/assetdesk/pkg/organization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	messages []Message
}

func (m *mockClient) SendMessage(ctx context.Context, msg Message) error {
	m.messages = append(m.messages, msg)
	return nil
}

func fastClient(url string) *WebhookClient {
	c := NewWebhookClient(url)
	c.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	return c
}

func TestWebhookClient_Delivers(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, fastClient(srv.URL).SendMessage(context.Background(), Message{Text: "hello"}))
	assert.Equal(t, "hello", got.Text)
}

func TestWebhookClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, fastClient(srv.URL).SendMessage(context.Background(), Message{Text: "retry"}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhookClient_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := fastClient(srv.URL).SendMessage(context.Background(), Message{Text: "gone"})
	require.ErrorIs(t, err, ErrSlackSendFailed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNotifyTicketCreated(t *testing.T) {
	db := dbtest.Open(t)
	orgs := organization.NewService(db)
	org, err := orgs.Create(context.Background(), "Acme Corp", "acme-corp")
	require.NoError(t, err)

	client := &mockClient{}
	svc := NewService(client, orgs, nil)

	require.NoError(t, svc.NotifyTicketCreated(context.Background(), org.ID, domain.TicketNotice{
		TicketID:     7,
		Description:  "Screen flickers",
		AssetName:    "MacBook Pro 14",
		SerialNumber: "SN-001",
		ReporterName: "Bob",
	}))

	require.Len(t, client.messages, 1)
	text := client.messages[0].Text
	assert.Contains(t, text, "New Ticket #7")
	assert.Contains(t, text, "Acme Corp")
	assert.Contains(t, text, "MacBook Pro 14 (SN-001)")
	assert.Contains(t, text, "Bob")
}

func TestNotifySubscriptionChange_UnknownOrganization(t *testing.T) {
	client := &mockClient{}
	svc := NewService(client, nil, nil)

	require.NoError(t, svc.NotifySubscriptionChange(context.Background(), 42, "PRO", "active"))
	require.Len(t, client.messages, 1)
	assert.Contains(t, client.messages[0].Text, "#42")
	assert.Contains(t, client.messages[0].Text, "PRO")
}
