package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ipmonitor/internal/types"
)

// TestWebhookDelivery tests payload, headers and signature
func TestWebhookDelivery(t *testing.T) {
	var (
		body    []byte
		headers http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	cfg := &WebhookConfig{URL: srv.URL, Secret: "s3cret", Headers: map[string]string{"X-Custom": "yes"}}
	n, err := NewWebhookNotifier(cfg, testRetry(), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, ChannelWebhook, n.Type())

	change := &Change{
		ChangeEvent: types.ChangeEvent{
			Kind:       types.Changed,
			Previous:   netip.MustParseAddr("198.51.100.1"),
			Current:    netip.MustParseAddr("203.0.113.5"),
			ObservedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		},
		Records: []string{"home.example.com"},
	}
	require.NoError(t, n.NotifyChange(context.Background(), change))

	var event struct {
		EventType string     `json:"event_type"`
		EventID   string     `json:"event_id"`
		Timestamp time.Time  `json:"timestamp"`
		Data      ChangeData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &event))
	assert.Equal(t, EventChanged, event.EventType)
	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "198.51.100.1", event.Data.PreviousIP)
	assert.Equal(t, "203.0.113.5", event.Data.CurrentIP)
	assert.Equal(t, types.Changed, event.Data.Kind)

	assert.Equal(t, EventChanged, headers.Get(HeaderEvent))
	assert.Equal(t, event.EventID, headers.Get(HeaderDelivery))
	assert.Equal(t, "sha256="+calculateSignature(body, []byte("s3cret")), headers.Get(HeaderSignature))
	assert.Equal(t, "yes", headers.Get("X-Custom"))
	assert.NoError(t, n.Close())
}

// TestWebhookRetry tests retry on server errors only
func TestWebhookRetry(t *testing.T) {
	testCases := []struct {
		name      string
		statuses  []int
		wantCalls int32
		wantErr   bool
	}{
		{name: "recovers", statuses: []int{500, 200}, wantCalls: 2},
		{name: "client error", statuses: []int{404}, wantCalls: 1, wantErr: true},
		{name: "exhausted", statuses: []int{503, 503, 503}, wantCalls: 3, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				i := calls.Add(1) - 1
				w.WriteHeader(tc.statuses[min(int(i), len(tc.statuses)-1)])
			}))
			defer srv.Close()

			n, err := NewWebhookNotifier(&WebhookConfig{URL: srv.URL}, testRetry(), zaptest.NewLogger(t))
			require.NoError(t, err)

			err = n.NotifyStartup(context.Background(), &Startup{IP: netip.MustParseAddr("203.0.113.5")})
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.wantCalls, calls.Load())
		})
	}
}

// TestEventBuilders tests the event envelopes
func TestEventBuilders(t *testing.T) {
	first := changeEvent(&Change{ChangeEvent: types.ChangeEvent{
		Kind:    types.FirstRun,
		Current: netip.MustParseAddr("203.0.113.5"),
	}})
	assert.Equal(t, EventFirstRun, first.EventType)
	assert.False(t, first.Timestamp.IsZero())
	assert.Empty(t, first.Data.(ChangeData).PreviousIP)

	a := startupEvent(&Startup{IP: netip.MustParseAddr("203.0.113.5")})
	b := startupEvent(&Startup{IP: netip.MustParseAddr("203.0.113.5")})
	assert.Equal(t, EventStartup, a.EventType)
	assert.NotEqual(t, a.EventID, b.EventID)

	d := dnsErrorEvent(&DNSFailure{IP: netip.MustParseAddr("203.0.113.5")})
	assert.Equal(t, EventDNSError, d.EventType)
	assert.Equal(t, "203.0.113.5", d.Data.(DNSErrorData).IP)
}
