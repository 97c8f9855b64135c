package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ipmonitor/internal/dns"
	"ipmonitor/internal/types"
)

func newTestSlack(t *testing.T, handler http.HandlerFunc) *SlackNotifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	n, err := NewSlackNotifier(&SlackConfig{WebhookURL: srv.URL, Channel: "#ops", Username: "IP Monitor"}, testRetry(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return n
}

func TestSlackAttachments(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	att := changeAttachment(&Change{
		ChangeEvent: types.ChangeEvent{
			Kind:       types.Changed,
			Previous:   netip.MustParseAddr("198.51.100.1"),
			Current:    netip.MustParseAddr("203.0.113.5"),
			ObservedAt: ts,
		},
		Records: []string{"home.example.com"},
	})
	assert.Equal(t, "#00ff00", att.Color)
	assert.Equal(t, "IP Address Changed", att.Title)
	assert.Equal(t, ts.Unix(), att.Timestamp)
	for _, f := range att.Fields {
		assert.NotEqual(t, "Timestamp", f.Title)
	}
	require.Len(t, att.Fields, 3)
	assert.Equal(t, SlackField{Title: "Previous IP", Value: "198.51.100.1", Short: true}, att.Fields[0])

	att = dnsErrorAttachment(&DNSFailure{
		IP: netip.MustParseAddr("203.0.113.5"),
		Error: &dns.Error{
			Provider:    "hostinger",
			StatusCode:  422,
			FieldErrors: map[string][]string{"zone": {"invalid"}},
		},
	})
	assert.Equal(t, "#ff9900", att.Color)
	assert.Equal(t, "Validation Error in Hostinger", att.Title)

	var details string
	for _, f := range att.Fields {
		if f.Title == "Error Details" {
			details = f.Value
		}
	}
	assert.Equal(t, "*zone:*\n  • invalid", details)

	att = dnsErrorAttachment(&DNSFailure{IP: netip.MustParseAddr("203.0.113.5")})
	assert.Equal(t, "#ff0000", att.Color)
}

func TestSlackSend(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var msg SlackMessage
		n := newTestSlack(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
			_, _ = w.Write([]byte("ok"))
		})

		err := n.NotifyStartup(context.Background(), &Startup{IP: netip.MustParseAddr("203.0.113.5"), TestMode: true})
		require.NoError(t, err)
		assert.Equal(t, "#ops", msg.Channel)
		assert.Equal(t, "IP Monitor", msg.Username)
		require.Len(t, msg.Attachments, 1)
		assert.Equal(t, "#ffaa00", msg.Attachments[0].Color)
		assert.Equal(t, msg.Attachments[0].Title, msg.Text)
	})

	t.Run("server error is retried", func(t *testing.T) {
		var calls atomic.Int32
		n := newTestSlack(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusOK)
		})

		require.NoError(t, n.NotifyStartup(context.Background(), &Startup{}))
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("invalid payload is not retried", func(t *testing.T) {
		var calls atomic.Int32
		n := newTestSlack(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("invalid_payload"))
		})

		err := n.NotifyStartup(context.Background(), &Startup{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid_payload")
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestNewSlackNotifierRequiresURL(t *testing.T) {
	_, err := NewSlackNotifier(&SlackConfig{}, testRetry(), zaptest.NewLogger(t))
	assert.Error(t, err)
}
