package dns

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestHostinger(t *testing.T, cfg Config, handler http.HandlerFunc) *HostingerUpdater {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg.APIURL = srv.URL
	if cfg.Domain == "" {
		cfg.Domain = "example.com"
	}
	if cfg.APIKey == "" {
		cfg.APIKey = "secret"
	}
	h, err := NewHostingerUpdater(cfg, srv.Client(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return h
}

// TestHostingerUpdateRecord tests the zone update request and response handling
func TestHostingerUpdateRecord(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var got hostingerZoneRequest
		h := newTestHostinger(t, Config{RecordName: "home", TTL: 300}, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/api/dns/v1/zones/example.com", r.URL.Path)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"message":"ok"}`))
		})

		err := h.UpdateRecord(context.Background(), netip.MustParseAddr("203.0.113.5"))
		require.NoError(t, err)

		assert.True(t, got.Overwrite)
		require.Len(t, got.Zone, 1)
		assert.Equal(t, "home", got.Zone[0].Name)
		assert.Equal(t, "A", got.Zone[0].Type)
		assert.Equal(t, 300, got.Zone[0].TTL)
		require.Len(t, got.Zone[0].Records, 1)
		assert.Equal(t, "203.0.113.5", got.Zone[0].Records[0].Content)
	})

	t.Run("ipv6 uses AAAA", func(t *testing.T) {
		var got hostingerZoneRequest
		h := newTestHostinger(t, Config{RecordName: "@"}, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
		})

		require.NoError(t, h.UpdateRecord(context.Background(), netip.MustParseAddr("2001:db8::1")))
		require.Len(t, got.Zone, 1)
		assert.Equal(t, "AAAA", got.Zone[0].Type)
		assert.Equal(t, DefaultTTL, got.Zone[0].TTL)
	})

	t.Run("api error with details", func(t *testing.T) {
		h := newTestHostinger(t, Config{RecordName: "home"}, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"The given data was invalid.","correlation_id":"abc-123","errors":{"zone.0.name":["Name is invalid"]}}`))
		})

		err := h.UpdateRecord(context.Background(), netip.MustParseAddr("203.0.113.5"))
		require.Error(t, err)

		errs := SplitErrors(err)
		require.Len(t, errs, 1)
		assert.Equal(t, http.StatusUnprocessableEntity, errs[0].StatusCode)
		assert.Equal(t, "The given data was invalid.", errs[0].Message)
		assert.Equal(t, "abc-123", errs[0].CorrelationID)
		assert.Equal(t, []string{"Name is invalid"}, errs[0].FieldErrors["zone.0.name"])
		assert.Equal(t, "home.example.com", errs[0].Record)
	})

	t.Run("non json error", func(t *testing.T) {
		h := newTestHostinger(t, Config{RecordName: "home"}, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("<html>oops</html>"))
		})

		errs := SplitErrors(h.UpdateRecord(context.Background(), netip.MustParseAddr("203.0.113.5")))
		require.Len(t, errs, 1)
		assert.Equal(t, http.StatusInternalServerError, errs[0].StatusCode)
		assert.Equal(t, "HTTP 500", errs[0].Message)
	})

	t.Run("dokploy record updated separately", func(t *testing.T) {
		var mu sync.Mutex
		var names []string
		h := newTestHostinger(t, Config{
			RecordName: "home",
			Dokploy:    DokployConfig{Enabled: true, RecordName: "*.apps"},
		}, func(w http.ResponseWriter, r *http.Request) {
			var req hostingerZoneRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			mu.Lock()
			names = append(names, req.Zone[0].Name)
			mu.Unlock()
			if req.Zone[0].Name == "*.apps" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusOK)
		})

		assert.Equal(t, []string{"home.example.com", "*.apps.example.com"}, h.Records())

		errs := SplitErrors(h.UpdateRecord(context.Background(), netip.MustParseAddr("203.0.113.5")))
		assert.Equal(t, []string{"home", "*.apps"}, names)
		require.Len(t, errs, 1)
		assert.Equal(t, "*.apps.example.com", errs[0].Record)
		assert.Equal(t, http.StatusUnauthorized, errs[0].StatusCode)
	})
}

// TestHostingerConnectionFailure tests that transport errors carry no status
func TestHostingerConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	h, err := NewHostingerUpdater(Config{Domain: "example.com", RecordName: "@", APIKey: "k", APIURL: url}, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	errs := SplitErrors(h.UpdateRecord(context.Background(), netip.MustParseAddr("203.0.113.5")))
	require.Len(t, errs, 1)
	assert.Zero(t, errs[0].StatusCode)
	assert.Contains(t, errs[0].Error(), "connection failed")
}

// TestNewHostingerUpdater tests constructor validation
func TestNewHostingerUpdater(t *testing.T) {
	_, err := NewHostingerUpdater(Config{APIKey: "k"}, nil, nil)
	assert.Error(t, err)

	_, err = NewHostingerUpdater(Config{Domain: "example.com"}, nil, nil)
	assert.Error(t, err)

	h, err := NewHostingerUpdater(Config{Domain: "example.com", APIKey: "k"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultHostingerURL, h.baseURL)
	assert.Equal(t, []string{"example.com"}, h.Records())
	assert.Equal(t, ProviderHostinger, h.Provider())
}
