package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
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

	"ipmonitor/internal/types"
)

func newTestDingTalk(t *testing.T, secret string, handler http.HandlerFunc) *DingTalkNotifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	n, err := NewDingTalkNotifier(&DingTalkConfig{
		AccessToken: "robot-token",
		Secret:      secret,
		AtMobiles:   []string{"13800000000"},
		APIURL:      srv.URL + "/robot/send",
	}, testRetry(), zaptest.NewLogger(t))
	require.NoError(t, err)
	n.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return n
}

func TestMarkdownText(t *testing.T) {
	text := markdownText(changeEmbed(&Change{
		ChangeEvent: types.ChangeEvent{
			Kind:     types.Changed,
			Previous: netip.MustParseAddr("198.51.100.1"),
			Current:  netip.MustParseAddr("203.0.113.5"),
		},
		Records: []string{"home.example.com"},
	}))

	assert.Contains(t, text, "### IP Address Changed\n")
	assert.Contains(t, text, "- **Previous IP:** 198.51.100.1")
	assert.Contains(t, text, "- **New IP:** 203.0.113.5")
	assert.Contains(t, text, "- **Domain:** home.example.com")
}

func TestDingTalkSend(t *testing.T) {
	t.Run("signed markdown message", func(t *testing.T) {
		var msg DingMessage
		n := newTestDingTalk(t, "SEC123", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "/robot/send", r.URL.Path)
			assert.Equal(t, "robot-token", q.Get("access_token"))
			assert.Equal(t, "1700000000000", q.Get("timestamp"))

			mac := hmac.New(sha256.New, []byte("SEC123"))
			mac.Write([]byte("1700000000000\nSEC123"))
			assert.Equal(t, base64.StdEncoding.EncodeToString(mac.Sum(nil)), q.Get("sign"))

			require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
			_, _ = w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
		})

		require.NoError(t, n.NotifyStartup(context.Background(), &Startup{IP: netip.MustParseAddr("203.0.113.5")}))
		assert.Equal(t, "markdown", msg.MsgType)
		assert.Equal(t, "IP Monitor Started", msg.Markdown.Title)
		assert.Contains(t, msg.Markdown.Text, "**Current IP:** 203.0.113.5")
		assert.Equal(t, []string{"13800000000"}, msg.At.AtMobiles)
	})

	t.Run("no secret means no signature", func(t *testing.T) {
		n := newTestDingTalk(t, "", func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.URL.Query().Get("sign"))
			_, _ = w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
		})
		require.NoError(t, n.NotifyStartup(context.Background(), &Startup{}))
	})

	t.Run("api error is not retried", func(t *testing.T) {
		var calls atomic.Int32
		n := newTestDingTalk(t, "", func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			_, _ = w.Write([]byte(`{"errcode":310000,"errmsg":"sign not match"}`))
		})

		err := n.NotifyStartup(context.Background(), &Startup{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sign not match")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("server error is retried", func(t *testing.T) {
		var calls atomic.Int32
		n := newTestDingTalk(t, "", func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
		})

		require.NoError(t, n.NotifyStartup(context.Background(), &Startup{}))
		assert.Equal(t, int32(2), calls.Load())
	})
}
