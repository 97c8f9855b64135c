package dns

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFQDN tests record name joining
func TestFQDN(t *testing.T) {
	testCases := []struct {
		record, domain, want string
	}{
		{"@", "example.com", "example.com"},
		{"", "example.com", "example.com"},
		{"home", "example.com", "home.example.com"},
		{"*.apps", "example.com.", "*.apps.example.com"},
	}
	for _, tc := range testCases {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, FQDN(tc.record, tc.domain))
		})
	}
}

// TestRecordNames tests the optional second record
func TestRecordNames(t *testing.T) {
	cfg := Config{RecordName: "@"}
	assert.Equal(t, []string{"@"}, cfg.RecordNames())

	cfg.Dokploy = DokployConfig{Enabled: true, RecordName: "*"}
	assert.Equal(t, []string{"@", "*"}, cfg.RecordNames())

	cfg.Dokploy.RecordName = "@"
	assert.Equal(t, []string{"@"}, cfg.RecordNames())

	cfg.Dokploy = DokployConfig{Enabled: false, RecordName: "*"}
	assert.Equal(t, []string{"@"}, cfg.RecordNames())
}

// TestSplitErrors tests flattening of joined update errors
func TestSplitErrors(t *testing.T) {
	assert.Nil(t, SplitErrors(nil))

	a := &Error{Provider: "p", Record: "a.example.com", StatusCode: 401}
	b := &Error{Provider: "p", Record: "b.example.com"}

	errs := SplitErrors(errors.Join(a, b))
	require.Len(t, errs, 2)
	assert.Same(t, a, errs[0])
	assert.Same(t, b, errs[1])

	wrapped := SplitErrors(fmt.Errorf("outer: %w", a))
	require.Len(t, wrapped, 1)
	assert.Same(t, a, wrapped[0])

	plain := SplitErrors(errors.New("boom"))
	require.Len(t, plain, 1)
	assert.Equal(t, "boom", plain[0].Message)
}

// TestErrorMessage tests Error formatting
func TestErrorMessage(t *testing.T) {
	e := &Error{Provider: "hostinger", Record: "example.com", StatusCode: 422, Message: "invalid"}
	assert.Equal(t, "hostinger: update example.com: status 422: invalid", e.Error())

	cause := errors.New("dial tcp: refused")
	e = &Error{Provider: "hostinger", Record: "example.com", Message: cause.Error(), Err: cause}
	assert.Equal(t, "hostinger: update example.com: connection failed: dial tcp: refused", e.Error())
	assert.ErrorIs(t, e, cause)
}

// TestNew tests provider selection
func TestNew(t *testing.T) {
	u, err := New(Config{Domain: "example.com", RecordName: "@", APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderHostinger, u.Provider())

	u, err = New(Config{Provider: ProviderCloudflare, Domain: "example.com", RecordName: "@", APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderCloudflare, u.Provider())

	_, err = New(Config{Provider: "route53"}, nil)
	assert.Error(t, err)
}
