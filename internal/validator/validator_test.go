package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Domain string `mapstructure:"domain" validate:"required,domain"`
	Record string `mapstructure:"record_name" validate:"recordname"`
	Mode   string `mapstructure:"mode" validate:"oneof=a b"`
}

// TestValidator tests custom tags and error formatting
func TestValidator(t *testing.T) {
	v := New()

	testCases := []struct {
		name    string
		in      sample
		wantErr string
	}{
		{name: "valid apex", in: sample{Domain: "example.com", Record: "@", Mode: "a"}},
		{name: "valid sub", in: sample{Domain: "example.co.uk", Record: "dokploy", Mode: "b"}},
		{name: "valid wildcard", in: sample{Domain: "example.com", Record: "*.apps", Mode: "a"}},
		{name: "missing domain", in: sample{Mode: "a"}, wantErr: "domain is required"},
		{name: "bare label", in: sample{Domain: "localhost", Mode: "a"}, wantErr: "domain must be a valid domain name"},
		{name: "bad record", in: sample{Domain: "example.com", Record: "bad name", Mode: "a"}, wantErr: "record_name must be @"},
		{name: "bad mode", in: sample{Domain: "example.com", Mode: "c"}, wantErr: "mode must be one of [a b]"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Struct(tc.in)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
