package tenant

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       string
		expect      string
		expectError bool
	}{
		{name: "already normalized", input: "oak-hill", expect: "oak-hill"},
		{name: "trims whitespace and lowercases", input: "  Riverside ", expect: "riverside"},
		{name: "empty", input: "  ", expectError: true},
		{name: "underscore", input: "oak_hill", expectError: true},
		{name: "leading hyphen", input: "-oak", expectError: true},
		{name: "namespace would overflow", input: strings.Repeat("a", 60), expectError: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			code, err := NormalizeCode(tt.input)
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expect, code)
		})
	}
}

func TestNormalizeSubdomain(t *testing.T) {
	t.Parallel()

	sub, err := NormalizeSubdomain("Riverside", DefaultReservedSubdomains)
	require.NoError(t, err)
	require.Equal(t, "riverside", sub)

	_, err = NormalizeSubdomain("www", DefaultReservedSubdomains)
	require.ErrorContains(t, err, "reserved")

	_, err = NormalizeSubdomain("oak.hill", DefaultReservedSubdomains)
	require.Error(t, err)

	_, err = NormalizeSubdomain(strings.Repeat("a", 64), nil)
	require.Error(t, err)
}
