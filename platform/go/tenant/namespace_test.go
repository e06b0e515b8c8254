package tenant

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateNamespace(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		input string
		ok    bool
	}{
		{name: "simple", input: "school_riverside", ok: true},
		{name: "digits", input: "school_42", ok: true},
		{name: "public", input: "public", ok: true},
		{name: "empty", input: "", ok: false},
		{name: "uppercase", input: "School_Riverside", ok: false},
		{name: "leading digit", input: "1school", ok: false},
		{name: "quote injection", input: `school"; DROP TABLE users; --`, ok: false},
		{name: "comma list", input: "school_a, school_b", ok: false},
		{name: "dash", input: "school-a", ok: false},
		{name: "dot qualified", input: "public.users", ok: false},
		{name: "pg prefix", input: "pg_catalog", ok: false},
		{name: "information schema", input: "information_schema", ok: false},
		{name: "too long", input: "s" + strings.Repeat("a", 63), ok: false},
		{name: "max length", input: "s" + strings.Repeat("a", 62), ok: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateNamespace(tc.input)
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidNamespace))
		})
	}
}

func TestBuildNamespace(t *testing.T) {
	t.Parallel()

	ns, err := BuildNamespace("River-Side")
	require.NoError(t, err)
	require.Equal(t, "school_river_side", ns)

	_, err = BuildNamespace("bad code!")
	require.ErrorIs(t, err, ErrInvalidNamespace)
}
