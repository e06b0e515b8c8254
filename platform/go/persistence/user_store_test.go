package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildUserOrderBy(t *testing.T) {
	t.Parallel()

	ptr := func(s string) *string { return &s }

	cases := []struct {
		name    string
		sort    *string
		want    string
		wantErr bool
	}{
		{name: "default", sort: nil, want: "ORDER BY created_at DESC"},
		{name: "blank", sort: ptr("  "), want: "ORDER BY created_at DESC"},
		{name: "single asc", sort: ptr("email"), want: "ORDER BY email ASC"},
		{name: "mixed", sort: ptr("-createdAt, fullName"), want: "ORDER BY created_at DESC, full_name ASC"},
		{name: "unknown", sort: ptr("password"), wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := buildUserOrderBy(tc.sort)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
