package school

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zenGate-Global/schoolspace/domains/schools/be/service"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
)

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	require.Equal(t, int64(42), id)

	for _, raw := range []string{"", "0", "-3", "forty"} {
		_, err := parseID(raw)
		require.Error(t, err, raw)
	}
}

func TestPrintSchool(t *testing.T) {
	var out bytes.Buffer
	printSchool(&out, service.School{
		School: tenant.School{
			ID: 11, Name: "Riverside Primary", Code: "riverside", Subdomain: "rvs",
			Namespace: "school_riverside", Status: tenant.StatusActive,
		},
		CreatedAt: time.Now(),
	})
	require.Equal(t, "11\triverside\trvs\tschool_riverside\tactive\tRiverside Primary\n", out.String())
}

func TestRoutingRequiresAChange(t *testing.T) {
	cmd := Command()
	cmd.SetArgs([]string{"routing", "11"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	require.ErrorContains(t, err, "nothing to change")
}

func TestStatusRejectsUnknownStatus(t *testing.T) {
	cmd := Command()
	cmd.SetArgs([]string{"status", "11", "paused"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.Error(t, cmd.Execute())
}
