package root

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		logLevel = ""
		_ = rootCmd.PersistentFlags().Set("log-level", "")
		rootCmd.PersistentFlags().Lookup("log-level").Changed = false
	})
	return ExecuteContext(context.Background())
}

func TestLogLevelFlagOverridesEnvironment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "info")

	err := execute(t, "auth", "devtoken", "--log-level", "debug", "--user-id", "u-1", "--email", "u@oak.test")
	require.NoError(t, err)
	require.Equal(t, "debug", os.Getenv("LOG_LEVEL"))
}

func TestLogLevelFlagRejectsUnknownLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "info")

	err := execute(t, "auth", "devtoken", "--log-level", "loud", "--user-id", "u-1", "--email", "u@oak.test")
	require.ErrorContains(t, err, "--log-level")
	require.Equal(t, "info", os.Getenv("LOG_LEVEL"))
}

func TestSubcommandsAreWired(t *testing.T) {
	for _, name := range []string{"auth", "bootstrap", "school"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, cmd.Name())
	}
}
