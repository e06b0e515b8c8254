package clienv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadPrefersFlagOverEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("SHARED_SCHEMA", "platform")

	e, err := Load("postgres://flag/db")
	require.NoError(t, err)
	require.Equal(t, "postgres://flag/db", e.DatabaseURL)
	require.Equal(t, "platform", e.SharedSchema)
	require.Equal(t, []string{"www", "api", "admin", "platform", "app"}, e.Reserved)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoadRejectsInvalidSharedSchema(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("SHARED_SCHEMA", "public; drop table schools")

	_, err := Load("postgres://flag/db")
	require.Error(t, err)
}
