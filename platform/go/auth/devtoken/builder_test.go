package devtoken

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zenGate-Global/schoolspace/platform/go/auth"
)

func TestBuildUnsignedCarriesSchoolClaims(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()

	token, err := BuildUnsigned(Params{
		ProjectID:       "local-schoolspace",
		UserID:          "teacher-123",
		Email:           "teacher@riverside.test",
		Name:            "Dev Teacher",
		EmailVerified:   true,
		SchoolID:        11,
		SchoolNamespace: "school_riverside",
		PrimarySchoolID: 11,
		ExpiresIn:       time.Hour,
	}, now)
	require.NoError(t, err)

	header, payload := splitToken(t, token)
	require.Equal(t, "none", header["alg"])
	require.Equal(t, "https://securetoken.google.com/local-schoolspace", payload["iss"])
	require.Equal(t, "local-schoolspace", payload["aud"])
	require.Equal(t, "teacher-123", payload["sub"])
	require.Equal(t, float64(11), payload["school_id"])
	require.Equal(t, "school_riverside", payload["school_schema"])
	require.Equal(t, float64(now.Add(time.Hour).Unix()), payload["exp"])

	// The API's dev verifier and extractor accept what the builder mints.
	claims, err := auth.UnsignedTokenVerifier()(context.Background(), token)
	require.NoError(t, err)
	creds, err := auth.DefaultCredentialExtractor(claims)
	require.NoError(t, err)
	require.True(t, creds.HasSchoolClaims())
	require.Equal(t, int64(11), *creds.SchoolID)
}

func TestBuildHMACVerifies(t *testing.T) {
	secret := []byte("dev-secret")

	token, err := BuildHMAC(Params{UserID: "ops-1", Email: "ops@schoolspace.test", PlatformAdmin: true}, time.Time{}, secret)
	require.NoError(t, err)

	claims, err := auth.HMACTokenVerifier(secret)(context.Background(), token)
	require.NoError(t, err)
	creds, err := auth.DefaultCredentialExtractor(claims)
	require.NoError(t, err)
	require.True(t, creds.IsPlatformAdmin)
	require.False(t, creds.HasSchoolClaims())
}

func TestClaimsValidation(t *testing.T) {
	_, err := Claims(Params{Email: "x@y.test"}, time.Time{})
	require.Error(t, err)

	_, err = Claims(Params{UserID: "u"}, time.Time{})
	require.Error(t, err)

	_, err = Claims(Params{UserID: "u", Email: "x@y.test", SchoolID: 3}, time.Time{})
	require.Error(t, err)
}

func splitToken(t *testing.T, token string) (map[string]interface{}, map[string]interface{}) {
	t.Helper()
	parts := strings.Split(token, ".")
	require.GreaterOrEqual(t, len(parts), 2, "invalid token format: %q", token)
	return decodeSegment(t, parts[0]), decodeSegment(t, parts[1])
}

func decodeSegment(t *testing.T, segment string) map[string]interface{} {
	t.Helper()
	raw, err := base64.RawURLEncoding.DecodeString(segment)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}
