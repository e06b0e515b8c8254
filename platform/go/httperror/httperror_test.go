package httperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zenGate-Global/schoolspace/platform/go/persistence"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
)

func TestFromErrorMapsTaxonomy(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", tenant.NotFound(tenant.BySubdomain, "ghost"), http.StatusNotFound, CodeTenantNotFound},
		{"inactive", tenant.Inactive(tenant.ByCode, "oak"), http.StatusForbidden, CodeTenantInactive},
		{"missing context", tenant.ErrMissingTenantContext, http.StatusBadRequest, CodeTenantContextRequired},
		{"access denied", fmt.Errorf("verify: %w", tenant.ErrAccessDenied), http.StatusForbidden, CodeAccessDenied},
		{"pool exhausted", tenant.ErrPoolExhausted, http.StatusServiceUnavailable, CodePoolExhausted},
		{"body too large", &http.MaxBytesError{Limit: 1 << 20}, http.StatusRequestEntityTooLarge, CodeRequestTooLarge},
		{"invalid namespace", tenant.ValidateNamespace("Bad;"), http.StatusInternalServerError, CodeInvalidNamespace},
		{"data access", &persistence.DataAccessError{Op: "query_one", Err: errors.New("boom")}, http.StatusInternalServerError, CodeInternal},
		{"unknown", errors.New("whatever"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := FromError(tc.err)
			require.Equal(t, tc.status, p.Status)
			require.Equal(t, tc.code, p.Code)
		})
	}
}

func TestNotFoundNamesTheKey(t *testing.T) {
	t.Parallel()

	p := FromError(tenant.NotFound(tenant.BySubdomain, "ghost"))
	require.Contains(t, p.Detail, `"ghost"`)
	require.Contains(t, p.Detail, "subdomain")
}

func TestRespondHidesStoreDetail(t *testing.T) {
	t.Parallel()

	err := &persistence.DataAccessError{Op: "execute", Err: &pgconn.PgError{Message: `relation "users" does not exist`}}
	rec := httptest.NewRecorder()
	Respond(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil), zaptest.NewLogger(t), err)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	require.NotContains(t, rec.Body.String(), "relation")

	var p Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.Equal(t, CodeInternal, p.Code)
}

func TestPoolExhaustedSetsRetryAfter(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	Respond(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil, tenant.ErrPoolExhausted)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
}
