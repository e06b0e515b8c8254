package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"

	platformauth "github.com/zenGate-Global/schoolspace/platform/go/auth"
	"github.com/zenGate-Global/schoolspace/platform/go/requesttrace"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
)

func withPrincipal(creds *platformauth.UserCredentials, scope tenant.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := tenant.WithScope(r.Context(), scope)
			if creds != nil {
				ctx = platformauth.WithUser(ctx, creds)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func TestRequestTraceWithAuth(t *testing.T) {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(withPrincipal(&platformauth.UserCredentials{Id: "user-123"}, tenant.Scope{SchoolID: 12, Namespace: "school_oak"}))
	r.Use(RequestTrace)

	var audit requesttrace.AuditInfo
	r.Get("/test", func(w http.ResponseWriter, req *http.Request) {
		audit, _ = requesttrace.FromContext(req.Context())
		w.WriteHeader(http.StatusOK)
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/test", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, requesttrace.ActorKindUser, audit.ActorKind)
	require.Equal(t, "user-123", *audit.UserID)
	require.Equal(t, int64(12), audit.SchoolID)
	require.NotEmpty(t, audit.RequestID)
}

func TestRequestTraceRejectsIncompleteCredentials(t *testing.T) {
	r := chi.NewRouter()
	r.Use(withPrincipal(&platformauth.UserCredentials{}, tenant.SharedScope()))
	r.Use(RequestTrace)
	r.Get("/test", func(w http.ResponseWriter, req *http.Request) { w.WriteHeader(http.StatusOK) })

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/test", nil))
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRequestTraceAnonymous(t *testing.T) {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(RequestTrace)

	var audit requesttrace.AuditInfo
	r.Get("/test", func(w http.ResponseWriter, req *http.Request) {
		audit, _ = requesttrace.FromContext(req.Context())
		w.WriteHeader(http.StatusOK)
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/test", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, requesttrace.ActorKindAnonymous, audit.ActorKind)
	require.Nil(t, audit.UserID)
}

func TestCORSAllowsTenantHeaders(t *testing.T) {
	h := CORS(CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/users", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)

	require.Equal(t, http.StatusNoContent, resp.Code)
	require.Equal(t, "http://localhost:3000", resp.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, resp.Header().Get("Access-Control-Allow-Headers"), "X-School-Subdomain")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Empty(t, resp.Header().Get("Access-Control-Allow-Origin"))
}
