package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	platformauth "github.com/zenGate-Global/schoolspace/platform/go/auth"
	"github.com/zenGate-Global/schoolspace/platform/go/httperror"
	platformlogging "github.com/zenGate-Global/schoolspace/platform/go/logging"
	"github.com/zenGate-Global/schoolspace/platform/go/requesttrace"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
)

// RequestTrace populates the context with request-scoped AuditInfo so services can
// attribute mutations. It runs after authentication and tenant binding so both the
// credentials and the bound school are available when present.
func RequestTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := platformlogging.FromRequest(r, zap.NewNop())
		requestID, _ := r.Context().Value(middleware.RequestIDKey).(string)
		scope, _ := tenant.FromContext(r.Context())

		var audit requesttrace.AuditInfo
		if creds, ok := platformauth.UserFromContext(r.Context()); ok && creds != nil {
			var err error
			audit, err = requesttrace.FromCredentials(creds, scope, requestID)
			if err != nil {
				logger.Error("build audit info from credentials", zap.Error(err))
				httperror.Write(w, httperror.New(http.StatusUnauthorized, httperror.CodeUnauthorized, "Unauthorized", "credentials are incomplete"))
				return
			}
		} else {
			audit = requesttrace.Anonymous(scope, requestID)
		}

		ctx := requesttrace.IntoContext(r.Context(), audit)
		ctx = platformlogging.WithFields(ctx, audit.Fields()...)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
