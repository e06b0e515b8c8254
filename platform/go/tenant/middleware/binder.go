package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/zenGate-Global/schoolspace/platform/go/httperror"
	"github.com/zenGate-Global/schoolspace/platform/go/logging"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
)

// Mode selects how the binder treats requests that resolve to no school.
type Mode int

const (
	// Optional attaches whatever was resolved, including the shared scope.
	Optional Mode = iota
	// Strict rejects requests without a school unless the principal bypasses binding.
	Strict
)

// BindOptions configures Bind.
type BindOptions struct {
	Mode Mode
	// CodeTargeting lets an explicit school code in the path, query or body
	// select the school.
	CodeTargeting bool
	Logger        *zap.Logger
}

// Bind resolves the request's school and stores the scope on the request
// context. Resolution failures always end the request; only the absence of a
// school is subject to Mode.
func Bind(res *Resolver, opts BindOptions) func(http.Handler) http.Handler {
	if res == nil {
		panic("tenant middleware: resolver is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			resolution, err := res.Resolve(r, opts.CodeTargeting)
			if err != nil {
				httperror.Respond(w, r, logger, err)
				return
			}

			scope := resolution.Scope
			if opts.Mode == Strict && !bound(scope) {
				httperror.Respond(w, r, logger, tenant.ErrMissingTenantContext)
				return
			}

			ctx := tenant.WithScope(r.Context(), scope)
			ctx = logging.WithFields(ctx,
				zap.Int64("school_id", scope.SchoolID),
				zap.String("namespace", scope.Namespace),
				zap.Bool("bypass", scope.Bypass),
				zap.String("tenant_source", string(resolution.Source)),
			)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTenant rejects requests whose bound scope names no school. Platform
// administrators pass; handlers decide what they may do without a school.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, ok := tenant.FromContext(r.Context())
		if !ok || !bound(scope) {
			httperror.Respond(w, r, nil, tenant.ErrMissingTenantContext)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSchool rejects requests without a school even for platform administrators.
// Used by routes that read school data and therefore need a namespace.
func RequireSchool(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, ok := tenant.FromContext(r.Context())
		if !ok || scope.IsShared() {
			httperror.Respond(w, r, nil, tenant.ErrMissingTenantContext)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bound(scope tenant.Scope) bool {
	return !scope.IsShared() || scope.Bypass
}
