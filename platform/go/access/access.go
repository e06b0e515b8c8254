// Package access decides whether an authenticated principal may work inside the
// school bound to its request. It complements namespace binding: binding limits
// what a query can see, the verifier limits who gets to issue it.
package access

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/zenGate-Global/schoolspace/platform/go/auth"
	"github.com/zenGate-Global/schoolspace/platform/go/httperror"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
)

// MembershipStore answers whether a user holds any role in a school.
type MembershipStore interface {
	IsMember(ctx context.Context, userID string, schoolID int64) (bool, error)
}

// Verifier checks principal to school association.
type Verifier struct {
	members MembershipStore
	logger  *zap.Logger
}

func NewVerifier(members MembershipStore, logger *zap.Logger) *Verifier {
	if members == nil {
		panic("access verifier requires membership store")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{members: members, logger: logger}
}

// Verify returns nil when creds may act in scope. Bypass scopes and scopes without
// a school always pass. Otherwise a membership record grants access, falling back
// to the primary school carried by the principal. Denials wrap tenant.ErrAccessDenied.
func (v *Verifier) Verify(ctx context.Context, creds *auth.UserCredentials, scope tenant.Scope) error {
	if scope.Bypass || scope.IsShared() {
		return nil
	}
	if creds == nil || creds.Id == "" {
		return fmt.Errorf("%w: no authenticated principal", tenant.ErrAccessDenied)
	}
	if creds.IsPlatformAdmin {
		return nil
	}

	member, err := v.members.IsMember(ctx, creds.Id, scope.SchoolID)
	if err != nil {
		return err
	}
	if member || primarySchool(creds) == scope.SchoolID {
		return nil
	}

	v.logger.Info("principal is not associated with school",
		zap.String("user_id", creds.Id), zap.Int64("school_id", scope.SchoolID))
	return fmt.Errorf("%w: user %s is not associated with school %d", tenant.ErrAccessDenied, creds.Id, scope.SchoolID)
}

// primarySchool returns the principal's fallback school, or 0 when it has none.
func primarySchool(creds *auth.UserCredentials) int64 {
	switch {
	case creds.PrimarySchoolID != nil:
		return *creds.PrimarySchoolID
	case creds.SchoolID != nil:
		return *creds.SchoolID
	default:
		return 0
	}
}

// Middleware runs Verify against the scope bound by the tenant middleware. It must
// be mounted after both authentication and tenant binding.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	if v == nil {
		panic("access middleware requires verifier")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			scope, ok := tenant.FromContext(ctx)
			if !ok {
				httperror.Respond(w, r, v.logger, tenant.ErrMissingTenantContext)
				return
			}

			creds, _ := auth.UserFromContext(ctx)
			if err := v.Verify(ctx, creds, scope); err != nil {
				httperror.Respond(w, r, v.logger, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
