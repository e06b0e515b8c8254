package tenant

import (
	"context"
)

// Scope captures the resolved tenant routing for a request. A zero Namespace means
// the request targets the shared platform schema. Bypass marks platform
// administrators; downstream checks consult it instead of re-deriving admin status.
type Scope struct {
	SchoolID  int64
	Code      string
	Namespace string
	Bypass    bool
}

// IsShared reports whether the scope targets the shared platform schema.
func (s Scope) IsShared() bool {
	return s.Namespace == SharedNamespace
}

// SharedScope returns a scope that explicitly targets the shared platform schema.
func SharedScope() Scope {
	return Scope{}
}

// ScopeFor builds the scope for a school. Schools that are not active and schools
// whose namespace fails validation never produce a scope.
func ScopeFor(s School) (Scope, error) {
	if !s.Active() {
		return Scope{}, Inactive(ByID, formatID(s.ID))
	}
	if err := ValidateNamespace(s.Namespace); err != nil {
		return Scope{}, err
	}
	return Scope{SchoolID: s.ID, Code: s.Code, Namespace: s.Namespace}, nil
}

type ctxKey string

const scopeKey ctxKey = "SCHOOLSPACE_TENANT_SCOPE"

// WithScope returns a derived context carrying the tenant Scope.
func WithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeKey, scope)
}

// FromContext extracts the tenant Scope and a boolean indicating presence.
func FromContext(ctx context.Context) (Scope, bool) {
	v := ctx.Value(scopeKey)
	if v == nil {
		return Scope{}, false
	}

	scope, ok := v.(Scope)
	return scope, ok
}
