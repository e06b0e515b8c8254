package tenant

import (
	"errors"
	"fmt"
)

var (
	// ErrTenantNotFound is returned when a lookup key matches no school.
	ErrTenantNotFound = errors.New("school not found")
	// ErrTenantInactive is returned when the school exists but cannot be bound.
	ErrTenantInactive = errors.New("school is not active")
	// ErrMissingTenantContext is returned when a route needs a school and none was resolved.
	ErrMissingTenantContext = errors.New("school context required")
	// ErrAccessDenied is returned when the principal is not a member of the resolved school.
	ErrAccessDenied = errors.New("access to school denied")
	// ErrPoolExhausted is returned when no connection could be acquired in time.
	ErrPoolExhausted = errors.New("database pool exhausted")
	// ErrInvalidNamespace is returned when a namespace fails the identifier allow-list.
	ErrInvalidNamespace = errors.New("invalid namespace identifier")
)

// LookupError carries the key that failed to resolve so responses can name it.
type LookupError struct {
	Kind LookupKind
	Key  string
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Kind, e.Key, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// NotFound builds the lookup error for a key without a directory entry.
func NotFound(kind LookupKind, key string) error {
	return &LookupError{Kind: kind, Key: key, Err: ErrTenantNotFound}
}

// Inactive builds the lookup error for a key whose school is not active.
func Inactive(kind LookupKind, key string) error {
	return &LookupError{Kind: kind, Key: key, Err: ErrTenantInactive}
}
