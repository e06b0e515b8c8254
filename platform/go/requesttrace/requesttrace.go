// Package requesttrace carries who issued a request, and against which school,
// so mutations can be attributed in audit logs.
package requesttrace

import (
	"context"
	"errors"

	"go.uber.org/zap"

	platformauth "github.com/zenGate-Global/schoolspace/platform/go/auth"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
)

type contextKey string

const (
	ctxAuditInfo contextKey = "SCHOOLSPACE_REQUEST_TRACE"
)

// ActorKind represents who initiated a request.
type ActorKind string

const (
	ActorKindUser          ActorKind = "user"
	ActorKindPlatformAdmin ActorKind = "platform_admin"
	ActorKindAnonymous     ActorKind = "anonymous"
	ActorKindSystem        ActorKind = "system"
)

// AuditInfo captures request-scoped metadata needed for traceability and auditing.
// UserID is set only for user and platform admin actors. SchoolID is zero when
// the request was not bound to a school.
type AuditInfo struct {
	ActorKind ActorKind
	UserID    *string
	SchoolID  int64
	Namespace string
	RequestID string
}

// IntoContext stores the AuditInfo in the provided context.
func IntoContext(ctx context.Context, audit AuditInfo) context.Context {
	return context.WithValue(ctx, ctxAuditInfo, audit)
}

// FromContext extracts the AuditInfo from context, returning false when not present.
func FromContext(ctx context.Context) (AuditInfo, bool) {
	if ctx == nil {
		return AuditInfo{}, false
	}
	v := ctx.Value(ctxAuditInfo)
	if v == nil {
		return AuditInfo{}, false
	}

	audit, ok := v.(AuditInfo)
	return audit, ok
}

// FromContextOrSystem returns the AuditInfo stored on the context, or a system
// record when absent (CLI and background jobs).
func FromContextOrSystem(ctx context.Context) AuditInfo {
	if audit, ok := FromContext(ctx); ok {
		return audit
	}
	return System("")
}

// FromCredentials builds an AuditInfo from authenticated user credentials, the
// bound scope and a request ID. Returns an error when creds are nil or missing a UserID.
func FromCredentials(creds *platformauth.UserCredentials, scope tenant.Scope, requestID string) (AuditInfo, error) {
	if creds == nil {
		return AuditInfo{}, errors.New("credentials are required to build audit info")
	}
	if creds.Id == "" {
		return AuditInfo{}, errors.New("user id is required to build audit info")
	}

	kind := ActorKindUser
	if creds.IsPlatformAdmin {
		kind = ActorKindPlatformAdmin
	}
	return AuditInfo{
		ActorKind: kind,
		UserID:    &creds.Id,
		SchoolID:  scope.SchoolID,
		Namespace: scope.Namespace,
		RequestID: requestID,
	}, nil
}

// Anonymous builds an AuditInfo for unauthenticated requests.
func Anonymous(scope tenant.Scope, requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindAnonymous, SchoolID: scope.SchoolID, Namespace: scope.Namespace, RequestID: requestID}
}

// System builds an AuditInfo for background/system operations.
func System(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindSystem, RequestID: requestID}
}

// Fields renders the actor as log fields. Request ids are already carried by
// the request logger.
func (a AuditInfo) Fields() []zap.Field {
	fields := []zap.Field{zap.String("actor_kind", string(a.ActorKind))}
	if a.UserID != nil && *a.UserID != "" {
		fields = append(fields, zap.String("actor_id", *a.UserID))
	}
	return fields
}
