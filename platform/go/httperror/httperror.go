// Package httperror renders errors as application/problem+json responses. Tenant
// resolution and data access failures each map to a stable machine-readable code
// so clients can branch on it, e.g. send the user to school selection on
// TENANT_CONTEXT_REQUIRED instead of showing a generic error.
package httperror

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/zenGate-Global/schoolspace/platform/go/logging"
	"github.com/zenGate-Global/schoolspace/platform/go/persistence"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
)

const (
	CodeTenantNotFound        = "TENANT_NOT_FOUND"
	CodeTenantInactive        = "TENANT_INACTIVE"
	CodeTenantContextRequired = "TENANT_CONTEXT_REQUIRED"
	CodeAccessDenied          = "ACCESS_DENIED"
	CodePoolExhausted         = "POOL_EXHAUSTED"
	CodeInvalidNamespace      = "INVALID_NAMESPACE"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeNotFound              = "NOT_FOUND"
	CodeConflict              = "CONFLICT"
	CodeValidation            = "VALIDATION_FAILED"
	CodeRequestTooLarge       = "REQUEST_TOO_LARGE"
	CodeInternal              = "INTERNAL"
)

const problemBase = "https://schoolspace.dev/problems/"

// RetryAfterSeconds is advertised on POOL_EXHAUSTED responses.
const RetryAfterSeconds = 1

// Problem is an RFC 7807 body extended with a stable code.
type Problem struct {
	Type   string              `json:"type"`
	Title  string              `json:"title"`
	Status int                 `json:"status"`
	Detail string              `json:"detail,omitempty"`
	Code   string              `json:"code"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// New builds a Problem whose type URI is derived from code.
func New(status int, code, title, detail string) Problem {
	return Problem{
		Type:   problemBase + code,
		Title:  title,
		Status: status,
		Detail: detail,
		Code:   code,
	}
}

// FromError maps the tenant and persistence taxonomy onto a Problem. Unknown
// errors and store failures become a generic 500 that never carries store text.
func FromError(err error) Problem {
	var (
		lookupErr *tenant.LookupError
		tooLarge  *http.MaxBytesError
	)
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound):
		detail := "school not found"
		if errors.As(err, &lookupErr) {
			detail = "no school matches " + string(lookupErr.Kind) + " " + strconv.Quote(lookupErr.Key)
		}
		return New(http.StatusNotFound, CodeTenantNotFound, "School not found", detail)
	case errors.Is(err, tenant.ErrTenantInactive):
		return New(http.StatusForbidden, CodeTenantInactive, "School inactive", "this school is not currently active")
	case errors.Is(err, tenant.ErrMissingTenantContext):
		return New(http.StatusBadRequest, CodeTenantContextRequired, "School context required", "select a school before using this endpoint")
	case errors.Is(err, tenant.ErrAccessDenied):
		return New(http.StatusForbidden, CodeAccessDenied, "Access denied", "you are not a member of this school")
	case errors.Is(err, tenant.ErrPoolExhausted):
		return New(http.StatusServiceUnavailable, CodePoolExhausted, "Service busy", "the service is busy, retry shortly")
	case errors.As(err, &tooLarge):
		return New(http.StatusRequestEntityTooLarge, CodeRequestTooLarge, "Request too large",
			"request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
	case errors.Is(err, tenant.ErrInvalidNamespace):
		return New(http.StatusInternalServerError, CodeInvalidNamespace, "Internal server error", "an unexpected error occurred")
	default:
		return New(http.StatusInternalServerError, CodeInternal, "Internal server error", "an unexpected error occurred")
	}
}

// Write sends p as the response body.
func Write(w http.ResponseWriter, p Problem) {
	if p.Code == CodePoolExhausted {
		w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds))
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// Respond maps err, logs it on the request logger at a level matching the
// status, and writes the response. Store failures are logged with their full
// cause; the client only sees the generic body.
func Respond(w http.ResponseWriter, r *http.Request, fallback *zap.Logger, err error) {
	p := FromError(err)
	Log(logging.FromRequest(r, orNop(fallback)), p, err)
	Write(w, p)
}

// Log records err at a level matching the problem status.
func Log(logger *zap.Logger, p Problem, err error) {
	fields := []zap.Field{zap.String("code", p.Code), zap.Int("status", p.Status), zap.Error(err)}

	var dae *persistence.DataAccessError
	if errors.As(err, &dae) {
		fields = append(fields, zap.String("op", dae.Op), zap.String("cause", dae.Cause()))
	}

	switch {
	case p.Status >= http.StatusInternalServerError:
		logger.Error("request failed", fields...)
	case p.Status == http.StatusNotFound:
		logger.Info("resource not found", fields...)
	default:
		logger.Warn("request rejected", fields...)
	}
}

func orNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
