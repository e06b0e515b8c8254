// Package middleware resolves the school a request belongs to and binds the
// resulting tenant.Scope to the request context.
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zenGate-Global/schoolspace/platform/go/auth"
	"github.com/zenGate-Global/schoolspace/platform/go/metrics"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant/cache"
)

const (
	DefaultDevHeader     = "X-School-Subdomain"
	DefaultDevQueryParam = "school"
	DefaultCodeParam     = "schoolCode"

	maxCodeBodyBytes = 1 << 20
)

// Source names the rule that produced a resolution.
type Source string

const (
	SourcePlatformAdmin Source = "platform_admin"
	SourceCode          Source = "code"
	SourceSession       Source = "session"
	SourceDevOverride   Source = "dev_override"
	SourceSubdomain     Source = "subdomain"
	SourceNone          Source = "none"
)

// Directory is the read side of the school directory. Lookup returns schools of
// any status and a *tenant.LookupError wrapping tenant.ErrTenantNotFound for
// unknown keys.
type Directory interface {
	Lookup(ctx context.Context, kind tenant.LookupKind, key string) (tenant.School, error)
}

// Config controls resolution.
type Config struct {
	ReservedSubdomains []string
	// AllowDevOverride enables the development header and query parameter. It
	// must be false in production; even when true, only loopback hosts may use it.
	AllowDevOverride bool
	DevHeader        string
	DevQueryParam    string
	// CodeParam names the path parameter, query parameter and JSON body field
	// carrying an explicit school code on code-targeting routes.
	CodeParam string
	// TrustSessionClaims binds session school claims as issued, without a
	// directory call. The default (false) departs from using claims directly: the
	// claimed school is looked up by id (normally a cache hit) and must still be
	// active with the claimed namespace, so a deactivated school stops resolving
	// before its tokens expire.
	TrustSessionClaims bool
	Logger             *zap.Logger
}

// Resolution is the outcome of resolving one request.
type Resolution struct {
	Scope  tenant.Scope
	Source Source
}

// Resolver turns requests into tenant scopes. It is safe for concurrent use.
type Resolver struct {
	dir   Directory
	cache *cache.Cache
	cfg   Config
}

func NewResolver(dir Directory, c *cache.Cache, cfg Config) *Resolver {
	if dir == nil {
		panic("tenant resolver: directory is required")
	}
	if c == nil {
		panic("tenant resolver: cache is required")
	}
	if cfg.ReservedSubdomains == nil {
		cfg.ReservedSubdomains = tenant.DefaultReservedSubdomains
	}
	if cfg.DevHeader == "" {
		cfg.DevHeader = DefaultDevHeader
	}
	if cfg.DevQueryParam == "" {
		cfg.DevQueryParam = DefaultDevQueryParam
	}
	if cfg.CodeParam == "" {
		cfg.CodeParam = DefaultCodeParam
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Resolver{dir: dir, cache: c, cfg: cfg}
}

// Lookup resolves a key through the cache and refuses schools that are not active.
func (res *Resolver) Lookup(ctx context.Context, kind tenant.LookupKind, key string) (tenant.School, error) {
	normalized, err := tenant.NormalizeKey(kind, key)
	if err != nil {
		return tenant.School{}, tenant.NotFound(kind, strings.TrimSpace(key))
	}

	school, err := res.cache.GetOrLoad(ctx, kind, normalized, func(ctx context.Context) (tenant.School, error) {
		return res.dir.Lookup(ctx, kind, normalized)
	})
	if err != nil {
		return tenant.School{}, err
	}
	if !school.Active() {
		return tenant.School{}, tenant.Inactive(kind, normalized)
	}
	return school, nil
}

// Resolve applies the resolution rules in order:
//  1. platform administrators get a bypass scope, bound to a school only when
//     a code-targeting route names one;
//  2. on code-targeting routes an explicit school code wins;
//  3. school claims carried by the session;
//  4. the development override, for loopback hosts outside production;
//  5. the Host subdomain. Reserved or missing subdomains yield the shared scope.
func (res *Resolver) Resolve(r *http.Request, codeTargeting bool) (Resolution, error) {
	out, err := res.resolve(r, codeTargeting)
	outcome := "ok"
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound):
		outcome = "not_found"
	case errors.Is(err, tenant.ErrTenantInactive):
		outcome = "inactive"
	case err != nil:
		outcome = "error"
	case out.Scope.IsShared() && !out.Scope.Bypass:
		outcome = "shared"
	}
	metrics.Resolutions.WithLabelValues(string(out.Source), outcome).Inc()
	return out, err
}

func (res *Resolver) resolve(r *http.Request, codeTargeting bool) (Resolution, error) {
	ctx := r.Context()
	creds, _ := auth.UserFromContext(ctx)

	var code string
	if codeTargeting {
		var err error
		if code, err = res.explicitCode(r); err != nil {
			return Resolution{Source: SourceCode}, err
		}
	}

	if creds != nil && creds.IsPlatformAdmin {
		if code == "" {
			return Resolution{Scope: tenant.Scope{Bypass: true}, Source: SourcePlatformAdmin}, nil
		}
		scope, err := res.scopeFor(ctx, tenant.ByCode, code)
		scope.Bypass = true
		return Resolution{Scope: scope, Source: SourcePlatformAdmin}, err
	}

	if code != "" {
		scope, err := res.scopeFor(ctx, tenant.ByCode, code)
		return Resolution{Scope: scope, Source: SourceCode}, err
	}

	if creds.HasSchoolClaims() {
		scope, err := res.sessionScope(ctx, creds)
		return Resolution{Scope: scope, Source: SourceSession}, err
	}

	if sub := res.devOverride(r); sub != "" {
		scope, err := res.scopeFor(ctx, tenant.BySubdomain, sub)
		return Resolution{Scope: scope, Source: SourceDevOverride}, err
	}

	if sub := tenant.SubdomainFromHost(r.Host, res.cfg.ReservedSubdomains); sub != "" {
		scope, err := res.scopeFor(ctx, tenant.BySubdomain, sub)
		return Resolution{Scope: scope, Source: SourceSubdomain}, err
	}

	return Resolution{Scope: tenant.SharedScope(), Source: SourceNone}, nil
}

func (res *Resolver) scopeFor(ctx context.Context, kind tenant.LookupKind, key string) (tenant.Scope, error) {
	school, err := res.Lookup(ctx, kind, key)
	if err != nil {
		return tenant.Scope{}, err
	}
	return tenant.ScopeFor(school)
}

func (res *Resolver) sessionScope(ctx context.Context, creds *auth.UserCredentials) (tenant.Scope, error) {
	id, namespace := *creds.SchoolID, *creds.SchoolNamespace
	if err := tenant.ValidateNamespace(namespace); err != nil {
		return tenant.Scope{}, err
	}
	if res.cfg.TrustSessionClaims {
		return tenant.Scope{SchoolID: id, Namespace: namespace}, nil
	}

	scope, err := res.scopeFor(ctx, tenant.ByID, strconv.FormatInt(id, 10))
	if err != nil {
		return tenant.Scope{}, err
	}
	if scope.Namespace != namespace {
		res.cfg.Logger.Warn("session school claims disagree with directory",
			zap.Int64("school_id", id), zap.String("claimed_namespace", namespace))
		return tenant.Scope{}, tenant.ErrAccessDenied
	}
	return scope, nil
}

// devOverride returns the lower-cased override subdomain, or "" when overrides
// are disabled, absent, or the request did not arrive on a loopback host.
func (res *Resolver) devOverride(r *http.Request) string {
	if !res.cfg.AllowDevOverride || !tenant.IsLoopbackHost(r.Host) {
		return ""
	}
	if v := strings.TrimSpace(r.Header.Get(res.cfg.DevHeader)); v != "" {
		return strings.ToLower(v)
	}
	return strings.ToLower(strings.TrimSpace(r.URL.Query().Get(res.cfg.DevQueryParam)))
}

// explicitCode reads the school code from the path, then the query string, then
// a JSON body. The body is restored for the downstream handler. A JSON body over
// maxCodeBodyBytes is rejected rather than resolved some other way.
func (res *Resolver) explicitCode(r *http.Request) (string, error) {
	if v := strings.TrimSpace(chi.URLParam(r, res.cfg.CodeParam)); v != "" {
		return v, nil
	}
	if v := strings.TrimSpace(r.URL.Query().Get(res.cfg.CodeParam)); v != "" {
		return v, nil
	}
	if r.Body == nil || r.Body == http.NoBody {
		return "", nil
	}
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		return "", nil
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxCodeBodyBytes+1))
	if err != nil {
		return "", err
	}
	if len(raw) > maxCodeBodyBytes {
		return "", &http.MaxBytesError{Limit: maxCodeBodyBytes}
	}
	r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(raw), r.Body), Closer: r.Body}

	var body map[string]json.RawMessage
	if json.Unmarshal(raw, &body) != nil {
		return "", nil
	}
	var code string
	if field, ok := body[res.cfg.CodeParam]; ok && json.Unmarshal(field, &code) == nil {
		return strings.TrimSpace(code), nil
	}
	return "", nil
}

type readCloser struct {
	io.Reader
	io.Closer
}
