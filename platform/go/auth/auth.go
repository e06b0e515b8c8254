package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v4"

	"github.com/zenGate-Global/schoolspace/platform/go/httperror"
)

type ctxKey string

const (
	ctxUserCredentials ctxKey = "SCHOOLSPACE_USER_CREDENTIALS"
)

// Claim names read from session tokens.
const (
	ClaimPlatformAdmin   = "platform_admin"
	ClaimLegacyAdmin     = "isAdmin"
	ClaimSchoolID        = "school_id"
	ClaimSchoolNamespace = "school_schema"
	ClaimPrimarySchoolID = "primary_school_id"
)

// UserCredentials is the authenticated principal. SchoolID and SchoolNamespace are
// set together when the session already carries a resolved school.
type UserCredentials struct {
	Id              string
	Email           string
	EmailVerified   bool
	Name            *string
	IsPlatformAdmin bool
	SchoolID        *int64
	SchoolNamespace *string
	PrimarySchoolID *int64
}

// HasSchoolClaims reports whether the session names both a school and its namespace.
func (u *UserCredentials) HasSchoolClaims() bool {
	return u != nil && u.SchoolID != nil && u.SchoolNamespace != nil
}

func UserFromContext(ctx context.Context) (*UserCredentials, bool) {
	v := ctx.Value(ctxUserCredentials)
	if v == nil {
		return nil, false
	}
	u, ok := v.(*UserCredentials)
	return u, ok
}

// WithUser stores credentials on the context.
func WithUser(ctx context.Context, creds *UserCredentials) context.Context {
	return context.WithValue(ctx, ctxUserCredentials, creds)
}

// VerifyFunc validates the incoming JWT and returns its claims map.
type VerifyFunc func(ctx context.Context, token string) (map[string]interface{}, error)

// ExtractFunc converts a claims map into UserCredentials.
type ExtractFunc func(claims map[string]interface{}) (*UserCredentials, error)

// JWT parses the request and sets the context credentials using the provided verify/extract functions.
// Requests without a bearer token pass through anonymously.
func JWT(verify VerifyFunc, extract ExtractFunc) func(http.Handler) http.Handler {
	if verify == nil {
		panic("auth.JWT: verify func must not be nil")
	}
	if extract == nil {
		extract = DefaultCredentialExtractor
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token, found := ExtractJWTToken(r)
			if token == "" || !found {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verify(r.Context(), token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				httperror.Write(w, httperror.New(http.StatusUnauthorized, httperror.CodeUnauthorized, "Unauthorized", "invalid token"))
				return
			}

			creds, err := extract(claims)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="invalid claims"`)
				httperror.Write(w, httperror.New(http.StatusUnauthorized, httperror.CodeUnauthorized, "Unauthorized", "invalid claims"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), creds)))
		})
	}
}

// DefaultCredentialExtractor converts standard and school claims into UserCredentials.
// A session naming a school must name its namespace too, and vice versa.
func DefaultCredentialExtractor(claims map[string]interface{}) (*UserCredentials, error) {
	if claims == nil {
		return nil, errors.New("missing claims")
	}

	creds := &UserCredentials{
		Id:              fallbackStringClaim(claims, []string{"uid", "user_id", "sub"}, ""),
		Email:           extractStringClaim(claims, "email"),
		EmailVerified:   extractBoolClaim(claims, "email_verified"),
		Name:            extractOptionalStringClaim(claims, "name"),
		IsPlatformAdmin: extractBoolClaim(claims, ClaimPlatformAdmin) || extractBoolClaim(claims, ClaimLegacyAdmin),
		SchoolNamespace: extractOptionalStringClaim(claims, ClaimSchoolNamespace),
	}
	if creds.Id == "" {
		return nil, errors.New("missing subject")
	}

	var err error
	if creds.SchoolID, err = extractOptionalIDClaim(claims, ClaimSchoolID); err != nil {
		return nil, err
	}
	if creds.PrimarySchoolID, err = extractOptionalIDClaim(claims, ClaimPrimarySchoolID); err != nil {
		return nil, err
	}

	if (creds.SchoolID == nil) != (creds.SchoolNamespace == nil) {
		return nil, fmt.Errorf("%s and %s must be provided together", ClaimSchoolID, ClaimSchoolNamespace)
	}

	return creds, nil
}

func extractBoolClaim(claims map[string]interface{}, key string) bool {
	if v, ok := claims[key]; ok {
		if boolVal, valid := v.(bool); valid {
			return boolVal
		}
	}
	return false
}

func extractStringClaim(claims map[string]interface{}, key string) string {
	if v, ok := claims[key]; ok {
		if strVal, valid := v.(string); valid {
			return strVal
		}
	}
	return ""
}

func extractOptionalStringClaim(claims map[string]interface{}, key string) *string {
	if v, ok := claims[key]; ok {
		if strVal, valid := v.(string); valid && strVal != "" {
			return &strVal
		}
	}
	return nil
}

// extractOptionalIDClaim accepts JSON numbers and decimal strings.
func extractOptionalIDClaim(claims map[string]interface{}, key string) (*int64, error) {
	v, ok := claims[key]
	if !ok || v == nil {
		return nil, nil
	}

	var id int64
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return nil, fmt.Errorf("claim %s is not an integer", key)
		}
		id = int64(n)
	case json.Number:
		parsed, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("claim %s: %w", key, err)
		}
		id = parsed
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("claim %s: %w", key, err)
		}
		id = parsed
	default:
		return nil, fmt.Errorf("claim %s has unsupported type %T", key, v)
	}

	if id <= 0 {
		return nil, fmt.Errorf("claim %s must be positive", key)
	}
	return &id, nil
}

func parseUnsignedJWTClaims(token string) (map[string]interface{}, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return nil, errors.New("invalid token format")
	}

	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	claims := make(map[string]interface{})
	if err := json.Unmarshal(decoded, &claims); err != nil {
		return nil, fmt.Errorf("unmarshal claims: %w", err)
	}

	return claims, nil
}

func fallbackStringClaim(claims map[string]interface{}, keys []string, def string) string {
	for _, key := range keys {
		if v := extractStringClaim(claims, key); v != "" {
			return v
		}
	}
	return def
}

// FirebaseTokenVerifier returns a VerifyFunc that validates tokens via Firebase Auth.
// School claims are expected as Firebase custom claims.
func FirebaseTokenVerifier(fbAuth *auth.Client) VerifyFunc {
	return func(ctx context.Context, token string) (map[string]interface{}, error) {
		t, err := fbAuth.VerifyIDToken(ctx, token)
		if err != nil {
			return nil, err
		}

		claims := make(map[string]interface{}, len(t.Claims)+2)
		for k, v := range t.Claims {
			claims[k] = v
		}
		claims["uid"] = t.UID
		claims["sub"] = t.Subject

		return claims, nil
	}
}

// HMACTokenVerifier returns a VerifyFunc for HS256/384/512 tokens signed with secret.
// Expiry and not-before are enforced by the parser.
func HMACTokenVerifier(secret []byte) VerifyFunc {
	if len(secret) == 0 {
		panic("auth.HMACTokenVerifier: secret must not be empty")
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}), jwt.WithJSONNumber())
	return func(ctx context.Context, token string) (map[string]interface{}, error) {
		claims := jwt.MapClaims{}
		if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
			return secret, nil
		}); err != nil {
			return nil, err
		}
		return claims, nil
	}
}

// UnsignedTokenVerifier returns a VerifyFunc that decodes unsigned JWT payloads without validation.
// Only for local development.
func UnsignedTokenVerifier() VerifyFunc {
	return func(ctx context.Context, token string) (map[string]interface{}, error) {
		return parseUnsignedJWTClaims(token)
	}
}

// RequirePlatformAdmin rejects requests whose principal is not a platform administrator.
func RequirePlatformAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creds, ok := UserFromContext(r.Context())
		if !ok || creds == nil {
			httperror.Write(w, httperror.New(http.StatusUnauthorized, httperror.CodeUnauthorized, "Unauthorized", "authentication required"))
			return
		}
		if !creds.IsPlatformAdmin {
			httperror.Write(w, httperror.New(http.StatusForbidden, httperror.CodeForbidden, "Forbidden", "platform administrator required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuthenticated rejects anonymous requests.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if creds, ok := UserFromContext(r.Context()); !ok || creds == nil {
			httperror.Write(w, httperror.New(http.StatusUnauthorized, httperror.CodeUnauthorized, "Unauthorized", "authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
