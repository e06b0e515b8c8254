package devtoken

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Params captures the claims of a development session token. No environment
// variables are read so the builder stays deterministic for tooling.
type Params struct {
	ProjectID       string        // used for aud and iss; default "schoolspace-local"
	UserID          string        // user_id/sub/uid (required)
	Email           string        // email claim (required)
	Name            string        // display name (optional)
	EmailVerified   bool          // email_verified claim
	PlatformAdmin   bool          // platform_admin claim; bypasses school binding
	SchoolID        int64         // school_id claim; 0 omits the school claims
	SchoolNamespace string        // school_schema claim; required with SchoolID
	PrimarySchoolID int64         // primary_school_id claim; 0 omits it
	ExpiresIn       time.Duration // relative expiry; default 1h if zero
	Audience        string        // optional override; defaults to ProjectID
	Issuer          string        // optional override; defaults to https://securetoken.google.com/<projectId>
}

// Claims validates p and returns the token payload.
func Claims(p Params, now time.Time) (map[string]interface{}, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return nil, errors.New("userID is required")
	}
	if strings.TrimSpace(p.Email) == "" {
		return nil, errors.New("email is required")
	}
	if (p.SchoolID == 0) != (strings.TrimSpace(p.SchoolNamespace) == "") {
		return nil, errors.New("schoolID and schoolNamespace must be provided together")
	}

	if now.IsZero() {
		now = time.Now().UTC()
	}

	projectID := p.ProjectID
	if strings.TrimSpace(projectID) == "" {
		projectID = "schoolspace-local"
	}

	expiresIn := p.ExpiresIn
	if expiresIn == 0 {
		expiresIn = time.Hour
	}

	issuer := p.Issuer
	if strings.TrimSpace(issuer) == "" {
		issuer = fmt.Sprintf("https://securetoken.google.com/%s", projectID)
	}

	audience := p.Audience
	if strings.TrimSpace(audience) == "" {
		audience = projectID
	}

	payload := map[string]interface{}{
		"iss":            issuer,
		"aud":            audience,
		"auth_time":      now.Unix(),
		"user_id":        p.UserID,
		"sub":            p.UserID,
		"iat":            now.Unix(),
		"exp":            now.Add(expiresIn).Unix(),
		"email":          p.Email,
		"email_verified": p.EmailVerified,
		"platform_admin": p.PlatformAdmin,
	}
	if p.Name != "" {
		payload["name"] = p.Name
	}
	if p.SchoolID != 0 {
		payload["school_id"] = p.SchoolID
		payload["school_schema"] = p.SchoolNamespace
	}
	if p.PrimarySchoolID != 0 {
		payload["primary_school_id"] = p.PrimarySchoolID
	}

	return payload, nil
}

// BuildUnsigned returns a JWT string with alg "none" and no signature. It is
// accepted by the API only when AUTH_PROVIDER=dev.
func BuildUnsigned(p Params, now time.Time) (string, error) {
	payload, err := Claims(p, now)
	if err != nil {
		return "", err
	}

	headerSegment, err := encodeSegment(map[string]interface{}{"alg": "none", "typ": "JWT"})
	if err != nil {
		return "", err
	}

	payloadSegment, err := encodeSegment(payload)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s.%s", headerSegment, payloadSegment), nil
}

// BuildHMAC returns an HS256 token signed with secret, accepted when AUTH_PROVIDER=hmac.
func BuildHMAC(p Params, now time.Time, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("secret is required")
	}

	payload, err := Claims(p, now)
	if err != nil {
		return "", err
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims(payload)).SignedString(secret)
}

func encodeSegment(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
