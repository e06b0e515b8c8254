package tenant

import (
	"fmt"
	"strconv"
	"strings"
)

// Status is the lifecycle state recorded for a school in the directory.
type Status string

const (
	StatusActive       Status = "active"
	StatusInactive     Status = "inactive"
	StatusProvisioning Status = "provisioning"
	StatusArchived     Status = "archived"
)

// ParseStatus converts a stored or user supplied value into a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusActive, StatusInactive, StatusProvisioning, StatusArchived:
		return st, nil
	default:
		return "", fmt.Errorf("unknown school status %q", s)
	}
}

// School is the directory entry for a tenant. Namespace is the PostgreSQL schema
// holding the school's tables; it is immutable once assigned.
type School struct {
	ID        int64
	Name      string
	Code      string
	Subdomain string
	Namespace string
	Status    Status
}

// Active reports whether the school may be bound to a connection.
func (s School) Active() bool {
	return s.Status == StatusActive
}

// LookupKind identifies which directory column a lookup key targets.
type LookupKind string

const (
	BySubdomain LookupKind = "subdomain"
	ByID        LookupKind = "id"
	ByCode      LookupKind = "code"
)

// NormalizeKey canonicalises a lookup key so the directory and the cache agree on
// one spelling. Subdomains and codes are case-insensitive; ids must be positive integers.
func NormalizeKey(kind LookupKind, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("empty %s lookup key", kind)
	}

	switch kind {
	case BySubdomain, ByCode:
		return strings.ToLower(key), nil
	case ByID:
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || id <= 0 {
			return "", fmt.Errorf("invalid school id %q", key)
		}
		return strconv.FormatInt(id, 10), nil
	default:
		return "", fmt.Errorf("unknown lookup kind %q", kind)
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
