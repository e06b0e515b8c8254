package tenant

import (
	"fmt"
	"regexp"
	"strings"
)

// SharedNamespace is the sentinel used by scopes that target the platform schema
// (directory, memberships) rather than a school.
const SharedNamespace = ""

var namespacePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// ValidateNamespace enforces the identifier allow-list for schema names. It is the
// only gate in front of statements that carry a namespace, so it never corrects the
// input: anything outside the pattern is rejected.
func ValidateNamespace(name string) error {
	if !namespacePattern.MatchString(name) {
		return fmt.Errorf("%w: %q must match %s", ErrInvalidNamespace, name, namespacePattern.String())
	}
	if strings.HasPrefix(name, "pg_") || name == "information_schema" {
		return fmt.Errorf("%w: %q is a reserved schema", ErrInvalidNamespace, name)
	}
	return nil
}

// ToSnake converts a kebab-case code into snake_case.
func ToSnake(code string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(code)), "-", "_")
}

// BuildNamespace returns the canonical schema name for a school code.
// Format: school_<code_snake>.
func BuildNamespace(code string) (string, error) {
	name := "school_" + ToSnake(code)
	if err := ValidateNamespace(name); err != nil {
		return "", err
	}
	return name, nil
}
