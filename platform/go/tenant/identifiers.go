package tenant

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// maxLabelLength bounds codes and subdomains to a single DNS label.
const maxLabelLength = 63

var labelPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// NormalizeCode trims and lower-cases a school business code and checks that it
// is a kebab-case label whose derived namespace is valid.
func NormalizeCode(input string) (string, error) {
	code, err := normalizeLabel("code", input)
	if err != nil {
		return "", err
	}
	if _, err := BuildNamespace(code); err != nil {
		return "", fmt.Errorf("invalid code %q: %w", input, err)
	}
	return code, nil
}

// NormalizeSubdomain trims and lower-cases a subdomain and rejects reserved labels.
func NormalizeSubdomain(input string, reserved []string) (string, error) {
	sub, err := normalizeLabel("subdomain", input)
	if err != nil {
		return "", err
	}
	for _, r := range reserved {
		if sub == r {
			return "", fmt.Errorf("subdomain %q is reserved", sub)
		}
	}
	return sub, nil
}

func normalizeLabel(field, input string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(input))
	if trimmed == "" {
		return "", errors.New(field + " is required")
	}
	if len(trimmed) > maxLabelLength {
		return "", fmt.Errorf("%s %q is longer than %d characters", field, input, maxLabelLength)
	}
	if !labelPattern.MatchString(trimmed) {
		return "", fmt.Errorf("invalid %s %q: must match %s", field, input, labelPattern.String())
	}
	return trimmed, nil
}
