package token

import (
	"fmt"
	"strings"
)

// SplitScopes normalizes a scope claim to a list. Identity providers return
// scopes either as a space-delimited string or as a list of strings; both
// forms are accepted.
func SplitScopes(v any) []string {
	switch scopes := v.(type) {
	case nil:
		return nil
	case string:
		return strings.Fields(scopes)
	case []string:
		return scopes
	case []any:
		out := make([]string, 0, len(scopes))
		for _, s := range scopes {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// HasRequiredScopes reports whether every required scope is present in the
// granted set. An empty requirement always passes.
func HasRequiredScopes(granted, required []string) bool {
	set := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		set[s] = struct{}{}
	}
	for _, r := range required {
		if _, ok := set[r]; !ok {
			return false
		}
	}
	return true
}

// RequireScopes returns ErrInsufficientScope naming the first missing scope,
// or nil when all required scopes are granted.
func RequireScopes(granted, required []string) error {
	set := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		set[s] = struct{}{}
	}
	for _, r := range required {
		if _, ok := set[r]; !ok {
			return fmt.Errorf("%w: missing %q", ErrInsufficientScope, r)
		}
	}
	return nil
}
