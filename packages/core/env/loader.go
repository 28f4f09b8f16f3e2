package env

import (
	"fmt"
	"os"
	"strings"
)

// ParseAssignments turns KEY=VALUE strings (as given to --var) into a scope.
// The value may itself contain '='.
func ParseAssignments(pairs []string) (Scope, error) {
	result := make(Scope, len(pairs))
	for _, p := range pairs {
		key, value, found := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("invalid variable %q: expected KEY=VALUE", p)
		}
		result[key] = value
	}
	return result, nil
}

// LoadSystemEnv returns the OS environment variables that start with prefix,
// with the prefix stripped. An empty prefix yields an empty scope rather than
// the whole environment.
func LoadSystemEnv(prefix string) Scope {
	result := make(Scope)
	if prefix == "" {
		return result
	}
	for _, e := range os.Environ() {
		key, value, found := strings.Cut(e, "=")
		if !found {
			continue
		}
		if len(key) > len(prefix) && strings.HasPrefix(key, prefix) {
			result[key[len(prefix):]] = value
		}
	}
	return result
}
