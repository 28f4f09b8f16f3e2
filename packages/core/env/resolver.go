package env

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// variablePattern matches {{name}} where name holds no braces, so "{{{{a}}"
// still finds the inner "{{a}}".
var variablePattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// Scope maps variable names to their values.
type Scope map[string]string

// Merge folds scopes left to right; a key in a later scope overrides the same
// key in an earlier one. Pass the collection scope first and the environment
// scope second so the environment wins. The result is a fresh map and the
// inputs are not modified.
func Merge(scopes ...Scope) Scope {
	result := make(Scope)
	for _, s := range scopes {
		for k, v := range s {
			result[k] = v
		}
	}
	return result
}

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

// DynamicFunc produces values for placeholders the scope does not define,
// such as {{$guid}}. It is consulted on every substitution.
type DynamicFunc func(name string) (string, bool)

// Resolver substitutes placeholders from a fixed scope. The scope is copied on
// construction so later changes by the caller are never observed.
type Resolver struct {
	mu       sync.RWMutex
	scope    Scope
	pattern  *regexp.Regexp
	warnFunc WarnFunc
	dynamic  DynamicFunc
}

func NewResolver(scope Scope) *Resolver {
	merged := Merge(scope)
	return &Resolver{scope: merged, pattern: patternFor(merged)}
}

// patternFor extends variablePattern with the literal scope keys it cannot
// match: the empty key and keys holding braces. Literal keys are tried first,
// longest first, at any given position.
func patternFor(scope Scope) *regexp.Regexp {
	var literal []string
	for k := range scope {
		if k == "" || strings.ContainsAny(k, "{}") {
			literal = append(literal, k)
		}
	}
	if len(literal) == 0 {
		return variablePattern
	}
	sort.Slice(literal, func(i, j int) bool {
		if len(literal[i]) != len(literal[j]) {
			return len(literal[i]) > len(literal[j])
		}
		return literal[i] < literal[j]
	})
	quoted := make([]string, len(literal))
	for i, k := range literal {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return regexp.MustCompile(`\{\{(?:` + strings.Join(quoted, "|") + `)\}\}|` + variablePattern.String())
}

// SetWarnFunc sets a function to be called when a placeholder has no value.
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

// SetDynamic installs a fallback for names missing from the scope. Scope
// values always win over dynamic ones.
func (r *Resolver) SetDynamic(fn DynamicFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dynamic = fn
}

func (r *Resolver) lookup(key string) (string, bool) {
	r.mu.RLock()
	val, ok := r.scope[key]
	dynamic := r.dynamic
	r.mu.RUnlock()
	if ok || dynamic == nil {
		return val, ok
	}
	return dynamic(key)
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

// Resolve replaces every {{key}} whose key is in scope with its value. The
// input is scanned once, so substituted values are never expanded again.
// Placeholders without a value are left as they are.
func (r *Resolver) Resolve(input string) string {
	return r.pattern.ReplaceAllStringFunc(input, func(match string) string {
		key := match[2 : len(match)-2]
		if val, ok := r.lookup(key); ok {
			return val
		}
		r.warn("unresolved variable: %s", key)
		return match
	})
}

// Unresolved lists the placeholder names in input that have no value, in
// order of first appearance.
func (r *Resolver) Unresolved(input string) []string {
	var missing []string
	seen := make(map[string]bool)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.pattern.FindAllString(input, -1) {
		key := m[2 : len(m)-2]
		if _, ok := r.scope[key]; ok || seen[key] {
			continue
		}
		if r.dynamic != nil {
			if _, ok := r.dynamic(key); ok {
				continue
			}
		}
		seen[key] = true
		missing = append(missing, key)
	}
	return missing
}

// Substitute resolves text against scope without warnings.
func Substitute(text string, scope Scope) string {
	return NewResolver(scope).Resolve(text)
}
