// Package builtin generates values for the $-prefixed dynamic variables
// collections may reference, such as {{$guid}} or {{$timestamp}}.
package builtin

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Func produces a fresh value on every call.
type Func func() string

// Registry maps dynamic variable names, without the leading $, to generators.
type Registry struct {
	funcs map[string]Func
	now   func() time.Time
}

// RegistryOption is a functional option for Registry
type RegistryOption func(*Registry)

// WithClock replaces time.Now for the time based variables.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["guid"] = funcUUID
	r.funcs["randomUUID"] = funcUUID
	r.funcs["timestamp"] = func() string { return strconv.FormatInt(r.now().Unix(), 10) }
	r.funcs["isoTimestamp"] = func() string { return r.now().UTC().Format("2006-01-02T15:04:05.000Z") }
	r.funcs["randomInt"] = func() string { return strconv.Itoa(rand.Intn(1001)) }
	r.funcs["randomBoolean"] = func() string { return strconv.FormatBool(rand.Intn(2) == 1) }
	r.funcs["randomAlphaNumeric"] = func() string { return randomString(1, alphanumeric) }
	r.funcs["randomHexadecimal"] = func() string { return randomString(1, "0123456789abcdef") }
	r.funcs["randomEmail"] = funcRandomEmail
	r.funcs["randomUserName"] = func() string { return randomString(8, lowercase) }
	r.funcs["randomWord"] = func() string { return randomString(6, lowercase) }
}

// Register adds or replaces a generator.
func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

// Lookup evaluates a variable name as written inside the braces, "$guid"
// for example. Names without the $ prefix or with no generator report false.
func (r *Registry) Lookup(name string) (string, bool) {
	if !strings.HasPrefix(name, "$") {
		return "", false
	}
	fn, ok := r.funcs[name[1:]]
	if !ok {
		return "", false
	}
	return fn(), true
}

// Names lists the registered variables with their $ prefix.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, "$"+name)
	}
	return names
}

const (
	lowercase    = "abcdefghijklmnopqrstuvwxyz"
	alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

func funcUUID() string {
	return uuid.New().String()
}

func funcRandomEmail() string {
	user := randomString(8, lowercase)
	domain := randomString(6, lowercase)
	return fmt.Sprintf("%s@%s.com", user, domain)
}

func randomString(length int, charset string) string {
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
