package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/abdul-hamid-achik/livespec/packages/builtin"
	"github.com/abdul-hamid-achik/livespec/packages/collection"
	"github.com/abdul-hamid-achik/livespec/packages/core/env"
	"github.com/abdul-hamid-achik/livespec/packages/http"
	"github.com/abdul-hamid-achik/livespec/packages/trace"
)

// Reporter receives run progress. Implementations must not retain entry.
type Reporter interface {
	RunStarted(name string, total int)
	RequestStarted(index, total int, name string)
	RequestSucceeded(name string, entry *trace.Entry)
	RequestFailed(name string, err error)
	RequestSkipped(name, reason string)
	Warning(message string)
	RunFinished(result *RunResult)
}

type nopReporter struct{}

func (nopReporter) RunStarted(string, int) {}

func (nopReporter) RequestStarted(int, int, string) {}

func (nopReporter) RequestSucceeded(string, *trace.Entry) {}

func (nopReporter) RequestFailed(string, error) {}

func (nopReporter) RequestSkipped(string, string) {}

func (nopReporter) Warning(string) {}

func (nopReporter) RunFinished(*RunResult) {}

type Runner struct {
	executor *Executor
	reporter Reporter
	config   *Config
	version  string
}

type Config struct {
	Verbose        bool
	Timeout        time.Duration
	FollowRedirect bool
	MaxRedirects   int
	ValidateSSL    bool
	Proxy          string
	Headers        map[string]string
	RateLimit      float64
	RebuildURL     bool
	Bail           bool
	NameFilter     string

	// DynamicVariables resolves {{$guid}} and friends when no variable of
	// that name is defined.
	DynamicVariables bool
}

// Option is a functional option for Runner
type Option func(*Runner)

// WithReporter sets the progress sink.
func WithReporter(r Reporter) Option {
	return func(rn *Runner) {
		rn.reporter = r
	}
}

// WithExecutor replaces the executor built from Config.
func WithExecutor(e *Executor) Option {
	return func(rn *Runner) {
		rn.executor = e
	}
}

// WithVersion sets the creator version written into the trace.
func WithVersion(v string) Option {
	return func(rn *Runner) {
		rn.version = v
	}
}

func NewRunner(cfg *Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}

	r := &Runner{
		reporter: nopReporter{},
		config:   cfg,
		version:  "dev",
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.executor == nil {
		clientOpts := []http.ClientOption{
			http.WithFollowRedirects(cfg.FollowRedirect),
			http.WithValidateSSL(cfg.ValidateSSL),
		}
		if cfg.Timeout > 0 {
			clientOpts = append(clientOpts, http.WithTimeout(cfg.Timeout))
		}
		if cfg.MaxRedirects > 0 {
			clientOpts = append(clientOpts, http.WithMaxRedirects(cfg.MaxRedirects))
		}
		if cfg.Proxy != "" {
			clientOpts = append(clientOpts, http.WithProxy(cfg.Proxy))
		}
		if len(cfg.Headers) > 0 {
			clientOpts = append(clientOpts, http.WithDefaultHeaders(cfg.Headers))
		}

		r.executor = NewExecutor(
			WithClient(http.NewClient(clientOpts...)),
			WithRateLimit(cfg.RateLimit),
			WithRebuildURL(cfg.RebuildURL),
			WithExecutorWarnFunc(r.warn),
		)
	}
	return r
}

func (r *Runner) warn(format string, args ...any) {
	r.reporter.Warning(fmt.Sprintf(format, args...))
}

type RunResult struct {
	Collection string
	RunID      uuid.UUID
	HAR        *trace.HAR
	Results    []*RequestResult
	Duration   time.Duration
	Succeeded  int
	Failed     int
	Skipped    int
}

type RequestResult struct {
	Name       string
	Folders    []string
	Skipped    bool
	SkipReason string
	Entry      *trace.Entry
	Error      error
}

// Passed reports whether the request produced a trace entry.
func (r *RequestResult) Passed() bool {
	return r.Entry != nil
}

// Run executes every request of c in traversal order against the merged
// variable scope: collection variables, then environment values, then each
// of overrides, later scopes winning. Per-request failures are reported and
// the run continues, unless Config.Bail is set. Only context cancellation
// aborts a run with an error.
func (r *Runner) Run(ctx context.Context, c *collection.Collection, e *collection.Environment, overrides ...env.Scope) (*RunResult, error) {
	start := time.Now()

	scopes := append([]env.Scope{c.VariableMap(), e.VariableMap()}, overrides...)
	resolver := env.NewResolver(env.Merge(scopes...))
	resolver.SetWarnFunc(r.warn)
	if r.config.DynamicVariables {
		resolver.SetDynamic(builtin.NewRegistry().Lookup)
	}

	recorder := trace.NewRecorder(trace.WithCreator(trace.DefaultCreator, r.version))
	result := &RunResult{
		Collection: c.Info.Name,
		RunID:      recorder.RunID(),
	}

	type pending struct {
		loc  collection.Location
		item *collection.RequestItem
	}
	var queue []pending
	_ = c.Walk(func(loc collection.Location, item *collection.RequestItem) error {
		queue = append(queue, pending{loc: loc, item: item})
		return nil
	})

	r.reporter.RunStarted(c.Info.Name, len(queue))

	for i, p := range queue {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run interrupted: %w", err)
		}

		reqResult := &RequestResult{Name: p.item.Name, Folders: p.loc.Folders}
		result.Results = append(result.Results, reqResult)

		if !matchesPattern(p.item.Name, r.config.NameFilter) {
			reqResult.Skipped = true
			reqResult.SkipReason = "filtered out"
			result.Skipped++
			r.reporter.RequestSkipped(p.item.Name, reqResult.SkipReason)
			continue
		}

		r.reporter.RequestStarted(i+1, len(queue), p.item.Name)

		entry, err := r.executor.Execute(ctx, p.loc, p.item, resolver)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("run interrupted: %w", ctxErr)
			}
			reqResult.Error = err
			result.Failed++
			r.reporter.RequestFailed(p.item.Name, err)
			if r.config.Bail {
				break
			}
			continue
		}

		recorder.Add(*entry)
		reqResult.Entry = entry
		result.Succeeded++
		r.reporter.RequestSucceeded(p.item.Name, entry)
	}

	result.HAR = recorder.HAR()
	result.Duration = time.Since(start)
	r.reporter.RunFinished(result)
	return result, nil
}

func matchesPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}

	if pattern[0] == '*' && pattern[len(pattern)-1] == '*' && len(pattern) > 1 {
		substr := pattern[1 : len(pattern)-1]
		for i := 0; i <= len(name)-len(substr); i++ {
			if name[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	}

	if pattern[0] == '*' {
		suffix := pattern[1:]
		return len(name) >= len(suffix) && name[len(name)-len(suffix):] == suffix
	}

	if pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(name) >= len(prefix) && name[:len(prefix)] == prefix
	}

	return name == pattern
}
