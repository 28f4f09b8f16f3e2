package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/livespec/packages/collection"
	"github.com/abdul-hamid-achik/livespec/packages/core/config"
	"github.com/abdul-hamid-achik/livespec/packages/core/env"
	"github.com/abdul-hamid-achik/livespec/packages/core/runner"
	"github.com/abdul-hamid-achik/livespec/packages/export/metrics"
	"github.com/abdul-hamid-achik/livespec/packages/output"
	"github.com/abdul-hamid-achik/livespec/packages/store"
	"github.com/abdul-hamid-achik/livespec/packages/trace"
)

// collectionFlags are the flags shared by every command that executes a
// collection.
type collectionFlags struct {
	collection  string
	environment string
	envFile     string
	envPrefix   string
	vars        []string
	name        string
	timeout     string
	proxy       string
	rate        float64
	bail        bool
	dynamic     bool
	rebuildURL  bool
	validateSSL bool
	strict      bool
	store       string
	format      string
	metricsOut  string

	// stdoutTaken is set when the command's own output goes to stdout, so
	// progress moves to stderr.
	stdoutTaken bool
}

func addCollectionFlags(cmd *cobra.Command, f *collectionFlags) {
	cmd.Flags().StringVarP(&f.collection, "collection", "c", "", "Postman collection file")
	cmd.Flags().StringVarP(&f.environment, "environment", "e", getEnvString("LIVESPEC_ENVIRONMENT", ""), "Postman environment file (env: LIVESPEC_ENVIRONMENT)")
	cmd.Flags().StringVar(&f.envFile, "env-file", getEnvString("LIVESPEC_ENV_FILE", ""), "Path to .env file merged over the environment (env: LIVESPEC_ENV_FILE)")
	cmd.Flags().StringVar(&f.envPrefix, "env-prefix", "", "Merge process environment variables with this prefix")
	cmd.Flags().StringArrayVar(&f.vars, "var", nil, "Set a variable (KEY=VALUE, repeatable)")
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "Run only requests matching name pattern")
	cmd.Flags().StringVar(&f.timeout, "timeout", getEnvString("LIVESPEC_TIMEOUT", ""), "Request timeout (e.g., 30s, 1m) (env: LIVESPEC_TIMEOUT)")
	cmd.Flags().StringVar(&f.proxy, "proxy", getEnvString("LIVESPEC_PROXY", ""), "Proxy URL for HTTP requests (env: LIVESPEC_PROXY)")
	cmd.Flags().Float64Var(&f.rate, "rate", getEnvFloat("LIVESPEC_RATE", 0), "Maximum requests per second, 0 for unlimited (env: LIVESPEC_RATE)")
	cmd.Flags().BoolVar(&f.bail, "bail", getEnvBool("LIVESPEC_BAIL", false), "Stop on first failed request (env: LIVESPEC_BAIL)")
	cmd.Flags().BoolVar(&f.dynamic, "dynamic", false, "Resolve dynamic variables such as {{$guid}} and {{$timestamp}}")
	cmd.Flags().BoolVar(&f.rebuildURL, "rebuild-url", false, "Rebuild structured URLs from their parts instead of using raw")
	cmd.Flags().BoolVar(&f.validateSSL, "validate-ssl", false, "Verify TLS certificates")
	cmd.Flags().BoolVar(&f.strict, "strict", getEnvBool("LIVESPEC_STRICT", false), "Exit non-zero when any request fails (env: LIVESPEC_STRICT)")
	cmd.Flags().StringVar(&f.store, "store", getEnvString("LIVESPEC_STORE", ""), "Archive the run in a SQLite store (env: LIVESPEC_STORE)")
	cmd.Flags().StringVar(&f.metricsOut, "metrics-out", getEnvString("LIVESPEC_METRICS_OUT", ""), "Write run metrics in Prometheus text format to this file (env: LIVESPEC_METRICS_OUT)")
	cmd.Flags().StringVar(&f.format, "format", getEnvString("LIVESPEC_FORMAT", "console"), "Progress output: console, json, junit (env: LIVESPEC_FORMAT)")
}

func (f *collectionFlags) runnerConfig(cfg *config.Config) (*runner.Config, error) {
	timeout := cfg.TimeoutDuration()
	if f.timeout != "" {
		d, err := time.ParseDuration(f.timeout)
		if err != nil {
			return nil, usageError(fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", f.timeout, err))
		}
		timeout = d
	}

	proxy := cfg.Proxy
	if f.proxy != "" {
		proxy = f.proxy
	}

	rate := cfg.RateLimit
	if f.rate > 0 {
		rate = f.rate
	}

	return &runner.Config{
		Verbose:          useVerbose(),
		Timeout:          timeout,
		FollowRedirect:   cfg.GetFollowRedirects(),
		MaxRedirects:     cfg.MaxRedirects,
		ValidateSSL:      f.validateSSL || cfg.GetValidateSSL(),
		Proxy:            proxy,
		Headers:          cfg.Headers,
		RateLimit:        rate,
		RebuildURL:       f.rebuildURL || cfg.GetRebuildURL(),
		Bail:             f.bail || cfg.GetBail(),
		NameFilter:       f.name,
		DynamicVariables: f.dynamic || cfg.GetDynamic(),
	}, nil
}

// overrides builds the scopes layered over collection and environment
// variables: dotenv file, then prefixed process environment, then --var.
func (f *collectionFlags) overrides(cfg *config.Config) ([]env.Scope, error) {
	var scopes []env.Scope

	envFile := cfg.EnvFile
	if f.envFile != "" {
		envFile = f.envFile
	}
	if envFile != "" {
		s, err := env.LoadDotEnv(envFile)
		if err != nil {
			return nil, configError(err)
		}
		scopes = append(scopes, s)
	}

	prefix := cfg.EnvPrefix
	if f.envPrefix != "" {
		prefix = f.envPrefix
	}
	if prefix != "" {
		scopes = append(scopes, env.LoadSystemEnv(prefix))
	}

	if len(f.vars) > 0 {
		s, err := env.ParseAssignments(f.vars)
		if err != nil {
			return nil, usageError(err)
		}
		scopes = append(scopes, s)
	}
	return scopes, nil
}

func (f *collectionFlags) storeConn(cfg *config.Config) string {
	if f.store != "" {
		return f.store
	}
	return cfg.Store
}

func (f *collectionFlags) progress(cmd *cobra.Command) io.Writer {
	if f.stdoutTaken {
		return cmd.ErrOrStderr()
	}
	return cmd.OutOrStdout()
}

// notices returns the console used for file and status messages. It writes
// to stderr whenever stdout carries machine-readable output.
func (f *collectionFlags) notices(cmd *cobra.Command) *output.ConsoleReporter {
	w := f.progress(cmd)
	if f.format != "" && !strings.EqualFold(f.format, "console") {
		w = cmd.ErrOrStderr()
	}
	return output.NewConsoleReporter(output.WithWriter(w), output.WithNoColor(useNoColor()))
}

// executeCollection loads the collection inputs, runs every request and
// reports progress in the selected format. The run is archived when a store
// is configured.
func executeCollection(ctx context.Context, cmd *cobra.Command, f *collectionFlags) (*runner.RunResult, error) {
	if f.collection == "" {
		return nil, usageError(errors.New("a collection is required (--collection or -c)"))
	}

	c, err := collection.Load(f.collection)
	if err != nil {
		return nil, err
	}

	var e *collection.Environment
	if f.environment != "" {
		e, err = collection.LoadEnvironment(f.environment)
		if err != nil {
			return nil, err
		}
	}

	scopes, err := f.overrides(fileConfig)
	if err != nil {
		return nil, err
	}
	cfg, err := f.runnerConfig(fileConfig)
	if err != nil {
		return nil, err
	}

	out := f.progress(cmd)
	var (
		reporter runner.Reporter
		flush    func(*runner.RunResult) error
	)
	switch strings.ToLower(f.format) {
	case "json":
		jr := output.NewJSONReporter(output.JSONWithWriter(out))
		reporter = jr
		flush = func(*runner.RunResult) error { return jr.Flush() }
	case "junit":
		jf := output.NewJUnitFormatter(output.JUnitWithWriter(out))
		flush = func(result *runner.RunResult) error {
			jf.FormatResult(result)
			return jf.Flush(result.Duration)
		}
	case "", "console":
		cr := output.NewConsoleReporter(
			output.WithWriter(out),
			output.WithVerbose(useVerbose()),
			output.WithNoColor(useNoColor()),
		)
		cr.FormatHeader(version)
		reporter = cr
	default:
		return nil, usageError(fmt.Errorf("unknown format %q (use console, json or junit)", f.format))
	}

	opts := []runner.Option{runner.WithVersion(version)}
	if reporter != nil {
		opts = append(opts, runner.WithReporter(reporter))
	}
	result, err := runner.NewRunner(cfg, opts...).Run(ctx, c, e, scopes...)
	if err != nil {
		return nil, err
	}

	if flush != nil {
		if err := flush(result); err != nil {
			return nil, fmt.Errorf("error writing output: %w", err)
		}
	}

	if f.metricsOut != "" {
		if err := metrics.WritePrometheusFile(f.metricsOut, metrics.FromRunResult(result)); err != nil {
			return nil, err
		}
		f.notices(cmd).Info("wrote metrics to %s", f.metricsOut)
	}

	if conn := f.storeConn(fileConfig); conn != "" {
		if err := archiveRun(ctx, conn, result.Collection, result.HAR); err != nil {
			return nil, err
		}
		f.notices(cmd).Info("archived run %s in %s", result.RunID, conn)
	}

	return result, nil
}

func archiveRun(ctx context.Context, conn, name string, har *trace.HAR) error {
	s, err := store.Open(conn)
	if err != nil {
		return configError(err)
	}
	defer s.Close()

	if _, err := s.SaveRun(ctx, name, har); err != nil {
		return fmt.Errorf("archiving run: %w", err)
	}
	return nil
}

// runOutcome turns request failures into a command error once every output
// has been written. A run where nothing reached a server is a network error;
// other failures only fail the command under --strict.
func runOutcome(result *runner.RunResult, strict bool) error {
	if result.Failed == 0 {
		return nil
	}

	if result.Succeeded == 0 {
		unreachable := true
		for _, r := range result.Results {
			if r.Error != nil && !runner.IsTransport(r.Error) {
				unreachable = false
				break
			}
		}
		if unreachable {
			return networkError(fmt.Errorf("no request reached a server: %w", runner.ErrTransport))
		}
	}

	if strict {
		return withExitCode(ExitRequestFailure, fmt.Errorf("%d of %d requests failed", result.Failed, len(result.Results)))
	}
	return nil
}

// writeTo writes to path, or to w when path is "-".
func writeTo(w io.Writer, path string, write func(io.Writer) error, writeFile func(string) error) error {
	if path == "-" {
		return write(w)
	}
	return writeFile(path)
}
