package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/livespec/packages/openapi"
	"github.com/abdul-hamid-achik/livespec/packages/schema"
	"github.com/abdul-hamid-achik/livespec/packages/store"
	"github.com/abdul-hamid-achik/livespec/packages/trace"
)

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	generateFlags       collectionFlags
	generateOutput      string
	generateHAR         string
	generateHAROut      string
	generateFromStore   string
	generateTitle       string
	generateAPIVersion  string
	generateDescription string
	generateNoExamples  bool
	generateCheck       bool
	generateValidate    bool
	generateWatch       bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Synthesize an OpenAPI document from live traffic",
	Long: `Synthesize an OpenAPI 3.0 document from observed exchanges. The
exchanges come from running a collection (-c), from an existing HAR file
(--har) or from a run archived in a store (--from-store).

Examples:
  livespec generate -c api.json -e local.json -o openapi.yaml
  livespec generate -c api.json --har-out trace.har -o openapi.json --validate
  livespec generate --har trace.har --title "Users API" -o -
  livespec generate --from-store 0b7f3c1e --store runs.db
  livespec generate -c api.json --watch`,
	Args: cobra.NoArgs,
	RunE: generateCommand,
}

func init() {
	addCollectionFlags(generateCmd, &generateFlags)
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", getEnvString("LIVESPEC_SPEC", "openapi.yaml"), "Spec output file, .json for JSON, - for stdout (env: LIVESPEC_SPEC)")
	generateCmd.Flags().StringVar(&generateHAR, "har", "", "Synthesize from an existing HAR file")
	generateCmd.Flags().StringVar(&generateHAROut, "har-out", "", "Also write the recorded HAR trace to this file")
	generateCmd.Flags().StringVar(&generateFromStore, "from-store", "", "Synthesize from an archived run (ID or unique prefix)")
	generateCmd.Flags().StringVar(&generateTitle, "title", "", "API title (default from config)")
	generateCmd.Flags().StringVar(&generateAPIVersion, "api-version", "", "API version written to info.version")
	generateCmd.Flags().StringVar(&generateDescription, "description", "", "API description")
	generateCmd.Flags().BoolVar(&generateNoExamples, "no-examples", false, "Do not attach JSON examples to media types")
	generateCmd.Flags().BoolVar(&generateCheck, "check", false, "Verify every inferred schema accepts the payload it came from")
	generateCmd.Flags().BoolVar(&generateValidate, "validate", false, "Validate the generated document as OpenAPI 3.0")
	generateCmd.Flags().BoolVarP(&generateWatch, "watch", "w", false, "Regenerate when the collection or environment changes")
}

func generateCommand(cmd *cobra.Command, args []string) error {
	sources := 0
	for _, s := range []string{generateFlags.collection, generateHAR, generateFromStore} {
		if s != "" {
			sources++
		}
	}
	if sources != 1 {
		return usageError(errors.New("exactly one of --collection, --har or --from-store is required"))
	}
	if generateWatch && generateFlags.collection == "" {
		return usageError(errors.New("--watch requires --collection"))
	}

	generateFlags.stdoutTaken = generateOutput == "-"

	ctx, cancel := signalContext()
	defer cancel()

	err := generateOnce(ctx, cmd)
	if !generateWatch {
		return err
	}
	if err != nil {
		generateFlags.notices(cmd).FormatError(err)
	}
	return watchAndGenerate(ctx, cmd)
}

// generateOnce loads the trace from the selected source, synthesizes the
// document and writes every requested output.
func generateOnce(ctx context.Context, cmd *cobra.Command) error {
	notices := generateFlags.notices(cmd)

	var (
		har     *trace.HAR
		outcome error
	)
	switch {
	case generateFlags.collection != "":
		result, err := executeCollection(ctx, cmd, &generateFlags)
		if err != nil {
			return err
		}
		har = result.HAR
		outcome = runOutcome(result, generateFlags.strict)
	case generateHAR != "":
		h, err := trace.ReadFile(generateHAR)
		if err != nil {
			return err
		}
		har = h
	default:
		h, err := loadStoredRun(ctx, generateFlags.storeConn(fileConfig), generateFromStore)
		if err != nil {
			return err
		}
		har = h
	}

	if generateHAROut != "" {
		if err := trace.WriteFile(generateHAROut, har); err != nil {
			return err
		}
		notices.Info("wrote %d entries to %s", len(har.Log.Entries), generateHAROut)
	}

	if generateCheck {
		problems := checkInferred(har)
		for _, p := range problems {
			notices.Warning(p)
		}
		if len(problems) > 0 {
			return withExitCode(ExitRequestFailure, fmt.Errorf("%d inferred schemas rejected their payload", len(problems)))
		}
	}

	doc := openapi.NewSynthesizer(synthesizerOptions()...).Synthesize(har)

	if generateValidate {
		if err := openapi.Validate(ctx, doc); err != nil {
			notices.Warning(fmt.Sprintf("generated document is not valid OpenAPI: %v", err))
		}
	}

	err := writeTo(cmd.OutOrStdout(), generateOutput,
		func(w io.Writer) error { return openapi.Encode(w, doc, openapi.FormatYAML) },
		func(path string) error { return openapi.WriteFile(path, doc) },
	)
	if err != nil {
		return err
	}
	if generateOutput != "-" {
		notices.Info("wrote %d paths to %s", doc.Paths.Len(), generateOutput)
	}

	return outcome
}

func synthesizerOptions() []openapi.SynthesizerOption {
	title := fileConfig.Title
	if generateTitle != "" {
		title = generateTitle
	}
	apiVersion := fileConfig.Version
	if generateAPIVersion != "" {
		apiVersion = generateAPIVersion
	}
	description := fileConfig.Description
	if generateDescription != "" {
		description = generateDescription
	}

	return []openapi.SynthesizerOption{
		openapi.WithTitle(title),
		openapi.WithVersion(apiVersion),
		openapi.WithDescription(description),
		openapi.WithExamples(fileConfig.GetExamples() && !generateNoExamples),
	}
}

func loadStoredRun(ctx context.Context, conn, id string) (*trace.HAR, error) {
	if conn == "" {
		return nil, usageError(errors.New("--from-store needs a store (--store or config \"store\")"))
	}
	s, err := store.Open(conn)
	if err != nil {
		return nil, configError(err)
	}
	defer s.Close()

	har, err := s.LoadRun(ctx, id)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrAmbiguous) {
		return nil, usageError(err)
	}
	return har, err
}

// checkInferred re-validates every JSON body in the trace against the schema
// inferred from it and describes each mismatch.
func checkInferred(har *trace.HAR) []string {
	var problems []string
	check := func(where, body, mime string) {
		if !schema.IsJSON(mime) || !gjson.Valid(body) {
			return
		}
		if err := schema.Infer(body, mime).Check([]byte(body)); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", where, err))
		}
	}

	for i := range har.Log.Entries {
		e := &har.Log.Entries[i]
		where := e.Request.Method + " " + e.Request.URL
		if e.Request.PostData != nil {
			check(where+" request", e.Request.PostData.Text, e.Request.PostData.MimeType)
		}
		check(where+" response", e.Response.Content.Text, e.Response.Content.MimeType)
	}
	return problems
}

// watchAndGenerate regenerates whenever the collection, environment or
// dotenv file is written, until ctx is cancelled.
func watchAndGenerate(ctx context.Context, cmd *cobra.Command) error {
	notices := generateFlags.notices(cmd)
	out := generateFlags.progress(cmd)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watched := make(map[string]bool)
	watchedDirs := make(map[string]bool)
	for _, f := range []string{generateFlags.collection, generateFlags.environment, generateFlags.envFile} {
		if f == "" {
			continue
		}
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		watched[abs] = true
		dir := filepath.Dir(abs)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			watchedDirs[dir] = true
		}
	}

	fmt.Fprintf(out, "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	// Editors often write a file in several steps; the timer collapses them.
	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	var changed string

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			abs, _ := filepath.Abs(event.Name)
			if watched[abs] && (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				changed = event.Name
				debounce.Reset(WatchDebounceDelay)
			}

		case <-debounce.C:
			fmt.Fprintf(out, "\nFile changed: %s\nRegenerating...\n\n", changed)
			if err := generateOnce(ctx, cmd); err != nil {
				notices.FormatError(err)
			}
			fmt.Fprintf(out, "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			notices.FormatError(fmt.Errorf("watcher error: %w", err))
		}
	}
}
