package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/livespec/packages/export/metrics"
	"github.com/abdul-hamid-achik/livespec/packages/openapi"
	"github.com/abdul-hamid-achik/livespec/packages/output"
	"github.com/abdul-hamid-achik/livespec/packages/proxy"
	"github.com/abdul-hamid-achik/livespec/packages/trace"
)

var (
	recordPortFlag     int
	recordTargetFlag   string
	recordOutputFlag   string
	recordSpecFlag     string
	recordStoreFlag    string
	recordExcludeFlag  string
	recordDedupeFlag   bool
	recordNoRedactFlag bool
	recordMetricsFlag  string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Start a recording proxy to capture live traffic",
	Long: `Start an HTTP reverse proxy that forwards every request to the target
and records the exchanges. On shutdown the recording is written as a HAR
file and, with --spec, synthesized into an OpenAPI document.

The proxy:
- Forwards all requests to the target server
- Records requests and responses as HAR entries
- Redacts sensitive headers (Authorization, Cookie, etc.)
- Writes the trace on exit (Ctrl+C)

Examples:
  livespec record --port 8080 --target https://api.example.com
  livespec record --target https://api.example.com -o session.har --spec openapi.yaml
  livespec record --target https://api.example.com --exclude "/health,/metrics"
  livespec record --target https://api.example.com --dedupe --store runs.db`,
	Args: cobra.NoArgs,
	RunE: recordCommand,
}

func init() {
	recordCmd.Flags().IntVarP(&recordPortFlag, "port", "p", 8080, "Port to run the proxy on")
	recordCmd.Flags().StringVarP(&recordTargetFlag, "target", "t", "", "Target URL to proxy to (required)")
	recordCmd.Flags().StringVarP(&recordOutputFlag, "output", "o", "recording.har", "HAR output file")
	recordCmd.Flags().StringVar(&recordSpecFlag, "spec", "", "Also synthesize an OpenAPI document to this file")
	recordCmd.Flags().StringVar(&recordStoreFlag, "store", getEnvString("LIVESPEC_STORE", ""), "Archive the recording in a SQLite store (env: LIVESPEC_STORE)")
	recordCmd.Flags().StringVar(&recordExcludeFlag, "exclude", "", "Path prefixes to forward without recording (comma-separated)")
	recordCmd.Flags().BoolVar(&recordDedupeFlag, "dedupe", false, "Record only the first exchange per method and path template")
	recordCmd.Flags().StringVar(&recordMetricsFlag, "metrics-out", "", "Write recording metrics in Prometheus text format to this file")
	recordCmd.Flags().BoolVar(&recordNoRedactFlag, "no-redact", false, "Record sensitive headers as sent")

	_ = recordCmd.MarkFlagRequired("target")
}

func recordCommand(cmd *cobra.Command, args []string) error {
	if recordTargetFlag == "" {
		return usageError(fmt.Errorf("target URL is required (--target or -t)"))
	}

	var excludePaths []string
	if recordExcludeFlag != "" {
		for _, p := range strings.Split(recordExcludeFlag, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				excludePaths = append(excludePaths, p)
			}
		}
	}

	console := output.NewConsoleReporter(
		output.WithWriter(cmd.OutOrStdout()),
		output.WithNoColor(useNoColor()),
	)
	console.FormatHeader(version)

	tr := trace.NewRecorder(trace.WithCreator(trace.DefaultCreator, version))
	opts := []proxy.Option{
		proxy.WithPort(recordPortFlag),
		proxy.WithTargetURL(recordTargetFlag),
		proxy.WithTraceRecorder(tr),
		proxy.WithVerbose(useVerbose()),
		proxy.WithExclude(excludePaths),
		proxy.WithDeduplicate(recordDedupeFlag),
		proxy.WithLogger(console.Info),
	}
	if recordNoRedactFlag {
		opts = append(opts, proxy.WithSanitize(nil))
	}
	recorder := proxy.NewRecorder(opts...)

	ctx, cancel := signalContext()
	defer cancel()

	if _, err := recorder.Handler(); err != nil {
		return usageError(err)
	}
	if err := recorder.StartWithContext(ctx); err != nil {
		return networkError(err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "\nStopping proxy and writing the recording...")

	har := tr.HAR()
	if len(har.Log.Entries) == 0 {
		console.Info("no requests recorded")
		return nil
	}

	if err := trace.WriteFile(recordOutputFlag, har); err != nil {
		return err
	}
	console.Info("wrote %d entries to %s", len(har.Log.Entries), recordOutputFlag)

	if recordMetricsFlag != "" {
		if err := metrics.WritePrometheusFile(recordMetricsFlag, metrics.FromHAR("recording "+recordTargetFlag, har)); err != nil {
			return err
		}
		console.Info("wrote metrics to %s", recordMetricsFlag)
	}

	if conn := recordStore(); conn != "" {
		// ctx is already cancelled by the shutdown signal.
		if err := archiveRun(context.Background(), conn, "recording "+recordTargetFlag, har); err != nil {
			return err
		}
		console.Info("archived run %s in %s", tr.RunID(), conn)
	}

	if recordSpecFlag != "" {
		doc := openapi.NewSynthesizer(synthesizerOptions()...).Synthesize(har)
		if err := openapi.WriteFile(recordSpecFlag, doc); err != nil {
			return err
		}
		console.Info("wrote %d paths to %s", doc.Paths.Len(), recordSpecFlag)
	}

	return nil
}

func recordStore() string {
	if recordStoreFlag != "" {
		return recordStoreFlag
	}
	return fileConfig.Store
}
