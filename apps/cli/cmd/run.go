package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/livespec/packages/trace"
)

var (
	runFlags  collectionFlags
	runOutput string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a collection and record a HAR trace",
	Long: `Execute every request of a Postman collection in document order and
write the recorded exchanges as a HAR 1.2 file. Failed requests are reported
and left out of the trace.

Examples:
  livespec run -c api.postman_collection.json
  livespec run -c api.json -e staging.postman_environment.json -o staging.har
  livespec run -c api.json --var baseUrl=http://localhost:3000 --name "*user*"
  livespec run -c api.json --store runs.db --format junit > report.xml`,
	Args: cobra.NoArgs,
	RunE: runCommand,
}

func init() {
	addCollectionFlags(runCmd, &runFlags)
	runCmd.Flags().StringVarP(&runOutput, "output", "o", getEnvString("LIVESPEC_HAR", "trace.har"), "HAR output file, - for stdout (env: LIVESPEC_HAR)")
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runCommand(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	runFlags.stdoutTaken = runOutput == "-"
	result, err := executeCollection(ctx, cmd, &runFlags)
	if err != nil {
		return err
	}

	err = writeTo(cmd.OutOrStdout(), runOutput,
		func(w io.Writer) error { return trace.Encode(w, result.HAR) },
		func(path string) error { return trace.WriteFile(path, result.HAR) },
	)
	if err != nil {
		return err
	}
	if runOutput != "-" {
		runFlags.notices(cmd).Info("wrote %d entries to %s", len(result.HAR.Log.Entries), runOutput)
	}

	return runOutcome(result, runFlags.strict)
}
