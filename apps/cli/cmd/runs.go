package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/livespec/packages/store"
)

var runsStoreFlag string

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List runs archived in a store",
	Long: `List the runs archived with --store, newest first. Any unique ID
prefix can be passed to generate --from-store.

Examples:
  livespec runs --store runs.db
  livespec generate --from-store 0b7f --store runs.db`,
	Args: cobra.NoArgs,
	RunE: runsCommand,
}

func init() {
	runsCmd.Flags().StringVar(&runsStoreFlag, "store", getEnvString("LIVESPEC_STORE", ""), "SQLite store to read (env: LIVESPEC_STORE)")
}

func runsCommand(cmd *cobra.Command, args []string) error {
	conn := runsStoreFlag
	if conn == "" {
		conn = fileConfig.Store
	}
	if conn == "" {
		return usageError(errors.New("a store is required (--store or config \"store\")"))
	}

	s, err := store.Open(conn)
	if err != nil {
		return configError(err)
	}
	defer s.Close()

	runs, err := s.ListRuns(cmd.Context())
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs archived")
		return nil
	}

	if useNoColor() {
		color.NoColor = true
	}
	cyan := color.New(color.FgCyan).SprintFunc()

	fmt.Fprintf(cmd.OutOrStdout(), "\n%s:\n", conn)
	for _, r := range runs {
		fmt.Fprintf(cmd.OutOrStdout(), "  - %s %s\n", cyan(r.ID.String()[:8]), r.Collection)
		fmt.Fprintf(cmd.OutOrStdout(), "    created: %s, entries: %d\n", r.CreatedAt.Local().Format(time.DateTime), r.Entries)
	}
	return nil
}
