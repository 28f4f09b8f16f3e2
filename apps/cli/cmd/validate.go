package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/livespec/packages/openapi"
)

var validateCmd = &cobra.Command{
	Use:   "validate <spec> [spec...]",
	Short: "Validate OpenAPI documents",
	Long: `Validate OpenAPI 3.0 documents in YAML or JSON, such as the ones
written by generate or record --spec.

Examples:
  livespec validate openapi.yaml
  livespec validate openapi.yaml staging.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	hasErrors := false
	for _, file := range args {
		if err := openapi.ValidateFile(cmd.Context(), file); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			hasErrors = true
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
		}
	}

	if hasErrors {
		return withExitCode(ExitParseError, fmt.Errorf("validation failed"))
	}

	return nil
}
