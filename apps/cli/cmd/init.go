package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/livespec/packages/core/config"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new livespec project",
	Long: `Initialize a new livespec project in the current directory.

This creates:
  - livespec.yaml                         - Configuration file with defaults
  - example.postman_collection.json       - Example collection

Examples:
  livespec init
  livespec init --force`,
	Args: cobra.NoArgs,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleCollection = `{
  "info": {
    "name": "Example API",
    "schema": "https://schema.getpostman.com/json/collection/v2.1.0/collection.json"
  },
  "variable": [
    {"key": "baseUrl", "value": "http://localhost:3000"}
  ],
  "item": [
    {
      "name": "Health",
      "request": {"method": "GET", "url": "{{baseUrl}}/health"}
    },
    {
      "name": "Resources",
      "item": [
        {
          "name": "Create resource",
          "request": {
            "method": "POST",
            "url": "{{baseUrl}}/resources",
            "header": [{"key": "Content-Type", "value": "application/json"}],
            "body": {"mode": "raw", "raw": "{\"name\": \"Test Resource\"}"}
          }
        },
        {
          "name": "Get resource",
          "request": {"method": "GET", "url": "{{baseUrl}}/resources/1"}
        }
      ]
    }
  ]
}
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, "livespec.yaml")
	exampleFile := filepath.Join(cwd, "example.postman_collection.json")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return usageError(fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.Timeout = 30000
	cfg.Headers = map[string]string{"User-Agent": "livespec/" + version}
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(exampleFile, []byte(exampleCollection), 0644); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nlivespec project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'livespec generate -c %s' to synthesize a spec.\n", filepath.Base(exampleFile))

	return nil
}
