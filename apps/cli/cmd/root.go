package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/livespec/packages/core/config"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag  string
	noColorFlag bool
	verboseFlag bool

	// fileConfig is the loaded config file merged over defaults. Commands
	// read it after the root pre-run hook.
	fileConfig = config.DefaultConfig()
)

var rootCmd = &cobra.Command{
	Use:   "livespec",
	Short: "OpenAPI specs from live traffic.",
	Long: `livespec runs a Postman collection against a live server, records
every exchange as a HAR trace and synthesizes an OpenAPI 3.0 document from
what the server actually returned.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadFileConfig,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", getEnvString("LIVESPEC_CONFIG", ""), "Path to config file (env: LIVESPEC_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", getEnvBool("LIVESPEC_NO_COLOR", false), "Disable colored output (env: LIVESPEC_NO_COLOR)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", getEnvBool("LIVESPEC_VERBOSE", false), "Verbose output (env: LIVESPEC_VERBOSE)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
}

func loadFileConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return configError(err)
	}
	fileConfig = cfg
	return nil
}

func useVerbose() bool {
	return verboseFlag || fileConfig.GetVerbose()
}

func useNoColor() bool {
	return noColorFlag || fileConfig.GetNoColor()
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
