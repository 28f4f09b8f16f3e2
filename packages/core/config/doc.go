// Package config handles configuration loading and management for livespec.
//
// It provides functionality for:
//   - Loading configuration from .livespec.json, .livespecrc or livespec.yaml files
//   - Default configuration values
//   - Merging file settings with command-line overrides
package config
