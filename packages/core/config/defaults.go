package config

import "github.com/abdul-hamid-achik/livespec/packages/openapi"

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:         0, // no timeout
		FollowRedirects: BoolPtr(true),
		MaxRedirects:    10,
		ValidateSSL:     BoolPtr(false),
		RebuildURL:      BoolPtr(false),
		Bail:            BoolPtr(false),
		Dynamic:         BoolPtr(false),
		Verbose:         BoolPtr(false),
		NoColor:         BoolPtr(false),
		Title:           openapi.DefaultTitle,
		Version:         openapi.DefaultVersion,
		Description:     openapi.DefaultDescription,
		Examples:        BoolPtr(true),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.Timeout == defaults.Timeout &&
		c.GetFollowRedirects() == defaults.GetFollowRedirects() &&
		c.MaxRedirects == defaults.MaxRedirects &&
		c.GetValidateSSL() == defaults.GetValidateSSL() &&
		c.Proxy == defaults.Proxy &&
		len(c.Headers) == 0 &&
		c.RateLimit == defaults.RateLimit &&
		c.GetRebuildURL() == defaults.GetRebuildURL() &&
		c.GetBail() == defaults.GetBail() &&
		c.GetDynamic() == defaults.GetDynamic() &&
		c.GetVerbose() == defaults.GetVerbose() &&
		c.GetNoColor() == defaults.GetNoColor() &&
		c.EnvFile == defaults.EnvFile &&
		c.EnvPrefix == defaults.EnvPrefix &&
		c.Title == defaults.Title &&
		c.Version == defaults.Version &&
		c.Description == defaults.Description &&
		c.GetExamples() == defaults.GetExamples() &&
		c.Store == defaults.Store
}
