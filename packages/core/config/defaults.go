package config

import "github.com/abdul-hamid-achik/restdd/packages/testdata"

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Root:            ".",
		TestDataRoot:    testdata.DefaultRoot,
		Timeout:         180000, // 3 minutes
		FollowRedirects: BoolPtr(true),
		MaxRedirects:    10,
		ValidateSSL:     BoolPtr(true),
		Reporters:       []string{"console"},
		Parallel:        BoolPtr(false),
		Concurrency:     5,
		Bail:            BoolPtr(false),
		VerifyBody:      BoolPtr(false),
		Verbose:         BoolPtr(false),
		NoColor:         BoolPtr(false),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.BaseURI == defaults.BaseURI &&
		c.Root == defaults.Root &&
		c.TestDataRoot == defaults.TestDataRoot &&
		len(c.DDFolders) == 0 &&
		len(c.DDFiles) == 0 &&
		c.Timeout == defaults.Timeout &&
		c.RateLimit == defaults.RateLimit &&
		c.GetFollowRedirects() == defaults.GetFollowRedirects() &&
		c.MaxRedirects == defaults.MaxRedirects &&
		c.GetValidateSSL() == defaults.GetValidateSSL() &&
		c.Proxy == defaults.Proxy &&
		len(c.Headers) == 0 &&
		len(c.AuthTokens) == 0 &&
		len(c.OAuth2) == 0 &&
		c.History == defaults.History &&
		c.OutputDir == defaults.OutputDir &&
		c.GetParallel() == defaults.GetParallel() &&
		c.Concurrency == defaults.Concurrency &&
		c.GetBail() == defaults.GetBail() &&
		c.GetVerifyBody() == defaults.GetVerifyBody() &&
		c.GetVerbose() == defaults.GetVerbose() &&
		c.GetNoColor() == defaults.GetNoColor()
}
