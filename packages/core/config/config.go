package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/restdd/packages/auth"
	"github.com/abdul-hamid-achik/restdd/packages/auth/oauth2"
	"gopkg.in/yaml.v3"
)

// Config represents the restdd configuration
type Config struct {
	BaseURI      string   `json:"baseUri,omitempty" yaml:"baseUri,omitempty"`
	Root         string   `json:"root,omitempty" yaml:"root,omitempty"`                 // folder holding dd/
	TestDataRoot string   `json:"testDataRoot,omitempty" yaml:"testDataRoot,omitempty"` // testdata references resolve here
	DDFolders    []string `json:"ddFolders,omitempty" yaml:"ddFolders,omitempty"`
	DDFiles      []string `json:"ddFiles,omitempty" yaml:"ddFiles,omitempty"`

	Timeout         int               `json:"timeout,omitempty" yaml:"timeout,omitempty"`     // milliseconds
	RateLimit       float64           `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty"` // requests per second
	FollowRedirects *bool             `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty"`
	MaxRedirects    int               `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
	ValidateSSL     *bool             `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	Proxy           string            `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	Headers         map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"` // Default headers for all requests

	// AuthTokens binds auth function names to fixed Authorization values.
	AuthTokens map[string]string         `json:"authTokens,omitempty" yaml:"authTokens,omitempty"`
	OAuth2     map[string]*oauth2.Config `json:"oauth2,omitempty" yaml:"oauth2,omitempty"`

	History     string   `json:"history,omitempty" yaml:"history,omitempty"`     // sqlite file recording runs
	Reporters   []string `json:"reporters,omitempty" yaml:"reporters,omitempty"` // Output reporters
	OutputDir   string   `json:"outputDir,omitempty" yaml:"outputDir,omitempty"`
	Parallel    *bool    `json:"parallel,omitempty" yaml:"parallel,omitempty"`
	Concurrency int      `json:"concurrency,omitempty" yaml:"concurrency,omitempty"` // Number of scenarios run at once
	Bail        *bool    `json:"bail,omitempty" yaml:"bail,omitempty"`
	VerifyBody  *bool    `json:"verifyBody,omitempty" yaml:"verifyBody,omitempty"`
	Verbose     *bool    `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor     *bool    `json:"noColor,omitempty" yaml:"noColor,omitempty"`
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

func (c *Config) GetParallel() bool {
	return getBool(c.Parallel, false)
}

func (c *Config) GetBail() bool {
	return getBool(c.Bail, false)
}

func (c *Config) GetVerifyBody() bool {
	return getBool(c.VerifyBody, false)
}

func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// TimeoutDuration is the request timeout, zero when unset.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// AuthRegistry builds the auth functions named in the configuration on top
// of the built-in ones.
func (c *Config) AuthRegistry() (*auth.Registry, error) {
	registry := auth.NewRegistry()
	for name, token := range c.AuthTokens {
		registry.RegisterStatic(name, token)
	}
	for name, cfg := range c.OAuth2 {
		if err := registry.RegisterOAuth2(name, cfg); err != nil {
			return nil, fmt.Errorf("auth function %s: %w", name, err)
		}
	}
	return registry, nil
}

// ConfigFilenames contains the possible config file names, in lookup order
var ConfigFilenames = []string{
	".restdd.json",
	"restdd.json",
	".restdd.yaml",
	"restdd.yaml",
	".restdd.yml",
	"restdd.yml",
}

// LoadConfig loads configuration from the specified path or searches the
// current directory for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return config, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.BaseURI != "" {
		result.BaseURI = other.BaseURI
	}
	if other.Root != "" {
		result.Root = other.Root
	}
	if other.TestDataRoot != "" {
		result.TestDataRoot = other.TestDataRoot
	}
	if len(other.DDFolders) > 0 {
		result.DDFolders = other.DDFolders
	}
	if len(other.DDFiles) > 0 {
		result.DDFiles = other.DDFiles
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.RateLimit > 0 {
		result.RateLimit = other.RateLimit
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.History != "" {
		result.History = other.History
	}
	if other.OutputDir != "" {
		result.OutputDir = other.OutputDir
	}
	if other.Concurrency > 0 {
		result.Concurrency = other.Concurrency
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.Parallel != nil {
		result.Parallel = other.Parallel
	}
	if other.Bail != nil {
		result.Bail = other.Bail
	}
	if other.VerifyBody != nil {
		result.VerifyBody = other.VerifyBody
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	result.Headers = mergeMaps(c.Headers, other.Headers)
	result.AuthTokens = mergeMaps(c.AuthTokens, other.AuthTokens)
	result.OAuth2 = mergeMaps(c.OAuth2, other.OAuth2)

	if len(other.Reporters) > 0 {
		result.Reporters = other.Reporters
	}

	return &result
}

func mergeMaps[V any](base, over map[string]V) map[string]V {
	if len(over) == 0 {
		return base
	}
	out := make(map[string]V, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// SaveConfig saves the configuration as JSON or YAML, chosen by extension
func (c *Config) SaveConfig(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
