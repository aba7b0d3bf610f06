// Package config handles configuration loading and management for restdd.
//
// It provides functionality for:
//   - Loading configuration from .restdd.json or restdd.yaml files
//   - Default configuration values
//   - Merging command line overrides on top of a file
package config
