// Package config loads runtime configuration from multiple sources (YAML files,
// environment variables, CLI flags) with precedence: CLI flags > YAML config >
// Environment variables > Defaults. Packing limits resolved here become the
// service's initial settings and the limits used by batch runs.
package config
