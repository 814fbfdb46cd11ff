// Package config handles configuration loading, parsing, and validation
// from command-line flags, positional arguments, environment variables, and
// an optional config file. It provides type-safe access to the settings each
// pipeline component needs while keeping configuration details separate from
// the pipeline itself.
package config
