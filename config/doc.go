// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including the diagnostic log level, the database event log categories and
// destination, and the database connection used by the CLI.
package config
