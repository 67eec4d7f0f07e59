// Package config handles application configuration loading and validation.
//
// Configuration is read from an optional config.yml, then overridden by
// environment variables (a .env file is loaded first when present), and
// validated using struct tags.
package config
