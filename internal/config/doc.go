// Package config loads service configuration from the environment,
// optionally seeded from a .env file.
package config
