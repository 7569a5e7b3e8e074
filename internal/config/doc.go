// Package config defines the application configuration structure and
// loading logic. Configuration is read from an optional config.yaml and
// RELAYQ_-prefixed environment variables, with env vars taking
// precedence, then validated before use.
package config
