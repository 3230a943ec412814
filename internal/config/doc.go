// Package config loads and validates the auth-gateway YAML configuration.
package config
