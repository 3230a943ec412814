// Package provider talks to the upstream identity provider over HTTPS.
// Its single operation exchanges a refresh token for a rotated token
// pair, with rejection and unreachability surfaced as distinct errors.
package provider
