// Package gateway wires the auth-gateway HTTP server.
//
// It composes the token validator, the user store and the optional
// provider client behind a request gate, and serves the three auth flows
// (login, logout, refresh) plus /me and health endpoints. The gateway
// validates and relays externally-issued tokens; it never mints its own.
package gateway
