// Package store provides persistence for locally-reconciled users.
//
// Users are keyed by the identity provider's subject id (external_id) and
// carry the refresh token of their active session. The SQLite
// implementation enforces uniqueness on both: external_id as the
// reconciliation key, refresh_token via a partial unique index so a token
// value resolves to at most one holder.
package store
