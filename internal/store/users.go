// ABOUTME: User persistence operations for the SQLite store
// ABOUTME: Lookup by external id or refresh token, atomic upsert, session clearing

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timeFormat is how timestamps are stored in the users table.
const timeFormat = time.RFC3339Nano

// GetUserByExternalID returns the user with the given provider subject id.
func (s *SQLiteStore) GetUserByExternalID(ctx context.Context, externalID string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, external_id, email, refresh_token, role, created_at, updated_at
		FROM users WHERE external_id = ?`, externalID)
	return scanUser(row)
}

// GetUserByRefreshToken returns the user holding the given refresh token.
// The empty token never matches: a logged-out user holds NULL, not "".
func (s *SQLiteStore) GetUserByRefreshToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, external_id, email, refresh_token, role, created_at, updated_at
		FROM users WHERE refresh_token = ?`, token)
	return scanUser(row)
}

// UpsertUser atomically creates or updates the user keyed by externalID.
// Email and refresh token are always overwritten with the supplied values.
// A refresh token already held by a different user is released first so
// the unique index on refresh_token holds; the newest login wins.
func (s *SQLiteStore) UpsertUser(ctx context.Context, externalID, email, refreshToken string) (*User, bool, error) {
	now := time.Now().UTC().Format(timeFormat)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer tx.Rollback()

	if refreshToken != "" {
		_, err = tx.ExecContext(ctx, `
			UPDATE users SET refresh_token = NULL, updated_at = ?
			WHERE refresh_token = ? AND external_id <> ?`,
			now, refreshToken, externalID)
		if err != nil {
			return nil, false, fmt.Errorf("releasing refresh token: %w", err)
		}
	}

	// The created flag is informational; the upsert below is the single
	// atomic write that decides the row's contents.
	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE external_id = ?`, externalID).Scan(&exists)
	if err != nil {
		return nil, false, fmt.Errorf("checking existing user: %w", err)
	}
	created := exists == 0

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, external_id, email, refresh_token, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			email = excluded.email,
			refresh_token = excluded.refresh_token,
			updated_at = excluded.updated_at`,
		uuid.NewString(), externalID, email, nullableToken(refreshToken), RoleMember, now, now)
	if err != nil {
		return nil, false, fmt.Errorf("upserting user: %w", err)
	}

	row := tx.QueryRowContext(ctx, `
		SELECT id, external_id, email, refresh_token, role, created_at, updated_at
		FROM users WHERE external_id = ?`, externalID)
	user, err := scanUser(row)
	if err != nil {
		return nil, false, fmt.Errorf("reading upserted user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("committing upsert: %w", err)
	}

	return user, created, nil
}

// ClearRefreshToken nulls the user's refresh token. Clearing a token that
// is already null succeeds; the record itself is never deleted.
func (s *SQLiteStore) ClearRefreshToken(ctx context.Context, externalID string) error {
	now := time.Now().UTC().Format(timeFormat)

	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET refresh_token = NULL, updated_at = ?
		WHERE external_id = ?`, now, externalID)
	if err != nil {
		return fmt.Errorf("clearing refresh token: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// nullableToken maps the empty string to NULL for storage.
func nullableToken(token string) any {
	if token == "" {
		return nil
	}
	return token
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanUser.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanUser reads one user row, translating sql.ErrNoRows to ErrNotFound.
func scanUser(row rowScanner) (*User, error) {
	var (
		user         User
		refreshToken sql.NullString
		createdAt    string
		updatedAt    string
	)

	err := row.Scan(&user.ID, &user.ExternalID, &user.Email, &refreshToken, &user.Role, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user row: %w", err)
	}

	if refreshToken.Valid {
		user.RefreshToken = &refreshToken.String
	}

	user.CreatedAt, err = time.Parse(timeFormat, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	user.UpdatedAt, err = time.Parse(timeFormat, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &user, nil
}
