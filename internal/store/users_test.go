// ABOUTME: Tests for user store operations
// ABOUTME: Covers upsert semantics, token lookup/reassignment and session clearing

package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertUser_CreatesNewUser(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	user, created, err := store.UpsertUser(ctx, "ext-1", "a@b.com", "r1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "ext-1", user.ExternalID)
	assert.Equal(t, "a@b.com", user.Email)
	require.NotNil(t, user.RefreshToken)
	assert.Equal(t, "r1", *user.RefreshToken)
	assert.Equal(t, RoleMember, user.Role)
	assert.False(t, user.CreatedAt.IsZero())
	assert.False(t, user.UpdatedAt.IsZero())
}

func TestUpsertUser_UpdatesExistingUser(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first, created, err := store.UpsertUser(ctx, "ext-1", "a@b.com", "r1")
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := store.UpsertUser(ctx, "ext-1", "new@b.com", "r2")
	require.NoError(t, err)
	assert.False(t, created)

	// Same record, latest values
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "new@b.com", second.Email)
	require.NotNil(t, second.RefreshToken)
	assert.Equal(t, "r2", *second.RefreshToken)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	// Exactly one record for the external id
	found, err := store.GetUserByExternalID(ctx, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, "new@b.com", found.Email)

	_, err = store.GetUserByRefreshToken(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertUser_ReassignsRefreshToken(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, _, err := store.UpsertUser(ctx, "ext-1", "a@b.com", "shared")
	require.NoError(t, err)

	// A second user logging in with the same token takes it over; the
	// previous holder's session ends.
	_, _, err = store.UpsertUser(ctx, "ext-2", "b@b.com", "shared")
	require.NoError(t, err)

	holder, err := store.GetUserByRefreshToken(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, "ext-2", holder.ExternalID)

	previous, err := store.GetUserByExternalID(ctx, "ext-1")
	require.NoError(t, err)
	assert.Nil(t, previous.RefreshToken)
}

func TestUpsertUser_ConcurrentLoginsSerialize(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Contending writers queue on the write lock; none of them may see
	// SQLITE_BUSY, and exactly one observes the row being created.
	const workers = 8

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		errs    []error
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, wasCreated, err := store.UpsertUser(ctx, "ext-1", "a@b.com", fmt.Sprintf("r%d", i))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if wasCreated {
				created++
			}
		}(i)
	}
	wg.Wait()

	require.Empty(t, errs)
	assert.Equal(t, 1, created)

	// One record, holding whichever token committed last
	user, err := store.GetUserByExternalID(ctx, "ext-1")
	require.NoError(t, err)
	require.NotNil(t, user.RefreshToken)
}

func TestGetUserByExternalID_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetUserByExternalID(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetUserByRefreshToken(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, _, err := store.UpsertUser(ctx, "ext-1", "a@b.com", "r1")
	require.NoError(t, err)

	user, err := store.GetUserByRefreshToken(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "ext-1", user.ExternalID)

	_, err = store.GetUserByRefreshToken(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetUserByRefreshToken_EmptyNeverMatches(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Logged-out users hold NULL; an empty lookup must not match them.
	_, _, err := store.UpsertUser(ctx, "ext-1", "a@b.com", "r1")
	require.NoError(t, err)
	require.NoError(t, store.ClearRefreshToken(ctx, "ext-1"))

	_, err = store.GetUserByRefreshToken(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClearRefreshToken(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, _, err := store.UpsertUser(ctx, "ext-1", "a@b.com", "r1")
	require.NoError(t, err)

	require.NoError(t, store.ClearRefreshToken(ctx, "ext-1"))

	// Record survives, session does not
	user, err := store.GetUserByExternalID(ctx, "ext-1")
	require.NoError(t, err)
	assert.Nil(t, user.RefreshToken)

	_, err = store.GetUserByRefreshToken(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClearRefreshToken_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, _, err := store.UpsertUser(ctx, "ext-1", "a@b.com", "r1")
	require.NoError(t, err)

	require.NoError(t, store.ClearRefreshToken(ctx, "ext-1"))
	require.NoError(t, store.ClearRefreshToken(ctx, "ext-1"))
}

func TestClearRefreshToken_UnknownUser(t *testing.T) {
	store := setupTestStore(t)

	err := store.ClearRefreshToken(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}
