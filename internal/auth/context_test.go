// ABOUTME: Tests for identity propagation through request contexts
// ABOUTME: Covers attach/retrieve round trips and absent-identity behavior

package auth

import (
	"context"
	"testing"
)

func TestWithIdentity_RoundTrip(t *testing.T) {
	id := &Identity{
		UserID:     "row-1",
		ExternalID: "ext-1",
		Email:      "a@b.com",
		Role:       "member",
	}

	ctx := WithIdentity(context.Background(), id)

	got := FromContext(ctx)
	if got == nil {
		t.Fatal("FromContext() returned nil")
	}
	if got.ExternalID != "ext-1" {
		t.Errorf("ExternalID = %q, want %q", got.ExternalID, "ext-1")
	}
}

func TestFromContext_Missing(t *testing.T) {
	if got := FromContext(context.Background()); got != nil {
		t.Errorf("FromContext() = %v, want nil", got)
	}
}

func TestIdentity_IsAdmin(t *testing.T) {
	member := &Identity{Role: "member"}
	if member.IsAdmin() {
		t.Error("member should not be admin")
	}

	admin := &Identity{Role: "admin"}
	if !admin.IsAdmin() {
		t.Error("admin should be admin")
	}
}
