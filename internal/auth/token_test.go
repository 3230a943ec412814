// ABOUTME: Unit tests for JWT validation across signing algorithm families
// ABOUTME: Tests HS256 verification, asymmetric trust, expiry checks and claim extraction

package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret-key-for-jwt-signing")

// signedHS256 creates an HS256 token with arbitrary claims.
func signedHS256(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return token
}

// unsignedToken crafts a token with the given header and claims and a
// garbage signature. Used to exercise the asymmetric path, where the
// signature is deliberately not checked.
func unsignedToken(t *testing.T, header map[string]any, claims map[string]any) string {
	t.Helper()
	headerJSON, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("marshaling header: %v", err)
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshaling claims: %v", err)
	}
	enc := base64.RawURLEncoding
	return enc.EncodeToString(headerJSON) + "." + enc.EncodeToString(claimsJSON) + "." + enc.EncodeToString([]byte("junk"))
}

func TestNewValidator_EmptySecret(t *testing.T) {
	if _, err := NewValidator(nil); err == nil {
		t.Error("NewValidator(nil) should have returned an error")
	}
	if _, err := NewValidator([]byte{}); err == nil {
		t.Error("NewValidator(empty) should have returned an error")
	}
}

func TestValidator_ValidHS256Token(t *testing.T) {
	validator, err := NewValidator(testSecret)
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}

	now := time.Now()
	token := signedHS256(t, testSecret, jwt.MapClaims{
		"sub":   "user-123",
		"email": "a@b.com",
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})

	payload, err := validator.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if payload.UserID() != "user-123" {
		t.Errorf("UserID() = %q, want %q", payload.UserID(), "user-123")
	}
	if payload.Email != "a@b.com" {
		t.Errorf("Email = %q, want %q", payload.Email, "a@b.com")
	}
}

func TestValidator_InvalidTokens(t *testing.T) {
	validator, _ := NewValidator(testSecret)
	now := time.Now()

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "empty token",
			token: "",
		},
		{
			name:  "garbage token",
			token: "not-a-jwt-token",
		},
		{
			name:  "malformed JWT",
			token: "header.payload.signature",
		},
		{
			name: "wrong secret",
			token: signedHS256(t, []byte("different-secret"), jwt.MapClaims{
				"sub": "user-123",
				"exp": now.Add(time.Hour).Unix(),
			}),
		},
		{
			name: "expired HS256",
			token: signedHS256(t, testSecret, jwt.MapClaims{
				"sub": "user-123",
				"iat": now.Add(-2 * time.Hour).Unix(),
				"exp": now.Add(-time.Hour).Unix(),
			}),
		},
		{
			name: "issued in the future",
			token: signedHS256(t, testSecret, jwt.MapClaims{
				"sub": "user-123",
				"iat": now.Add(time.Hour).Unix(),
				"exp": now.Add(2 * time.Hour).Unix(),
			}),
		},
		{
			name: "unsupported algorithm",
			token: unsignedToken(t,
				map[string]any{"alg": "PS256", "typ": "JWT"},
				map[string]any{"sub": "user-123", "exp": now.Add(time.Hour).Unix()}),
		},
		{
			name: "none algorithm",
			token: unsignedToken(t,
				map[string]any{"alg": "none", "typ": "JWT"},
				map[string]any{"sub": "user-123", "exp": now.Add(time.Hour).Unix()}),
		},
		{
			name: "HS384 rejected",
			token: func() string {
				token, err := jwt.NewWithClaims(jwt.SigningMethodHS384, jwt.MapClaims{
					"sub": "user-123",
					"exp": now.Add(time.Hour).Unix(),
				}).SignedString(testSecret)
				if err != nil {
					t.Fatalf("signing token: %v", err)
				}
				return token
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.Validate(tt.token)
			if err == nil {
				t.Fatal("Validate() should have returned an error")
			}
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Validate() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestValidator_AsymmetricSkipsSignature(t *testing.T) {
	validator, _ := NewValidator(testSecret)
	now := time.Now()

	for _, alg := range []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"} {
		t.Run(alg, func(t *testing.T) {
			token := unsignedToken(t,
				map[string]any{"alg": alg, "typ": "JWT"},
				map[string]any{
					"sub":   "oauth-user",
					"email": "oauth@example.com",
					"iat":   now.Unix(),
					"exp":   now.Add(time.Hour).Unix(),
				})

			payload, err := validator.Validate(token)
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if payload.UserID() != "oauth-user" {
				t.Errorf("UserID() = %q, want %q", payload.UserID(), "oauth-user")
			}
		})
	}
}

func TestValidator_AsymmetricStillChecksExpiry(t *testing.T) {
	validator, _ := NewValidator(testSecret)
	now := time.Now()

	token := unsignedToken(t,
		map[string]any{"alg": "RS256", "typ": "JWT"},
		map[string]any{
			"sub": "oauth-user",
			"iat": now.Add(-2 * time.Hour).Unix(),
			"exp": now.Add(-time.Hour).Unix(),
		})

	_, err := validator.Validate(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate() error = %v, want ErrInvalidToken", err)
	}
}

func TestTokenPayload_UserIDFallback(t *testing.T) {
	validator, _ := NewValidator(testSecret)
	now := time.Now()

	token := signedHS256(t, testSecret, jwt.MapClaims{
		"user_id": "alt-id",
		"exp":     now.Add(time.Hour).Unix(),
	})

	payload, err := validator.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if payload.UserID() != "alt-id" {
		t.Errorf("UserID() = %q, want %q", payload.UserID(), "alt-id")
	}
}

func TestTokenPayload_NoUserID(t *testing.T) {
	validator, _ := NewValidator(testSecret)
	now := time.Now()

	token := signedHS256(t, testSecret, jwt.MapClaims{
		"exp": now.Add(time.Hour).Unix(),
	})

	payload, err := validator.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if payload.UserID() != "" {
		t.Errorf("UserID() = %q, want empty", payload.UserID())
	}
}

func TestTokenPayload_EmailFromUserMetadata(t *testing.T) {
	validator, _ := NewValidator(testSecret)
	now := time.Now()

	token := signedHS256(t, testSecret, jwt.MapClaims{
		"sub": "user-123",
		"exp": now.Add(time.Hour).Unix(),
		"user_metadata": map[string]any{
			"email": "meta@example.com",
		},
	})

	payload, err := validator.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if payload.Email != "meta@example.com" {
		t.Errorf("Email = %q, want %q", payload.Email, "meta@example.com")
	}
}

func TestValidator_Generate(t *testing.T) {
	validator, _ := NewValidator(testSecret)

	token, err := validator.Generate("user-123", "a@b.com", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	payload, err := validator.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if payload.UserID() != "user-123" {
		t.Errorf("UserID() = %q, want %q", payload.UserID(), "user-123")
	}
	if payload.Email != "a@b.com" {
		t.Errorf("Email = %q, want %q", payload.Email, "a@b.com")
	}
}
