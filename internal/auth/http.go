// ABOUTME: Request gate for HTTP endpoints with a public-path allow-list
// ABOUTME: Validates bearer tokens, resolves local users, attaches Identity to context

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/2389/auth-gateway/internal/store"
)

// TokenValidator defines the token validation dependency of the gate.
type TokenValidator interface {
	Validate(token string) (*TokenPayload, error)
}

// UserLookup resolves a provider subject id to a local user record.
type UserLookup interface {
	GetUserByExternalID(ctx context.Context, externalID string) (*store.User, error)
}

// GateResult is the outcome of checking one request. Either the request
// may continue (Status == 0, Identity possibly attached) or it must be
// short-circuited with the given status and message.
type GateResult struct {
	Identity *Identity
	Status   int
	Message  string
}

// RequestGate is the per-request gatekeeper. Public paths pass through;
// every other path requires a valid bearer token resolving to a known
// local user.
type RequestGate struct {
	validator   TokenValidator
	users       UserLookup
	publicPaths map[string]bool
}

// NewRequestGate creates a gate with the given public-path allow-list.
// Paths are matched trailing-slash-insensitively.
func NewRequestGate(validator TokenValidator, users UserLookup, publicPaths []string) *RequestGate {
	public := make(map[string]bool, len(publicPaths))
	for _, p := range publicPaths {
		public[normalizePath(p)] = true
	}
	return &RequestGate{
		validator:   validator,
		users:       users,
		publicPaths: public,
	}
}

// Check evaluates a request against the gate.
//
// Public paths always continue. A valid bearer token on a public path
// still attaches an Identity (logout uses this to find the session to
// clear), but an invalid or absent one never short-circuits. Protected
// paths require header extraction, token validation, subject extraction,
// and a local user lookup to all succeed; the gateway does not
// auto-provision users outside the login flow.
func (g *RequestGate) Check(r *http.Request) GateResult {
	if g.publicPaths[normalizePath(r.URL.Path)] {
		return GateResult{Identity: g.resolveOptional(r)}
	}

	token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
	if errMsg != "" {
		return GateResult{Status: http.StatusUnauthorized, Message: errMsg}
	}

	payload, err := g.validator.Validate(token)
	if err != nil {
		return GateResult{Status: http.StatusUnauthorized, Message: "invalid or expired token"}
	}

	userID := payload.UserID()
	if userID == "" {
		return GateResult{Status: http.StatusUnauthorized, Message: "invalid token payload"}
	}

	user, err := g.users.GetUserByExternalID(r.Context(), userID)
	if err != nil {
		return GateResult{Status: http.StatusUnauthorized, Message: "user not found"}
	}

	return GateResult{Identity: identityForUser(user)}
}

// Middleware adapts the gate for net/http composition.
func (g *RequestGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := g.Check(r)
		if result.Status != 0 {
			http.Error(w, `{"error":"`+result.Message+`"}`, result.Status)
			return
		}
		if result.Identity != nil {
			r = r.WithContext(WithIdentity(r.Context(), result.Identity))
		}
		next.ServeHTTP(w, r)
	})
}

// resolveOptional attempts to resolve an identity without ever rejecting
// the request. Used on public paths.
func (g *RequestGate) resolveOptional(r *http.Request) *Identity {
	token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
	if errMsg != "" {
		return nil
	}
	payload, err := g.validator.Validate(token)
	if err != nil {
		return nil
	}
	userID := payload.UserID()
	if userID == "" {
		return nil
	}
	user, err := g.users.GetUserByExternalID(r.Context(), userID)
	if err != nil {
		return nil
	}
	return identityForUser(user)
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// normalizePath strips trailing slashes so /login and /login/ match.
func normalizePath(path string) string {
	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" {
		return "/"
	}
	return trimmed
}

// identityForUser maps a stored user to a request identity.
func identityForUser(user *store.User) *Identity {
	return &Identity{
		UserID:     user.ID,
		ExternalID: user.ExternalID,
		Email:      user.Email,
		Role:       string(user.Role),
	}
}
