// ABOUTME: HTTP handlers for the login, logout, refresh and me endpoints
// ABOUTME: Implements validate-reconcile-respond flows against the user store

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/2389/auth-gateway/internal/auth"
	"github.com/2389/auth-gateway/internal/provider"
	"github.com/2389/auth-gateway/internal/store"
)

// LoginRequest is the JSON request body for POST /login.
type LoginRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// UserResponse is the public view of a stored user. The refresh token
// and role never leave the gateway.
type UserResponse struct {
	ExternalID string `json:"external_id"`
	Email      string `json:"email"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// LoginResponse is the JSON response for POST /login.
type LoginResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
	Created bool         `json:"created"`
}

// LogoutRequest is the JSON request body for POST /logout. All fields
// are optional.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshRequest is the JSON request body for POST /refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshResponse is the JSON response for POST /refresh.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// MeResponse is the JSON response for GET /me.
type MeResponse struct {
	ExternalID string `json:"external_id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
}

// handleLogin handles POST /login requests.
//
// The client presents the token pair it obtained from the identity
// provider. The access token is validated, the subject identity is
// extracted, and the local record is created or updated with the new
// email and refresh token.
func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := parseLoginRequest(r.Body)
	if err != nil {
		sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	payload, err := g.validator.Validate(req.AccessToken)
	if err != nil {
		sendJSONError(w, http.StatusUnauthorized, "invalid or expired access token")
		return
	}

	userID := payload.UserID()
	if userID == "" {
		sendJSONError(w, http.StatusUnauthorized, "invalid token payload")
		return
	}

	user, created, err := g.store.UpsertUser(r.Context(), userID, payload.Email, req.RefreshToken)
	if err != nil {
		g.logger.Error("login upsert failed", "external_id", userID, "error", err)
		sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.logger.Info("login", "external_id", user.ExternalID, "created", created)
	writeJSON(w, http.StatusOK, LoginResponse{
		Message: "Login successful",
		User:    userResponseFor(user),
		Created: created,
	})
}

// handleLogout handles POST /logout requests.
//
// Logout is idempotent and never fails visibly: clients may retry or
// call it speculatively without a live session. The session to clear is
// found via the request identity (attached by the gate when a valid
// bearer token was present) or via the refresh token in the body; when
// neither resolves, logout is a successful no-op.
func (g *Gateway) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if identity := auth.FromContext(r.Context()); identity != nil {
		if err := g.store.ClearRefreshToken(r.Context(), identity.ExternalID); err != nil {
			g.logger.Warn("logout clear failed", "external_id", identity.ExternalID, "error", err)
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
		return
	}

	var req LogoutRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.RefreshToken != "" {
		user, err := g.store.GetUserByRefreshToken(r.Context(), req.RefreshToken)
		if err == nil {
			if err := g.store.ClearRefreshToken(r.Context(), user.ExternalID); err != nil {
				g.logger.Warn("logout clear failed", "external_id", user.ExternalID, "error", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

// handleRefresh handles POST /refresh requests.
//
// The refresh token must match a local session before any remote call is
// made. The exchange is a single bounded attempt against the provider;
// rejection and unreachability surface differently (401 vs 500). On
// success the rotated token is persisted, falling back to the presented
// token when the provider does not rotate.
func (g *Gateway) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := parseRefreshRequest(r.Body)
	if err != nil {
		sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := g.store.GetUserByRefreshToken(r.Context(), req.RefreshToken)
	if errors.Is(err, store.ErrNotFound) {
		sendJSONError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	if err != nil {
		g.logger.Error("refresh lookup failed", "error", err)
		sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if g.exchanger == nil {
		g.logger.Error("refresh requested but provider is not configured")
		sendJSONError(w, http.StatusInternalServerError, "provider configuration error")
		return
	}

	pair, err := g.exchanger.ExchangeRefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, provider.ErrRejected) {
			sendJSONError(w, http.StatusUnauthorized, "failed to refresh token with provider")
			return
		}
		g.logger.Error("provider exchange failed", "external_id", user.ExternalID, "error", err)
		sendJSONError(w, http.StatusInternalServerError, "failed to communicate with provider")
		return
	}

	newRefreshToken := pair.RefreshToken
	if newRefreshToken == "" {
		newRefreshToken = req.RefreshToken
	}

	if _, _, err := g.store.UpsertUser(r.Context(), user.ExternalID, user.Email, newRefreshToken); err != nil {
		g.logger.Error("persisting rotated token failed", "external_id", user.ExternalID, "error", err)
		sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.logger.Info("refresh", "external_id", user.ExternalID)
	writeJSON(w, http.StatusOK, RefreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: newRefreshToken,
	})
}

// handleMe handles GET /me requests, returning the identity the gate
// resolved for this request.
func (g *Gateway) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	identity := auth.FromContext(r.Context())
	if identity == nil {
		sendJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{
		ExternalID: identity.ExternalID,
		Email:      identity.Email,
		Role:       identity.Role,
	})
}

// parseLoginRequest parses and validates a LoginRequest from the given reader.
func parseLoginRequest(r io.Reader) (*LoginRequest, error) {
	var req LoginRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body")
	}

	if req.AccessToken == "" {
		return nil, errors.New("access_token is required")
	}
	if req.RefreshToken == "" {
		return nil, errors.New("refresh_token is required")
	}

	return &req, nil
}

// parseRefreshRequest parses and validates a RefreshRequest from the given reader.
func parseRefreshRequest(r io.Reader) (*RefreshRequest, error) {
	var req RefreshRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body")
	}

	if req.RefreshToken == "" {
		return nil, errors.New("refresh_token is required")
	}

	return &req, nil
}

// userResponseFor maps a stored user to its public representation.
func userResponseFor(user *store.User) UserResponse {
	return UserResponse{
		ExternalID: user.ExternalID,
		Email:      user.Email,
		CreatedAt:  user.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  user.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
