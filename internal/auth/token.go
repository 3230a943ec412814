// ABOUTME: JWT validation for externally-issued bearer tokens
// ABOUTME: HS256 verified against the shared secret, asymmetric algs trusted but freshness-checked

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for every validation failure: malformed,
// expired, bad signature, or unsupported algorithm. Callers must not be
// able to tell these apart.
var ErrInvalidToken = errors.New("invalid token")

// asymmetricAlgs are the provider-side OAuth signing algorithms. The
// identity provider verified these signatures when it minted the session,
// so we only re-check the freshness claims.
var asymmetricAlgs = map[string]bool{
	"RS256": true,
	"RS384": true,
	"RS512": true,
	"ES256": true,
	"ES384": true,
	"ES512": true,
}

// TokenPayload holds the decoded claims of a validated token. It is
// transient: produced by Validate, consumed by the caller, never stored.
type TokenPayload struct {
	Subject   string
	AltUserID string // "user_id" claim, fallback when "sub" is absent
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// UserID returns the stable subject identity of the token: the "sub"
// claim, falling back to "user_id". Empty when neither is present.
func (p *TokenPayload) UserID() string {
	if p.Subject != "" {
		return p.Subject
	}
	return p.AltUserID
}

// Validator validates bearer tokens issued by the identity provider.
type Validator struct {
	secret []byte
}

// NewValidator creates a token validator with the given shared secret.
// The secret is a startup-time contract: construction fails if it is empty.
func NewValidator(secret []byte) (*Validator, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	return &Validator{secret: secret}, nil
}

// Validate decodes and validates a token, returning its payload.
//
// The unverified header selects the policy: asymmetric algorithms skip
// signature verification (the provider already performed it) but still
// validate exp and iat; HS256 or a missing alg is fully verified against
// the shared secret; anything else is rejected.
func (v *Validator) Validate(tokenString string) (*TokenPayload, error) {
	// The header is untrusted; it is used only to pick the verification
	// strategy, never to assert validity.
	unverified, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, ErrInvalidToken
	}
	alg, _ := unverified.Header["alg"].(string)

	switch {
	case asymmetricAlgs[alg]:
		claims, ok := unverified.Claims.(jwt.MapClaims)
		if !ok {
			return nil, ErrInvalidToken
		}
		if err := jwt.NewValidator(jwt.WithIssuedAt()).Validate(claims); err != nil {
			return nil, ErrInvalidToken
		}
		return payloadFromClaims(claims), nil

	case alg == "HS256" || alg == "":
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return v.secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuedAt())
		if err != nil || !token.Valid {
			return nil, ErrInvalidToken
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return nil, ErrInvalidToken
		}
		return payloadFromClaims(claims), nil

	default:
		return nil, ErrInvalidToken
	}
}

// Generate creates an HS256 token with the given subject and email.
// Used by the dev `token` subcommand and tests; the gateway itself never
// mints tokens for clients.
func (v *Validator) Generate(subject, email string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}
	if email != "" {
		claims["email"] = email
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// payloadFromClaims maps validated claims into a TokenPayload. Email is
// best effort: top-level "email" claim, then "user_metadata.email".
func payloadFromClaims(claims jwt.MapClaims) *TokenPayload {
	p := &TokenPayload{}
	p.Subject, _ = claims["sub"].(string)
	p.AltUserID, _ = claims["user_id"].(string)

	if email, ok := claims["email"].(string); ok && email != "" {
		p.Email = email
	} else if meta, ok := claims["user_metadata"].(map[string]interface{}); ok {
		p.Email, _ = meta["email"].(string)
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		p.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		p.IssuedAt = iat.Time
	}
	return p
}
