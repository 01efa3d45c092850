// Package auth resolves bearer credentials into caller identities.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/jmehdipour/saas-gateway/internal/apperr"
	"github.com/jmehdipour/saas-gateway/internal/config"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// Resolver turns a bearer token into an Identity.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

// Claims are the access-token claims the gateway reads.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTResolver verifies access tokens signed either with a shared HS256
// secret or with keys published at a JWKS URL.
type JWTResolver struct {
	keyFunc jwt.Keyfunc
	methods []string
	issuer  string
	jwks    *keyfunc.JWKS
}

var _ Resolver = (*JWTResolver)(nil)

// NewJWTResolver builds a resolver from config. JWKSURL wins over JWTSecret.
func NewJWTResolver(cfg config.AuthConfig) (*JWTResolver, error) {
	r := &JWTResolver{issuer: strings.TrimSpace(cfg.Issuer)}

	switch {
	case strings.TrimSpace(cfg.JWKSURL) != "":
		jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			RefreshInterval:   time.Hour,
			RefreshUnknownKID: true,
		})
		if err != nil {
			return nil, fmt.Errorf("load jwks: %w", err)
		}
		r.jwks = jwks
		r.keyFunc = jwks.Keyfunc
		r.methods = []string{"RS256", "ES256"}
	case cfg.JWTSecret != "":
		secret := []byte(cfg.JWTSecret)
		r.keyFunc = func(*jwt.Token) (interface{}, error) { return secret, nil }
		r.methods = []string{"HS256"}
	default:
		return nil, errors.New("auth: neither jwks_url nor jwt_secret configured")
	}

	return r, nil
}

// Resolve verifies token and returns the caller. Every failure is reported
// as an AuthenticationError so the reason never leaks to the caller.
func (r *JWTResolver) Resolve(_ context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, &apperr.AuthenticationError{Message: "Missing authorization header"}
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(token, claims, r.keyFunc, jwt.WithValidMethods(r.methods))
	if err != nil || !tok.Valid {
		return Identity{}, &apperr.AuthenticationError{Message: "Unauthorized"}
	}

	if r.issuer != "" && !claims.VerifyIssuer(r.issuer, true) {
		return Identity{}, &apperr.AuthenticationError{Message: "Unauthorized"}
	}

	sub, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, &apperr.AuthenticationError{Message: "Unauthorized"}
	}

	return Identity{UserID: sub.String(), Email: claims.Email, Role: claims.Role}, nil
}

// Close stops the JWKS background refresh, if any.
func (r *JWTResolver) Close() {
	if r.jwks != nil {
		r.jwks.EndBackground()
	}
}

// BearerToken extracts the token from an Authorization header value.
// It returns "" unless the scheme is Bearer.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
