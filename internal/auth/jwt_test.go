package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/jmehdipour/saas-gateway/internal/apperr"
	"github.com/jmehdipour/saas-gateway/internal/config"
)

const (
	testSecret = "super-secret-jwt-token-with-at-least-32-characters"
	userA      = "2f0c6a9e-8f5e-4a52-9a55-7b0f3c1d2e4f"
)

func signHS256(t *testing.T, secret string, claims Claims) string {
	t.Helper()

	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func validClaims(sub string) Claims {
	return Claims{
		Email: "a@example.com",
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "https://project.supabase.co/auth/v1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func assertAuthError(t *testing.T, err error) {
	t.Helper()

	var ae *apperr.AuthenticationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
}

func TestNewJWTResolver_RequiresConfig(t *testing.T) {
	if _, err := NewJWTResolver(config.AuthConfig{}); err == nil {
		t.Fatalf("expected error when nothing is configured")
	}
}

func TestResolve_HS256(t *testing.T) {
	r, err := NewJWTResolver(config.AuthConfig{JWTSecret: testSecret})
	if err != nil {
		t.Fatalf("NewJWTResolver() error: %v", err)
	}

	id, err := r.Resolve(context.Background(), signHS256(t, testSecret, validClaims(userA)))
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if id.UserID != userA || id.Email != "a@example.com" || id.Role != "authenticated" {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestResolve_Rejects(t *testing.T) {
	r, err := NewJWTResolver(config.AuthConfig{JWTSecret: testSecret, Issuer: "https://project.supabase.co/auth/v1"})
	if err != nil {
		t.Fatalf("NewJWTResolver() error: %v", err)
	}

	expired := validClaims(userA)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongIssuer := validClaims(userA)
	wrongIssuer.Issuer = "https://evil.example.com"

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims(userA)).SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"wrong secret": signHS256(t, "another-secret-another-secret-another", validClaims(userA)),
		"expired":      signHS256(t, testSecret, expired),
		"wrong issuer": signHS256(t, testSecret, wrongIssuer),
		"non uuid sub": signHS256(t, testSecret, validClaims("service-role")),
		"alg none":     none,
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), tok)
			assertAuthError(t, err)
		})
	}
}

func TestResolve_JWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	b64 := base64.RawURLEncoding.EncodeToString
	jwks := map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "test-key",
			"alg": "RS256",
			"use": "sig",
			"n":   b64(key.PublicKey.N.Bytes()),
			"e":   b64(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	defer srv.Close()

	r, err := NewJWTResolver(config.AuthConfig{JWKSURL: srv.URL})
	if err != nil {
		t.Fatalf("NewJWTResolver() error: %v", err)
	}
	defer r.Close()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims(userA))
	tok.Header["kid"] = "test-key"
	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	id, err := r.Resolve(context.Background(), signed)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if id.UserID != userA {
		t.Fatalf("expected user %q, got %q", userA, id.UserID)
	}

	// an HS256 token must not be accepted by a JWKS resolver
	_, err = r.Resolve(context.Background(), signHS256(t, testSecret, validClaims(userA)))
	assertAuthError(t, err)
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc.def.ghi": "abc.def.ghi",
		"bearer   abc ":      "abc",
		"Basic dXNlcjpwYXNz": "",
		"":                   "",
		"Bearer":             "",
		"abc.def.ghi":        "",
	}
	for in, want := range cases {
		if got := BearerToken(in); got != want {
			t.Fatalf("BearerToken(%q) = %q, want %q", in, got, want)
		}
	}
}
