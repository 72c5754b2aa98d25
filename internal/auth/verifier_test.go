package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freightgraph/internal/config"
)

func signHS(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func validClaims(role string) Claims {
	return Claims{Role: role, RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "ops-1",
		Issuer:    "freightgraph",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
}

func TestNewVerifier(t *testing.T) {
	v, err := NewVerifier(config.AuthConfig{})
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = NewVerifier(config.AuthConfig{Mode: "hmac"})
	assert.Error(t, err)
	_, err = NewVerifier(config.AuthConfig{Mode: "jwks"})
	assert.Error(t, err)
	_, err = NewVerifier(config.AuthConfig{Mode: "saml"})
	assert.Error(t, err)
}

func TestVerifyHMAC(t *testing.T) {
	v, err := NewVerifier(config.AuthConfig{Mode: "hmac", HMACSecret: "k", Issuer: "freightgraph"})
	require.NoError(t, err)
	ctx := context.Background()

	p, err := v.Verify(ctx, "Bearer "+signHS(t, "k", validClaims("admin")))
	require.NoError(t, err)
	assert.Equal(t, "ops-1", p.Subject)
	assert.True(t, p.HasRole(v.AdminRole()))

	_, err = v.Verify(ctx, signHS(t, "wrong", validClaims("admin")))
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := validClaims("admin")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err = v.Verify(ctx, signHS(t, "k", expired))
	assert.ErrorIs(t, err, ErrInvalidToken)

	noExp := validClaims("admin")
	noExp.ExpiresAt = nil
	_, err = v.Verify(ctx, signHS(t, "k", noExp))
	assert.ErrorIs(t, err, ErrInvalidToken)

	otherIss := validClaims("admin")
	otherIss.Issuer = "elsewhere"
	_, err = v.Verify(ctx, signHS(t, "k", otherIss))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify(ctx, "Bearer ")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestVerifyJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "k1",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	v, err := NewVerifier(config.AuthConfig{Mode: "jwks", JWKSURL: srv.URL})
	require.NoError(t, err)

	claims := validClaims("")
	claims.Roles = []string{"viewer", "Admin"}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = "k1"
	signed, err := tok.SignedString(key)
	require.NoError(t, err)

	p, err := v.Verify(context.Background(), signed)
	require.NoError(t, err)
	assert.True(t, p.HasRole("admin"))
	_, err = v.Verify(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, 1, fetches, "keys are cached")

	tok.Header["kid"] = "k2"
	signed, err = tok.SignedString(key)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// HS256 is refused in jwks mode.
	_, err = v.Verify(context.Background(), signHS(t, "k", validClaims("admin")))
	assert.ErrorIs(t, err, ErrInvalidToken)
}
