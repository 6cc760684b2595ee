package auth_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"profile-registry/pkg/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jwkFor(kid string, pub *rsa.PublicKey) auth.JSONWebKey {
	return auth.JSONWebKey{
		Kid: kid,
		Kty: "RSA",
		Alg: "RS256",
		Use: "sig",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

func jwksServer(t *testing.T, keys ...auth.JSONWebKey) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(auth.JWKS{Keys: keys})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestProvider_VerifiesRS256Token(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv, _ := jwksServer(t, jwkFor("k1", &key.PublicKey))

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	tok.Header["kid"] = "k1"
	signed, err := tok.SignedString(key)
	require.NoError(t, err)

	p := auth.NewProvider(srv.URL)
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(signed, claims, p.KeyFunc)
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestProvider_UnknownKidRefreshesOnce(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv, hits := jwksServer(t, jwkFor("k1", &key.PublicKey))
	p := auth.NewProvider(srv.URL)

	got, err := p.GetKey(t.Context(), "k1")
	require.NoError(t, err)
	assert.Zero(t, key.PublicKey.N.Cmp(got.N))

	_, err = p.GetKey(t.Context(), "missing")
	assert.ErrorIs(t, err, auth.ErrUnknownKey)
	_, err = p.GetKey(t.Context(), "missing")
	assert.ErrorIs(t, err, auth.ErrUnknownKey)

	// Cached keys inside the refresh interval do not trigger refetches
	assert.Equal(t, int32(1), hits.Load())
}

func TestProvider_RejectsHMACToken(t *testing.T) {
	srv, _ := jwksServer(t)
	p := auth.NewProvider(srv.URL)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "x"}).
		SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = jwt.Parse(signed, p.KeyFunc)
	assert.Error(t, err)
}

func TestProvider_FetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := auth.NewProvider(srv.URL).GetKey(t.Context(), "k1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrUnknownKey)
}
