package auth

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *JWTService {
	return NewJWTService(&JWTConfig{
		SecretKey:      []byte("test-secret"),
		AccessTokenTTL: 5 * time.Hour,
		Issuer:         "PURLS-Backend",
	})
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc := newTestJWTService()

	token, err := svc.GenerateAccessToken(42)
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.User.ID)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "PURLS-Backend", claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(5*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestJWTService_PayloadCarriesUserObject(t *testing.T) {
	svc := newTestJWTService()
	token, err := svc.GenerateAccessToken(7)
	require.NoError(t, err)

	payload, err := base64.RawURLEncoding.DecodeString(strings.Split(token, ".")[1])
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"user":{"id":7}`)
}

func TestJWTService_Expired(t *testing.T) {
	svc := newTestJWTService()
	issued := time.Now().Add(-6 * time.Hour)
	svc.now = func() time.Time { return issued }

	token, err := svc.GenerateAccessToken(1)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := newTestJWTService()
	valid, err := svc.GenerateAccessToken(1)
	require.NoError(t, err)

	otherSecret := NewJWTService(&JWTConfig{SecretKey: []byte("other"), AccessTokenTTL: time.Hour, Issuer: "PURLS-Backend"})
	forged, err := otherSecret.GenerateAccessToken(1)
	require.NoError(t, err)

	otherIssuer := NewJWTService(&JWTConfig{SecretKey: []byte("test-secret"), AccessTokenTTL: time.Hour, Issuer: "someone-else"})
	wrongIssuer, err := otherIssuer.GenerateAccessToken(1)
	require.NoError(t, err)

	noUser, err := svc.GenerateAccessToken(0)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		User:             UserClaim{ID: 1},
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)), Issuer: "PURLS-Backend"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		User:             UserClaim{ID: 1},
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "PURLS-Backend"},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + base64.RawURLEncoding.EncodeToString([]byte(`{"user":{"id":2},"exp":9999999999}`)) + "." + parts[2]

	tests := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": forged,
		"wrong issuer": wrongIssuer,
		"no user id":   noUser,
		"alg none":     unsigned,
		"no expiry":    noExpiry,
		"tampered":     tampered,
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestExtractTokenFromBearer(t *testing.T) {
	assert.Equal(t, "abc", ExtractTokenFromBearer("Bearer abc"))
	assert.Equal(t, "", ExtractTokenFromBearer("Bearer "))
	assert.Equal(t, "", ExtractTokenFromBearer("Basic abc"))
	assert.Equal(t, "", ExtractTokenFromBearer(""))
}
