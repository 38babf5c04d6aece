package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret"
	testIssuer = "synchub-test"
)

func signToken(t *testing.T, secret, issuer, subject, name string, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAuthenticateValidToken(t *testing.T) {
	a := New(testSecret, testIssuer, false)
	token := signToken(t, testSecret, testIssuer, "user-1", "Dev One", time.Hour)

	id, err := a.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", string(id.ID))
	assert.Equal(t, "Dev One", id.Name)
	assert.False(t, id.Provisional)
}

func TestAuthenticateRejections(t *testing.T) {
	a := New(testSecret, testIssuer, false)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"missing", "", ErrMissingCredential},
		{"garbage", "not-a-jwt", ErrInvalidToken},
		{"wrong secret", signToken(t, "other-secret", testIssuer, "u", "", time.Hour), ErrInvalidToken},
		{"wrong issuer", signToken(t, testSecret, "someone-else", "u", "", time.Hour), ErrInvalidToken},
		{"expired", signToken(t, testSecret, testIssuer, "u", "", -time.Minute), ErrExpiredToken},
		{"no subject", signToken(t, testSecret, testIssuer, "", "", time.Hour), ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Authenticate(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPermissiveModeProvisionalIdentity(t *testing.T) {
	a := New(testSecret, testIssuer, true)

	id, err := a.Authenticate("")
	require.NoError(t, err)
	assert.True(t, id.Provisional)
	assert.True(t, strings.HasPrefix(string(id.ID), "anon-"))

	other, err := a.Authenticate("")
	require.NoError(t, err)
	assert.NotEqual(t, id.ID, other.ID, "each anonymous connection gets a fresh identity")
}

func TestPermissiveModeStillRejectsInvalid(t *testing.T) {
	a := New(testSecret, testIssuer, true)

	_, err := a.Authenticate("present-but-invalid")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Authenticate(signToken(t, testSecret, testIssuer, "u", "", -time.Minute))
	assert.ErrorIs(t, err, ErrExpiredToken)
}
