package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-rewards-api/internal/models"
	appErrors "github.com/noah-isme/campus-rewards-api/pkg/errors"
)

const testTokenSecret = "test-secret"

func signTestToken(t *testing.T, secret string, claims models.JWTClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims(role models.UserRole) models.JWTClaims {
	now := time.Now()
	return models.JWTClaims{
		UserID: "user-1",
		Role:   role,
		Email:  "user@campus.test",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "campus-idp",
			Audience:  jwt.ClaimStrings{"campus-rewards"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestAuthServiceValidateToken(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: testTokenSecret, Issuer: "campus-idp", Audience: []string{"campus-rewards"}})

	claims, err := svc.ValidateToken(signTestToken(t, testTokenSecret, validClaims(models.RoleFaculty)))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleFaculty, claims.Role)
}

func TestAuthServiceValidateTokenFallsBackToSubject(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: testTokenSecret})
	c := validClaims(models.RoleStudent)
	c.UserID = ""
	c.Subject = "student-9"

	claims, err := svc.ValidateToken(signTestToken(t, testTokenSecret, c))
	require.NoError(t, err)
	assert.Equal(t, "student-9", claims.UserID)
}

func TestAuthServiceValidateTokenRejects(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: testTokenSecret, Issuer: "campus-idp", Audience: []string{"campus-rewards"}})

	expired := validClaims(models.RoleStudent)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongIssuer := validClaims(models.RoleStudent)
	wrongIssuer.Issuer = "someone-else"

	badRole := validClaims(models.UserRole("JANITOR"))

	noExpiry := validClaims(models.RoleStudent)
	noExpiry.ExpiresAt = nil

	cases := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": signTestToken(t, "other-secret", validClaims(models.RoleStudent)),
		"expired":      signTestToken(t, testTokenSecret, expired),
		"wrong issuer": signTestToken(t, testTokenSecret, wrongIssuer),
		"unknown role": signTestToken(t, testTokenSecret, badRole),
		"no expiry":    signTestToken(t, testTokenSecret, noExpiry),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
		})
	}
}
