package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "render-farm-secret"

func signClaims(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestJWTManager_RoundTrip(t *testing.T) {
	manager := NewJWTManager(testSecret, time.Hour)

	token, err := manager.Generate("u-17", "ops@example.com", RoleRenderer)
	require.NoError(t, err)

	claims, err := manager.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u-17", claims.UserID)
	assert.Equal(t, "ops@example.com", claims.Email)
	assert.Equal(t, RoleRenderer, claims.Role)
	assert.Equal(t, Issuer, claims.Issuer)
	assert.Equal(t, "u-17", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestJWTManager_GenerateRequiresUser(t *testing.T) {
	_, err := NewJWTManager(testSecret, time.Hour).Generate("", "", RoleViewer)
	assert.EqualError(t, err, "user ID is required")
}

func TestJWTManager_VerifyRejects(t *testing.T) {
	manager := NewJWTManager(testSecret, time.Hour)
	now := time.Now()
	valid := jwt.RegisteredClaims{
		Issuer:    Issuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{
			name:  "other secret",
			token: signClaims(t, jwt.SigningMethodHS256, []byte("other"), &Claims{UserID: "u", RegisteredClaims: valid}),
		},
		{
			name:  "other algorithm",
			token: signClaims(t, jwt.SigningMethodHS512, []byte(testSecret), &Claims{UserID: "u", RegisteredClaims: valid}),
		},
		{
			name: "other issuer",
			token: signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), &Claims{
				UserID: "u",
				RegisteredClaims: jwt.RegisteredClaims{
					Issuer:    "someone-else",
					ExpiresAt: valid.ExpiresAt,
				},
			}),
		},
		{
			name: "no expiry",
			token: signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), &Claims{
				UserID:           "u",
				RegisteredClaims: jwt.RegisteredClaims{Issuer: Issuer},
			}),
		},
		{
			name: "expired",
			token: signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), &Claims{
				UserID: "u",
				RegisteredClaims: jwt.RegisteredClaims{
					Issuer:    Issuer,
					ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
				},
			}),
		},
		{
			name:  "no user",
			token: signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), &Claims{RegisteredClaims: valid}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manager.Verify(tt.token)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid token")
		})
	}
}
