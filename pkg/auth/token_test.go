package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func newTestSigner(t *testing.T, issuer string) *Signer {
	t.Helper()
	s, err := NewSigner(config.JWTConfig{Secret: "secret", Issuer: issuer, ExpirationMinutes: 30})
	require.NoError(t, err)
	return s
}

func TestNewSignerValidatesConfig(t *testing.T) {
	for name, cfg := range map[string]config.JWTConfig{
		"secret": {Issuer: "storefront", ExpirationMinutes: 5},
		"issuer": {Secret: "s", ExpirationMinutes: 5},
		"ttl":    {Secret: "s", Issuer: "storefront"},
	} {
		_, err := NewSigner(cfg)
		assert.Error(t, err, name)
	}
}

func TestSignAndVerify(t *testing.T) {
	s := newTestSigner(t, "storefront")
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := s.Sign(now, Subject{UserID: userID, Role: enums.RoleAdmin})
	require.NoError(t, err)

	claims, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, enums.RoleAdmin, claims.Role)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestSignRejectsIncompleteSubject(t *testing.T) {
	s := newTestSigner(t, "storefront")
	_, err := s.Sign(time.Now(), Subject{Role: enums.RoleBuyer})
	assert.Error(t, err)
	_, err = s.Sign(time.Now(), Subject{UserID: uuid.New(), Role: "owner"})
	assert.Error(t, err)
}

func TestVerifyRejects(t *testing.T) {
	s := newTestSigner(t, "storefront")
	good, err := s.Sign(time.Now(), Subject{UserID: uuid.New(), Role: enums.RoleBuyer})
	require.NoError(t, err)
	expired, err := s.Sign(time.Now().Add(-time.Hour), Subject{UserID: uuid.New(), Role: enums.RoleBuyer})
	require.NoError(t, err)
	foreign, err := newTestSigner(t, "elsewhere").Sign(time.Now(), Subject{UserID: uuid.New(), Role: enums.RoleBuyer})
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID:           uuid.New(),
		Role:             enums.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "storefront", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"tampered": good + "x",
		"expired":  expired,
		"issuer":   foreign,
		"alg none": unsigned,
	} {
		_, err := s.Verify(token)
		assert.Error(t, err, name)
	}
}
