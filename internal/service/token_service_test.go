package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"go-auth-service/internal/model"
)

func newTestTokens(t *testing.T) *TokenService {
	t.Helper()

	svc, err := NewTokenService(TokenConfig{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		Issuer:        "uec-launcher",
		AccessTTL:     time.Hour,
		RefreshTTL:    7 * 24 * time.Hour,
	})
	require.NoError(t, err)
	return svc
}

func TestIssueAndVerifyAccess(t *testing.T) {
	t.Parallel()

	svc := newTestTokens(t)
	identity := model.Identity{UserID: "user-1", Username: "alice", Email: "alice@example.com", Role: model.RoleVIP}

	token, expiresAt, err := svc.IssueAccess(identity)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.VerifyAccess(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, "alice@example.com", claims.Email)
	require.Equal(t, model.RoleVIP, claims.Role)
	require.Equal(t, "uec-launcher", claims.Issuer)
	require.Equal(t, jwt.ClaimStrings{"uec-launcher-users"}, claims.Audience)
}

func TestIssueAndVerifyRefresh(t *testing.T) {
	t.Parallel()

	svc := newTestTokens(t)

	token, _, err := svc.IssueRefresh("user-1", "token-abc")
	require.NoError(t, err)

	claims, err := svc.VerifyRefresh(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "token-abc", claims.TokenID)
}

func TestTokensAreNotInterchangeable(t *testing.T) {
	t.Parallel()

	svc := newTestTokens(t)

	access, _, err := svc.IssueAccess(model.Identity{UserID: "user-1", Role: model.RoleMember})
	require.NoError(t, err)
	refresh, _, err := svc.IssueRefresh("user-1", "token-abc")
	require.NoError(t, err)

	_, err = svc.VerifyRefresh(access)
	require.ErrorIs(t, err, model.ErrTokenInvalid)

	_, err = svc.VerifyAccess(refresh)
	require.ErrorIs(t, err, model.ErrTokenInvalid)
}

func TestVerifyExpiredToken(t *testing.T) {
	t.Parallel()

	svc := newTestTokens(t)
	issuedAt := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return issuedAt }

	token, _, err := svc.IssueAccess(model.Identity{UserID: "user-1", Role: model.RoleMember})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now() }
	_, err = svc.VerifyAccess(token)
	require.ErrorIs(t, err, model.ErrTokenExpired)
}

func TestVerifyRejectsForeignSignatures(t *testing.T) {
	t.Parallel()

	svc := newTestTokens(t)
	other, err := NewTokenService(TokenConfig{
		AccessSecret:  "another-access-secret",
		RefreshSecret: "another-refresh-secret",
		Issuer:        "uec-launcher",
		AccessTTL:     time.Hour,
		RefreshTTL:    time.Hour,
	})
	require.NoError(t, err)

	token, _, err := other.IssueAccess(model.Identity{UserID: "user-1", Role: model.RoleAdmin})
	require.NoError(t, err)

	_, err = svc.VerifyAccess(token)
	require.ErrorIs(t, err, model.ErrTokenInvalid)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	t.Parallel()

	svc := newTestTokens(t)
	other, err := NewTokenService(TokenConfig{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		Issuer:        "someone-else",
		AccessTTL:     time.Hour,
		RefreshTTL:    time.Hour,
	})
	require.NoError(t, err)

	token, _, err := other.IssueAccess(model.Identity{UserID: "user-1", Role: model.RoleMember})
	require.NoError(t, err)

	_, err = svc.VerifyAccess(token)
	require.ErrorIs(t, err, model.ErrTokenInvalid)
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	t.Parallel()

	svc := newTestTokens(t)
	claims := AccessClaims{
		UserID: "user-1",
		Role:   model.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "uec-launcher",
			Audience:  jwt.ClaimStrings{"uec-launcher-users"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.VerifyAccess(token)
	require.ErrorIs(t, err, model.ErrTokenInvalid)
}

func TestVerifyGarbage(t *testing.T) {
	t.Parallel()

	svc := newTestTokens(t)

	_, err := svc.VerifyAccess("not.a.jwt")
	require.ErrorIs(t, err, model.ErrTokenInvalid)
	_, err = svc.VerifyRefresh("")
	require.ErrorIs(t, err, model.ErrTokenInvalid)
}

func TestNewTokenServiceValidatesSecrets(t *testing.T) {
	t.Parallel()

	_, err := NewTokenService(TokenConfig{AccessSecret: "", RefreshSecret: "x", AccessTTL: time.Hour, RefreshTTL: time.Hour})
	require.Error(t, err)

	_, err = NewTokenService(TokenConfig{AccessSecret: "same", RefreshSecret: "same", AccessTTL: time.Hour, RefreshTTL: time.Hour})
	require.Error(t, err)
}
