package tokendiag

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestUnsafeDecodeReadsExpiredToken(t *testing.T) {
	t.Parallel()

	expiresAt := time.Now().Add(-time.Minute).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      "user-1",
		"userId":   "user-1",
		"tokenId":  "tok-1",
		"aud":      "uec-launcher-refresh",
		"exp":      expiresAt.Unix(),
		"password": "never-read",
	}).SignedString([]byte("unknown-secret"))
	require.NoError(t, err)

	d, err := UnsafeDecode(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", d.Subject)
	require.Equal(t, "tok-1", d.TokenID)
	require.Equal(t, []string{"uec-launcher-refresh"}, d.Audience)
	require.True(t, d.ExpiresAt.Equal(expiresAt))
	require.True(t, d.Expired(time.Now()))
}

func TestUnsafeDecodeRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := UnsafeDecode("")
	require.Error(t, err)

	_, err = UnsafeDecode("abc.def")
	require.Error(t, err)
}
