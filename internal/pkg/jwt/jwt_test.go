package jwt

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var secret = []byte("unit-secret")

func TestParseTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("user-1", "u@muhtawa.io", secret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "u@muhtawa.io", claims.Email)
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("user-1", "", secret, time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(token, []byte("other-secret"))
	require.Error(t, err)
}

func TestParseTokenExpired(t *testing.T) {
	token, err := GenerateToken("user-1", "", secret, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, secret)
	require.Error(t, err)
}

func TestParseTokenRejectsOtherMethods(t *testing.T) {
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS512, Claims{UserID: "user-1"})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	_, err = ParseToken(signed, secret)
	require.Error(t, err)
}

func TestParseTokenRequiresUserID(t *testing.T) {
	token, err := GenerateToken("", "", secret, time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(token, secret)
	require.ErrorIs(t, err, ErrInvalidToken)
}
