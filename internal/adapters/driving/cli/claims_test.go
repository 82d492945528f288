package cli

import (
	"testing"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return raw
}

func TestReadClaims(t *testing.T) {
	raw := signedToken(t, jwtlib.MapClaims{
		"aud":   "https://org.crm.dynamics.com",
		"appid": "11111111-2222-3333-4444-555555555555",
		"roles": []string{"user_impersonation", "Reader"},
	})

	claims, ok := readClaims(raw)

	require.True(t, ok)
	assert.Equal(t, "https://org.crm.dynamics.com", claims.Audience)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", claims.AppID)
	assert.Equal(t, []string{"user_impersonation", "Reader"}, claims.Roles)
}

func TestReadClaims_OpaqueToken(t *testing.T) {
	_, ok := readClaims("not-a-jwt")

	assert.False(t, ok)
}

func TestTokenCmd_PrintsAudience(t *testing.T) {
	raw := signedToken(t, jwtlib.MapClaims{"aud": "https://org.operations.dynamics.com"})
	withServices(t, &Services{
		Query:  &mockQueryService{},
		Tokens: &mockTokens{token: newTestToken(raw)},
	})

	out, err := execute(t, "token")

	require.NoError(t, err)
	assert.Contains(t, out, "Audience: https://org.operations.dynamics.com")
	assert.NotContains(t, out, raw)
}
