package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunlease/portal/internal/identity"
)

func TestTokensRoundTrip(t *testing.T) {
	tokens, err := NewTokens("secret", "portal", time.Hour)
	require.NoError(t, err)

	issued, err := tokens.Issue(42, identity.RoleInvestor)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)

	claims, err := tokens.Parse(issued.Value)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, int(identity.RoleInvestor), claims.Role)
	assert.Equal(t, issued.ID, claims.ID)
}

func TestTokensExpiry(t *testing.T) {
	tokens, err := NewTokens("secret", "portal", time.Minute)
	require.NoError(t, err)
	issued, err := tokens.Issue(1, identity.RoleOfftaker)
	require.NoError(t, err)

	tokens.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = tokens.Parse(issued.Value)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokensRejectForeignSignatures(t *testing.T) {
	tokens, err := NewTokens("secret", "portal", time.Hour)
	require.NoError(t, err)
	other, err := NewTokens("other-secret", "portal", time.Hour)
	require.NoError(t, err)
	issued, err := other.Issue(1, identity.RoleInvestor)
	require.NoError(t, err)

	_, err = tokens.Parse(issued.Value)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := NewTokens("secret", "elsewhere", time.Hour)
	require.NoError(t, err)
	issued, err = wrongIssuer.Issue(1, identity.RoleInvestor)
	require.NoError(t, err)
	_, err = tokens.Parse(issued.Value)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tokens.Parse(none)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.Parse("   ")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokensRequiresSecret(t *testing.T) {
	_, err := NewTokens(" ", "portal", time.Hour)
	assert.Error(t, err)
	_, err = NewTokens("secret", "portal", 0)
	assert.Error(t, err)
}
