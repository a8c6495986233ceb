package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", 15*time.Minute)

	token, claims, err := issuer.GenerateAccessToken("subject-1")
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	got, err := issuer.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "subject-1", got.Subject)
	assert.Equal(t, Issuer, got.Issuer)
	assert.Equal(t, claims.ID, got.ID)
}

func TestVerifyTokenFailures(t *testing.T) {
	issuer := NewTokenIssuer("secret", 15*time.Minute)
	token, _, err := issuer.GenerateAccessToken("subject-1")
	require.NoError(t, err)

	stale := NewTokenIssuer("secret", 15*time.Minute)
	stale.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _, err := stale.GenerateAccessToken("subject-1")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		v     *TokenIssuer
		want  error
	}{
		{"empty", "", issuer, ErrInvalidToken},
		{"garbage", "not-a-jwt", issuer, ErrInvalidToken},
		{"wrong secret", token, NewTokenIssuer("other", time.Minute), ErrInvalidToken},
		{"tampered", token[:len(token)-2] + "xx", issuer, ErrInvalidToken},
		{"expired", expired, issuer, ErrExpiredToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.v.VerifyToken(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseIgnoringExpiry(t *testing.T) {
	stale := NewTokenIssuer("secret", time.Minute)
	stale.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, claims, err := stale.GenerateAccessToken("subject-1")
	require.NoError(t, err)

	got, err := NewTokenIssuer("secret", time.Minute).ParseIgnoringExpiry(expired)
	require.NoError(t, err)
	assert.Equal(t, claims.ID, got.ID)

	_, err = NewTokenIssuer("other", time.Minute).ParseIgnoringExpiry(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
