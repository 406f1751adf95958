package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	svc := NewService("s3cret", time.Hour)

	token, err := svc.GenerateToken("ann@bc.edu")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ann@bc.edu", claims.Participant())
}

func TestWrongSecret(t *testing.T) {
	token, err := NewService("one", time.Hour).GenerateToken("ann@bc.edu")
	require.NoError(t, err)

	_, err = NewService("two", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredToken(t *testing.T) {
	svc := NewService("s3cret", time.Minute)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := svc.GenerateToken("ann@bc.edu")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestEmptyParticipantRejected(t *testing.T) {
	svc := NewService("s3cret", time.Hour)

	token, err := svc.GenerateToken("   ")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrNoParticipant)
}
