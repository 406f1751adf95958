package di

import (
	"context"
	"testing"

	"campus-found/backend/pkg/config"
	"campus-found/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithMemoryStore(t *testing.T) {
	t.Setenv("VAULT_ENABLED", "false")
	t.Setenv("JWT_SECRET", "from-env")

	cfg := config.Load()
	cfg.Database.Driver = "memory"
	cfg.Redis.Enabled = false

	c, err := New(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.DB)
	assert.Nil(t, c.Bridge)
	require.NotNil(t, c.Messenger)

	handle, err := c.Messenger.StartOrContinue(context.Background(), "ann", "bo")
	require.NoError(t, err)
	assert.True(t, handle.Created)

	// the JWT secret is resolved through the secrets manager
	token, err := c.JWTService.GenerateToken("ann")
	require.NoError(t, err)
	claims, err := c.JWTService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ann", claims.Participant())
}
