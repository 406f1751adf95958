package secrets

import (
	"context"
	"testing"

	"campus-found/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledVaultFallsBackToEnvironment(t *testing.T) {
	m, err := NewVaultManager(VaultConfig{Enabled: false}, logger.Discard())
	require.NoError(t, err)
	defer m.Close()

	env := map[string]string{"DB_PASSWORD": "hunter2"}
	m.lookup = func(k string) string { return env[k] }

	v, err := m.GetSecret(context.Background(), "db.password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", v)

	delete(env, "DB_PASSWORD")
	v, err = m.GetSecret(context.Background(), "db-password")
	assert.ErrorIs(t, err, ErrSecretNotFound)
	assert.Empty(t, v)

	cached, err := m.GetSecret(context.Background(), "db.password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cached)

	assert.Equal(t, "fallback", m.GetSecretWithDefault(context.Background(), "jwt.secret", "fallback"))
}

func TestEnabledVaultRequiresAddressAndToken(t *testing.T) {
	_, err := NewVaultManager(VaultConfig{Enabled: true}, logger.Discard())
	assert.ErrorIs(t, err, ErrNoVaultAddress)

	_, err = NewVaultManager(VaultConfig{Enabled: true, Address: "http://127.0.0.1:8200"}, logger.Discard())
	assert.ErrorIs(t, err, ErrNoVaultToken)
}

func TestPackageLevelManager(t *testing.T) {
	SetManager(nil)
	_, err := GetSecret(context.Background(), "x")
	assert.ErrorIs(t, err, ErrManagerNotInitialized)
	assert.Equal(t, "d", GetSecretWithDefault(context.Background(), "x", "d"))
}
