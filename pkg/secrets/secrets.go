package secrets

import (
	"context"
	"sync"

	"campus-found/backend/pkg/logger"
)

// Manager provides access to secrets from various sources
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)

	// GetSecretWithDefault retrieves a secret with a default value if not found
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

var (
	defaultManager Manager
	managerMu      sync.RWMutex
)

// Init initializes the default secrets manager from the environment
func Init(log *logger.Logger) (Manager, error) {
	manager, err := NewVaultManager(VaultConfigFromEnv(), log)
	if err != nil {
		return nil, err
	}
	SetManager(manager)
	return manager, nil
}

// GetSecret retrieves a secret from the default manager
func GetSecret(ctx context.Context, key string) (string, error) {
	managerMu.RLock()
	m := defaultManager
	managerMu.RUnlock()

	if m == nil {
		return "", ErrManagerNotInitialized
	}
	return m.GetSecret(ctx, key)
}

// GetSecretWithDefault retrieves a secret with a default value if not found
func GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	managerMu.RLock()
	m := defaultManager
	managerMu.RUnlock()

	if m == nil {
		return defaultValue
	}
	return m.GetSecretWithDefault(ctx, key, defaultValue)
}

// SetManager replaces the default secrets manager
func SetManager(manager Manager) {
	managerMu.Lock()
	defer managerMu.Unlock()
	defaultManager = manager
}

// ErrManagerNotInitialized is returned before Init or SetManager
var ErrManagerNotInitialized = Error("secrets manager not initialized")

// Error represents a secrets management error
type Error string

// Error implements the error interface
func (e Error) Error() string {
	return string(e)
}
