// Package secrets resolves the chat credential from Vault or the environment.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	apperrors "realtime-chat/client/pkg/errors"
	"realtime-chat/client/pkg/logger"

	vault "github.com/hashicorp/vault/api"
)

// Common errors
var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrNoVaultToken   = errors.New("no vault token provided")
	ErrNoVaultAddress = errors.New("no vault address provided")
)

// Source provides secrets by key
type Source interface {
	GetSecret(ctx context.Context, key string) (string, error)
}

// VaultConfig holds configuration for Vault client
type VaultConfig struct {
	Address     string
	Token       string
	Namespace   string
	Timeout     time.Duration
	MaxRetries  int
	SecretsPath string
	Enabled     bool
}

// VaultManager reads secrets from a Vault KV v2 mount, falling back to
// environment variables. Values are cached for the life of the manager.
type VaultManager struct {
	client *vault.Client
	config VaultConfig
	log    *logger.Logger

	mu    sync.RWMutex
	cache map[string]string
}

// NewVaultManager creates a manager. With Vault disabled only the environment is read.
func NewVaultManager(config VaultConfig, log *logger.Logger) (*VaultManager, error) {
	manager := &VaultManager{
		config: config,
		log:    log.WithComponent("secrets"),
		cache:  make(map[string]string),
	}
	if !config.Enabled {
		return manager, nil
	}

	if config.Address == "" {
		return nil, ErrNoVaultAddress
	}
	if config.Token == "" {
		return nil, ErrNoVaultToken
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = config.Address
	if config.Timeout > 0 {
		vaultConfig.Timeout = config.Timeout
	}
	vaultConfig.MaxRetries = config.MaxRetries

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(config.Token)
	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}

	manager.client = client
	return manager, nil
}

// GetSecret retrieves a secret from Vault, with fallback to environment variable
func (m *VaultManager) GetSecret(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	cached, found := m.cache[key]
	m.mu.RUnlock()
	if found {
		return cached, nil
	}

	if m.client == nil {
		return m.getFromEnvironment(key)
	}

	value, err := m.getFromVault(ctx, key)
	if err != nil {
		if errors.Is(err, ErrSecretNotFound) {
			m.log.Warn("Secret not found in Vault, falling back to environment", "key", key)
			return m.getFromEnvironment(key)
		}
		return "", err
	}

	m.cacheSecret(key, value)
	return value, nil
}

func (m *VaultManager) getFromVault(ctx context.Context, key string) (string, error) {
	secret, err := m.client.KVv2("secret").Get(ctx, m.config.SecretsPath)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return "", ErrSecretNotFound
		}
		m.log.Error("Failed to read secret from Vault", "path", m.config.SecretsPath, "error", err.Error())
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", ErrSecretNotFound
	}

	value, ok := secret.Data[key].(string)
	if !ok || value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}

// getFromEnvironment maps "chat-token" to CHAT_TOKEN
func (m *VaultManager) getFromEnvironment(key string) (string, error) {
	envKey := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))

	value := os.Getenv(envKey)
	if value == "" {
		return "", ErrSecretNotFound
	}
	m.cacheSecret(key, value)
	return value, nil
}

func (m *VaultManager) cacheSecret(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
}

// Credential resolves the chat credential. A missing credential is an auth
// error so the session fails the same way a rejected one does.
func Credential(ctx context.Context, source Source, key string) (string, error) {
	value, err := source.GetSecret(ctx, key)
	if errors.Is(err, ErrSecretNotFound) {
		return "", apperrors.NewAuthError("MISSING_CREDENTIAL", "no chat credential configured").
			WithDetails(map[string]string{"key": key})
	}
	if err != nil {
		return "", apperrors.NewInternalError("CREDENTIAL_SOURCE", "could not read the chat credential").Wrap(err)
	}
	return value, nil
}
