package secrets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	apperrors "realtime-chat/client/pkg/errors"
	"realtime-chat/client/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaultManager_Environment(t *testing.T) {
	t.Setenv("CHAT_TOKEN", "from-env")

	m, err := NewVaultManager(VaultConfig{Enabled: false}, logger.NewNop())
	require.NoError(t, err)

	value, err := m.GetSecret(context.Background(), "chat-token")
	require.NoError(t, err)
	assert.Equal(t, "from-env", value)

	_, err = m.GetSecret(context.Background(), "missing.key")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestVaultManager_RequiresAddressAndToken(t *testing.T) {
	_, err := NewVaultManager(VaultConfig{Enabled: true, Token: "t"}, logger.NewNop())
	assert.ErrorIs(t, err, ErrNoVaultAddress)

	_, err = NewVaultManager(VaultConfig{Enabled: true, Address: "http://127.0.0.1:8200"}, logger.NewNop())
	assert.ErrorIs(t, err, ErrNoVaultToken)
}

func TestVaultManager_ReadsKVv2(t *testing.T) {
	var reads atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reads.Add(1)
		assert.Equal(t, "/v1/secret/data/chat-client", r.URL.Path)
		assert.Equal(t, "root", r.Header.Get("X-Vault-Token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"data":{"chat-token":"from-vault"},` +
			`"metadata":{"created_time":"2024-05-01T12:00:00Z","deletion_time":"","destroyed":false,"version":1}}}`))
	}))
	defer srv.Close()

	t.Setenv("OTHER_KEY", "from-env")
	m, err := NewVaultManager(VaultConfig{
		Enabled:     true,
		Address:     srv.URL,
		Token:       "root",
		SecretsPath: "chat-client",
	}, logger.NewNop())
	require.NoError(t, err)

	value, err := m.GetSecret(context.Background(), "chat-token")
	require.NoError(t, err)
	assert.Equal(t, "from-vault", value)

	// Cached after the first read
	_, err = m.GetSecret(context.Background(), "chat-token")
	require.NoError(t, err)
	assert.Equal(t, int32(1), reads.Load())

	// Keys absent from the secret fall back to the environment
	value, err = m.GetSecret(context.Background(), "other-key")
	require.NoError(t, err)
	assert.Equal(t, "from-env", value)
}

type staticSource map[string]string

func (s staticSource) GetSecret(_ context.Context, key string) (string, error) {
	if v, ok := s[key]; ok {
		return v, nil
	}
	return "", ErrSecretNotFound
}

func TestCredential(t *testing.T) {
	value, err := Credential(context.Background(), staticSource{"chat-token": "abc"}, "chat-token")
	require.NoError(t, err)
	assert.Equal(t, "abc", value)

	_, err = Credential(context.Background(), staticSource{}, "chat-token")
	assert.ErrorIs(t, err, apperrors.ErrAuth)
}
