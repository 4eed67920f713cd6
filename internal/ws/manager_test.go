package ws

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"realtime-chat/client/internal/ws/wstest"
	"realtime-chat/client/pkg/errors"
	"realtime-chat/client/pkg/logger"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token"

func newTestManager(endpoint string) *Manager {
	log := logger.NewNop()
	dialer := NewWebsocketDialer(DefaultDialerConfig(), log)
	return NewManager(ManagerConfig{Endpoint: endpoint, ConnectTimeout: 2 * time.Second}, dialer, log, nil)
}

type countingDialer struct {
	calls atomic.Int32
}

func (d *countingDialer) Dial(ctx context.Context, endpoint string, credential string) (Channel, error) {
	d.calls.Add(1)
	return nil, errors.NewNetworkError("DIAL_FAILED", "unreachable", nil)
}

func TestManager_ConnectAndDisconnect(t *testing.T) {
	srv := wstest.NewServer(testToken)
	defer srv.Close()

	m := newTestManager(srv.URL())
	var connected, disconnected atomic.Int32
	m.OnConnected(func(ConnectionHandle) { connected.Add(1) })
	m.OnDisconnected(func(reason error) {
		assert.NoError(t, reason)
		disconnected.Add(1)
	})

	handle, err := m.Connect(context.Background(), testToken)
	require.NoError(t, err)
	assert.NotEmpty(t, handle.ID)
	assert.Equal(t, StateConnected, m.State())
	assert.Equal(t, int32(1), connected.Load())

	// A second connect reuses the live connection
	again, err := m.Connect(context.Background(), testToken)
	require.NoError(t, err)
	assert.Equal(t, handle.ID, again.ID)

	m.Disconnect()
	m.Disconnect()
	assert.Equal(t, StateDisconnected, m.State())
	assert.Equal(t, int32(1), disconnected.Load())
	require.Eventually(t, func() bool { return srv.Connections() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestManager_DisconnectFromAnyState(t *testing.T) {
	m := newTestManager("ws://127.0.0.1:1")
	m.Disconnect()
	assert.Equal(t, StateDisconnected, m.State())
}

func TestManager_RejectedCredential(t *testing.T) {
	srv := wstest.NewServer(testToken)
	defer srv.Close()

	m := newTestManager(srv.URL())
	var reported error
	m.OnConnectError(func(err error) { reported = err })

	_, err := m.Connect(context.Background(), "wrong-token")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAuth))
	assert.Equal(t, "CREDENTIAL_REJECTED", errors.GetErrorCode(err))
	assert.Equal(t, StateErrored, m.State())
	assert.Equal(t, err, reported)
	assert.Equal(t, err, m.Err())
}

func TestManager_InvalidCredentialNeverDials(t *testing.T) {
	expired, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.RegisteredClaims{
		Subject:   "42",
		ExpiresAt: gojwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name       string
		credential string
		code       string
	}{
		{name: "empty", credential: "", code: "MISSING_CREDENTIAL"},
		{name: "expired jwt", credential: expired, code: "CREDENTIAL_EXPIRED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialer := &countingDialer{}
			m := NewManager(ManagerConfig{Endpoint: "ws://unused"}, dialer, logger.NewNop(), nil)

			_, err := m.Connect(context.Background(), tt.credential)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrAuth))
			assert.Equal(t, tt.code, errors.GetErrorCode(err))
			assert.Equal(t, StateErrored, m.State())
			assert.Zero(t, dialer.calls.Load())
		})
	}
}

func TestManager_NetworkError(t *testing.T) {
	srv := wstest.NewServer(testToken)
	endpoint := srv.URL()
	srv.Close()

	m := newTestManager(endpoint)
	_, err := m.Connect(context.Background(), testToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNetwork))
	assert.Equal(t, StateErrored, m.State())

	// The caller may retry after an error; it fails the same way
	_, err = m.Connect(context.Background(), testToken)
	assert.True(t, errors.Is(err, errors.ErrNetwork))
}

func TestManager_RemoteLoss(t *testing.T) {
	srv := wstest.NewServer(testToken)
	defer srv.Close()

	m := newTestManager(srv.URL())
	var (
		mu      sync.Mutex
		reasons []error
	)
	m.OnDisconnected(func(reason error) {
		mu.Lock()
		defer mu.Unlock()
		reasons = append(reasons, reason)
	})

	_, err := m.Connect(context.Background(), testToken)
	require.NoError(t, err)

	srv.DropConnections()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reasons) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, StateDisconnected, m.State())

	m.Disconnect()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reasons, 1)
	assert.True(t, errors.Is(reasons[0], errors.ErrTransport))
}
