package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"realtime-chat/client/internal/service/mocks"
	"realtime-chat/client/pkg/errors"
	"realtime-chat/client/pkg/logger"
	"realtime-chat/client/pkg/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestHTTPUploader_Upload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		file, header, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, pngBytes, data)
		assert.Equal(t, "image/png", header.Header.Get("Content-Type"))
		assert.Equal(t, "upload.png", header.Filename)

		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://cdn.example/upload.png"})
	}))
	defer srv.Close()

	uploader := NewHTTPUploader(srv.URL, "token", time.Second, logger.NewNop())
	url, err := uploader.Upload(context.Background(), pngBytes)

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/upload.png", url)
}

func TestHTTPUploader_RejectsNonImages(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	uploader := NewHTTPUploader(srv.URL, "token", time.Second, logger.NewNop())

	_, err := uploader.Upload(context.Background(), []byte("just some text"))
	assert.ErrorIs(t, err, errors.ErrInvalid)
	assert.Equal(t, "NOT_AN_IMAGE", errors.GetErrorCode(err))

	_, err = uploader.Upload(context.Background(), nil)
	assert.ErrorIs(t, err, errors.ErrInvalid)

	assert.False(t, called)
}

func TestHTTPUploader_ServerErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   *errors.AppError
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: errors.ErrAuth},
		{name: "server failure", status: http.StatusInternalServerError, want: errors.ErrRequest},
		{name: "missing url", status: http.StatusOK, body: `{}`, want: errors.ErrRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			uploader := NewHTTPUploader(srv.URL, "token", time.Second, logger.NewNop())
			_, err := uploader.Upload(context.Background(), pngBytes)

			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHTTPUploader_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	uploader := NewHTTPUploader(url, "token", time.Second, logger.NewNop())
	_, err := uploader.Upload(context.Background(), pngBytes)

	assert.ErrorIs(t, err, errors.ErrNetwork)
}

func TestGuardedUploader_FailsFastWhenEndpointIsDown(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	next := mocks.NewMockUploader(ctrl)

	unreachable := errors.NewNetworkError("UPLOAD_UNREACHABLE", "could not reach the upload endpoint", nil)
	next.EXPECT().Upload(gomock.Any(), pngBytes).Return("", unreachable).Times(2)

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "upload",
		FailureThreshold: 2,
		RetryTimeout:     time.Minute,
		IsFailure:        UploadFailure,
	}, logger.NewNop())
	u := NewGuardedUploader(next, breaker)

	for range 2 {
		_, err := u.Upload(context.Background(), pngBytes)
		req.Equal("UPLOAD_UNREACHABLE", errors.GetErrorCode(err))
	}

	_, err := u.Upload(context.Background(), pngBytes)
	req.Equal("CIRCUIT_OPEN", errors.GetErrorCode(err))
	req.Equal(resilience.StateOpen, breaker.State())
}

func TestGuardedUploader_RejectedImagesKeepCircuitClosed(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockUploader(ctrl)
	next.EXPECT().Upload(gomock.Any(), gomock.Any()).
		Return("", errors.NewBadRequestError("NOT_AN_IMAGE", "only images can be sent")).Times(3)

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "upload",
		FailureThreshold: 1,
		IsFailure:        UploadFailure,
	}, logger.NewNop())
	u := NewGuardedUploader(next, breaker)

	for range 3 {
		_, err := u.Upload(context.Background(), []byte("text"))
		assert.Equal(t, "NOT_AN_IMAGE", errors.GetErrorCode(err))
	}
	assert.Equal(t, resilience.StateClosed, breaker.State())
}
