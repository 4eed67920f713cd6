//go:generate go run go.uber.org/mock/mockgen -source=uploader.go -destination=mocks/mock_uploader.go -package=mocks
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"realtime-chat/client/pkg/errors"
	"realtime-chat/client/pkg/logger"
	"realtime-chat/client/pkg/resilience"

	"github.com/gabriel-vasile/mimetype"
)

// Uploader stores binary media and returns the URL it is served from
type Uploader interface {
	Upload(ctx context.Context, data []byte) (string, error)
}

// HTTPUploader posts images to the backend's upload endpoint
type HTTPUploader struct {
	url        string
	credential string
	httpClient *http.Client
	log        *logger.Logger
}

// NewHTTPUploader creates an uploader authenticated with the session credential
func NewHTTPUploader(url, credential string, timeout time.Duration, log *logger.Logger) *HTTPUploader {
	return &HTTPUploader{
		url:        url,
		credential: credential,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.WithComponent("uploader"),
	}
}

// Upload sends data as the "image" field of a multipart form
func (u *HTTPUploader) Upload(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.NewBadRequestError("EMPTY_UPLOAD", "no image data")
	}
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", errors.NewBadRequestError("NOT_AN_IMAGE", "only images can be sent").
			WithDetails(map[string]string{"mimeType": mtype.String()})
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="upload%s"`, mtype.Extension()))
	header.Set("Content-Type", mtype.String())
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", errors.NewInternalError("UPLOAD_ENCODING", "could not build upload form").Wrap(err)
	}
	if _, err := part.Write(data); err != nil {
		return "", errors.NewInternalError("UPLOAD_ENCODING", "could not build upload form").Wrap(err)
	}
	if err := writer.Close(); err != nil {
		return "", errors.NewInternalError("UPLOAD_ENCODING", "could not build upload form").Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, body)
	if err != nil {
		return "", errors.NewInternalError("UPLOAD_REQUEST", "could not create upload request").Wrap(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+u.credential)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", errors.NewNetworkError("UPLOAD_UNREACHABLE", "could not reach the upload endpoint", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewNetworkError("UPLOAD_UNREACHABLE", "could not read the upload response", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", errors.NewAuthError("UPLOAD_REJECTED", "the upload endpoint rejected the credential")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		u.log.Warn("Upload failed", "status", resp.StatusCode, "body", string(bodyBytes))
		return "", errors.NewRequestError("UPLOAD_FAILED", "the upload endpoint returned an error").
			WithDetails(map[string]int{"status": resp.StatusCode})
	}

	var uploadResponse struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(bodyBytes, &uploadResponse); err != nil || uploadResponse.URL == "" {
		return "", errors.NewRequestError("UPLOAD_FAILED", "the upload response has no url")
	}
	return uploadResponse.URL, nil
}

// GuardedUploader fails fast while the upload endpoint keeps failing
type GuardedUploader struct {
	next    Uploader
	breaker *resilience.CircuitBreaker
}

// NewGuardedUploader runs every upload of next through the breaker
func NewGuardedUploader(next Uploader, breaker *resilience.CircuitBreaker) *GuardedUploader {
	return &GuardedUploader{next: next, breaker: breaker}
}

// Upload implements Uploader
func (u *GuardedUploader) Upload(ctx context.Context, data []byte) (string, error) {
	var url string
	err := u.breaker.Execute(func() error {
		var err error
		url, err = u.next.Upload(ctx, data)
		return err
	})
	return url, err
}

// UploadFailure reports whether an upload error means the endpoint is unhealthy
func UploadFailure(err error) bool {
	switch errors.KindOf(err) {
	case errors.KindNetwork, errors.KindTimeout:
		return true
	case errors.KindRequest:
		return errors.GetErrorCode(err) == "UPLOAD_FAILED"
	}
	return false
}
