//go:generate go run go.uber.org/mock/mockgen -source=requester.go -destination=mocks/mock_requester.go -package=mocks
package service

import (
	"context"
	"encoding/json"
)

// Requester issues acknowledged requests on the session channel
type Requester interface {
	Request(ctx context.Context, method string, payload any) (json.RawMessage, error)
}
