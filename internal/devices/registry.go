// Package devices implements the Device Registry (C3): mapping a device's
// opaque credential to its identity and owning tenant. Liveness is not
// tracked here — internal/hub is the sole liveness authority.
package devices

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/brivas/smsgateway/internal/apperr"
	"github.com/brivas/smsgateway/internal/store"
)

type Registry struct {
	db *store.Client
}

func New(db *store.Client) *Registry {
	return &Registry{db: db}
}

// Authenticate resolves a device's opaque api_key to its identity.
func (r *Registry) Authenticate(ctx context.Context, apiKey string) (*store.Device, error) {
	device, err := r.db.GetDeviceByAPIKey(ctx, apiKey)
	if err == store.ErrNotFound {
		return nil, &apperr.Error{Kind: apperr.KindAuthn, Message: "invalid device api key"}
	}
	if err != nil {
		return nil, err
	}
	return device, nil
}

// GenerateAPIKey produces an opaque, URL-safe 32-byte device secret.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate device api key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
