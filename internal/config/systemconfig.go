package config

import (
	"context"
	"fmt"

	"github.com/brivas/smsgateway/internal/store"
)

// systemConfigClient is the subset of *store.Client this merge step needs,
// kept narrow so config doesn't have to depend on anything beyond
// GetSystemConfig.
type systemConfigClient interface {
	GetSystemConfig(ctx context.Context, key string) (*store.SystemConfig, error)
}

// ResolveInt implements the SystemConfig runtime-override merge step: env
// defaults (already loaded onto Config) are the fallback, and a matching
// system_config row overrides them at request time. Callers pass the
// Config-derived value as fallback so a missing or malformed row never
// blocks the caller.
func ResolveInt(ctx context.Context, db systemConfigClient, key string, fallback int) int {
	cfg, err := db.GetSystemConfig(ctx, key)
	if err != nil {
		return fallback
	}
	var value int
	if _, err := fmt.Sscanf(cfg.Value, "%d", &value); err != nil {
		return fallback
	}
	return value
}
