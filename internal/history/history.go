package history

import (
	"context"

	"github.com/obsidian-tools/plugin-manager/pkg/registry"
)

const DefaultLimit = 50

// Store persists the results of update checks.
type Store interface {
	Record(ctx context.Context, result *registry.CheckResult) error
	// List returns the most recent results first.
	List(ctx context.Context, limit int) ([]*registry.CheckResult, error)
	Close() error
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
