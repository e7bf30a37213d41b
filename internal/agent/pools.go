package agent

import (
	"context"
	"fmt"
	"sort"

	"github.com/taskhive/taskpulse/internal/api"
)

// PoolGetter is the slice of the API client needed to look up pools.
type PoolGetter interface {
	GetPool(ctx context.Context, id string) (*api.Pool, error)
}

// ResolvePoolNames fetches the display name of every pool referenced by the
// configured metrics, one lookup per distinct pool id. The result maps pool
// id to the pool's private name, for startup logging.
func ResolvePoolNames(ctx context.Context, client PoolGetter, cfg *AgentConfig) (map[string]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	for i := range cfg.Metrics {
		id := cfg.Metrics[i].PoolID
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	names := make(map[string]string, len(ids))
	for _, id := range ids {
		pool, err := client.GetPool(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("agent: resolve pool %s: %w", id, err)
		}
		names[id] = pool.PrivateName
	}
	return names, nil
}
