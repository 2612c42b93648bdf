package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/ethpandaops/llmsentinel/pkg/store"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const tableCacheKey = "evaluations"

// tableCache memoizes the whole evaluations table. A zero ttl keeps the
// table until the process restarts or a refresh is requested.
type tableCache struct {
	store store.Store
	lru   *expirable.LRU[string, []store.Record]
	mu    sync.Mutex
}

func newTableCache(st store.Store, ttl time.Duration) *tableCache {
	return &tableCache{
		store: st,
		lru:   expirable.NewLRU[string, []store.Record](1, nil, ttl),
	}
}

// Rows returns the cached table, loading it when missing or when refresh
// is set.
func (c *tableCache) Rows(ctx context.Context, refresh bool) ([]store.Record, error) {
	if !refresh {
		if rows, ok := c.lru.Get(tableCacheKey); ok {
			return rows, nil
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another request may have loaded the table while we waited.
	if !refresh {
		if rows, ok := c.lru.Get(tableCacheKey); ok {
			return rows, nil
		}
	}

	rows, err := c.store.ReadAll(ctx)
	if err != nil {
		return nil, err
	}

	c.lru.Add(tableCacheKey, rows)

	return rows, nil
}
