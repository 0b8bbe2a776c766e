package newsintel

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dsa-core/dsa-core/internal/model"
)

// MaxCacheEntries bounds the in-process news cache; once full, the
// oldest entry is evicted to admit a new one (FIFO, not LRU — repeat
// hits don't extend an entry's life since dimension sets are day-scoped
// anyway).
const MaxCacheEntries = 500

type cacheEntry struct {
	key   string
	value model.NewsIntel
}

// intelCache is a bounded FIFO cache keyed by (ticker, dimension set,
// day bucket) so a ticker analyzed twice in one day doesn't re-spend
// search-provider quota.
type intelCache struct {
	mu    sync.Mutex
	order []string
	items map[string]cacheEntry
}

func newIntelCache() *intelCache {
	return &intelCache{items: make(map[string]cacheEntry)}
}

func cacheKey(ticker string, dims []Dimension, day time.Time) string {
	keys := make([]string, len(dims))
	for i, d := range dims {
		keys[i] = d.Key
	}
	return fmt.Sprintf("%s|%s|%s", ticker, strings.Join(keys, ","), day.Format("2006-01-02"))
}

func (c *intelCache) get(key string) (model.NewsIntel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	return e.value, ok
}

func (c *intelCache) set(key string, v model.NewsIntel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[key]; !exists {
		if len(c.order) >= MaxCacheEntries {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.items, oldest)
		}
		c.order = append(c.order, key)
	}
	c.items[key] = cacheEntry{key: key, value: v}
}
