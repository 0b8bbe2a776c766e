// Package newsintel is the C4 News Service: templated multi-dimension
// search across pluggable providers, fingerprint dedup/ranking, and an
// HTML-scrape fallback when every keyed provider is exhausted.
package newsintel

import (
	"sync"
	"time"
)

// KeyPool round-robins a set of API keys and puts a key on a cooldown
// timer after a 429, generalizing the per-key rotation the LLM router
// also needs (see internal/llm) into a shared, reusable primitive.
type KeyPool struct {
	mu       sync.Mutex
	keys     []string
	next     int
	cooldown time.Duration
	until    map[string]time.Time
}

// NewKeyPool builds a pool with the given cooldown applied after a 429.
func NewKeyPool(keys []string, cooldown time.Duration) *KeyPool {
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	return &KeyPool{keys: keys, cooldown: cooldown, until: make(map[string]time.Time)}
}

// Take returns the next usable key, skipping any still cooling down.
// Returns "" if no key is currently usable (all cooling down, or empty pool).
func (p *KeyPool) Take() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return ""
	}
	now := time.Now()
	for i := 0; i < len(p.keys); i++ {
		idx := (p.next + i) % len(p.keys)
		key := p.keys[idx]
		if until, cooling := p.until[key]; cooling && now.Before(until) {
			continue
		}
		p.next = (idx + 1) % len(p.keys)
		return key
	}
	return ""
}

// Cooldown marks a key as rate-limited until the pool's cooldown elapses.
func (p *KeyPool) Cooldown(key string) {
	if key == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.until[key] = time.Now().Add(p.cooldown)
}

// Len reports the pool size (zero means the provider is unconfigured).
func (p *KeyPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}
