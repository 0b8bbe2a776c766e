package llm

import (
	"math/rand"
	"sync"
	"time"
)

// KeyPool shuffles a provider's key set on construction and rotates
// through the shuffled order from its start, putting a key on cooldown
// after a 429 the same way internal/newsintel.KeyPool does; the shuffle
// keeps routers across process restarts from all trying the first
// configured key first.
type KeyPool struct {
	mu       sync.Mutex
	keys     []string
	next     int
	cooldown time.Duration
	until    map[string]time.Time
}

func NewKeyPool(keys []string, cooldown time.Duration) *KeyPool {
	shuffled := append([]string{}, keys...)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	return &KeyPool{keys: shuffled, cooldown: cooldown, until: make(map[string]time.Time)}
}

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

func (p *KeyPool) Cooldown(key string) {
	if key == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.until[key] = time.Now().Add(p.cooldown)
}

func (p *KeyPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}
