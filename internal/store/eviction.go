package store

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// EvictionPolicy decides which entries the Store may drop. The Store reports
// every write or read through Touched and every removal through Removed; the
// policy asks for an eviction by calling the function given to Bind. The
// Store refuses to evict entries that have subscribers or a fetch in flight,
// so a policy can never break an active consumer.
type EvictionPolicy interface {
	Bind(evict func(Key) bool)
	Touched(key Key)
	Removed(key Key)
	Purge()
}

// LRUPolicy bounds the number of tracked entries, evicting the least
// recently used one first.
type LRUPolicy struct {
	recent *lru.Cache[Key, struct{}]
	evict  func(Key) bool
}

func NewLRUPolicy(maxEntries int) (*LRUPolicy, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("lru policy: maxEntries must be > 0, got %d", maxEntries)
	}
	p := &LRUPolicy{}
	recent, err := lru.NewWithEvict[Key, struct{}](maxEntries, func(key Key, _ struct{}) {
		if p.evict != nil {
			p.evict(key)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("lru policy: %w", err)
	}
	p.recent = recent
	return p, nil
}

func (p *LRUPolicy) Bind(evict func(Key) bool) { p.evict = evict }

func (p *LRUPolicy) Touched(key Key) { p.recent.Add(key, struct{}{}) }

func (p *LRUPolicy) Removed(key Key) { p.recent.Remove(key) }

func (p *LRUPolicy) Purge() { p.recent.Purge() }

// Len reports how many keys the policy currently tracks.
func (p *LRUPolicy) Len() int { return p.recent.Len() }
