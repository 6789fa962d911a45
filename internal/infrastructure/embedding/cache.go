package embedding

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CacheKey is the first 16 hex characters of sha256(text).
func CacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

// vectorCache bounds go-cache by insertion order: the oldest key goes first once full.
type vectorCache struct {
	items *gocache.Cache
	max   int

	mu    sync.Mutex
	order *list.List
	index map[string]*list.Element
}

// cached ties a stored vector to its slot in the insertion order, so an eviction
// callback for a replaced entry leaves the newer slot alone.
type cached struct {
	vec  []float32
	slot *list.Element
}

func newVectorCache(max int, ttl time.Duration) *vectorCache {
	c := &vectorCache{
		items: gocache.New(ttl, 10*time.Minute),
		max:   max,
		order: list.New(),
		index: make(map[string]*list.Element),
	}
	c.items.OnEvicted(func(key string, v any) {
		if entry, ok := v.(cached); ok {
			c.forget(key, entry.slot)
		}
	})
	return c
}

func (c *vectorCache) get(key string) ([]float32, bool) {
	raw, ok := c.items.Get(key)
	if !ok {
		return nil, false
	}
	entry, ok := raw.(cached)
	return entry.vec, ok
}

func (c *vectorCache) set(key string, vec []float32) {
	var evicted []string

	c.mu.Lock()
	slot, ok := c.index[key]
	if !ok {
		for c.order.Len() >= c.max {
			front := c.order.Front()
			oldest := front.Value.(string)
			c.order.Remove(front)
			delete(c.index, oldest)
			evicted = append(evicted, oldest)
		}
		slot = c.order.PushBack(key)
		c.index[key] = slot
	}
	c.items.SetDefault(key, cached{vec: vec, slot: slot})
	c.mu.Unlock()

	// Delete fires OnEvicted, which takes c.mu, so it runs unlocked. A key set again
	// by another goroutine in the meantime is kept.
	for _, k := range evicted {
		if c.tracked(k) {
			continue
		}
		c.items.Delete(k)
	}
}

func (c *vectorCache) tracked(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.index[key]
	return ok
}

// forget drops key from the insertion order if slot is still its current one.
func (c *vectorCache) forget(key string, slot *list.Element) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok && el == slot {
		c.order.Remove(el)
		delete(c.index, key)
	}
}

func (c *vectorCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
