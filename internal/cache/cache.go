// Package cache provides the in-memory TTL cache that sits in front of the
// provider chain, so repeated reads do not pay for decryption or file I/O.
// Entries are never served past their TTL; an expired read counts as a miss
// and the caller re-fetches from the providers, overwriting the stale entry.
package cache

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/systmms/credvault/internal/metrics"
	"github.com/systmms/credvault/pkg/credential"
)

// shardCount stripes the key space so unrelated keys do not contend on one
// lock. Must be a power of two.
const shardCount = 16

type entry struct {
	cred       credential.Credential
	insertedAt time.Time
	ttl        time.Duration
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// Cache is a TTL-bounded credential cache, safe for concurrent use.
// Secrets are only ever held in memory; nothing is persisted.
type Cache struct {
	shards     [shardCount]*shard
	defaultTTL time.Duration
	recorder   *metrics.Recorder
	now        func() time.Time
}

// New creates a cache with the given default TTL. A zero or negative TTL
// disables caching entirely: Put becomes a no-op and Get always misses.
func New(defaultTTL time.Duration) *Cache {
	c := &Cache{
		defaultTTL: defaultTTL,
		recorder:   metrics.NewRecorder(),
		now:        time.Now,
	}
	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[string]entry)}
	}
	return c
}

// SetClock overrides the cache's time source. Tests use it to cross TTL
// boundaries without sleeping.
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

func (c *Cache) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()&(shardCount-1)]
}

// Get returns the cached credential for key if present and within TTL.
// An entry past its TTL is removed and reported as a miss.
func (c *Cache) Get(key string) (credential.Credential, bool) {
	if c.defaultTTL <= 0 {
		c.recorder.RecordCacheRequest("miss")
		return credential.Credential{}, false
	}

	s := c.shardFor(key)
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		c.recorder.RecordCacheRequest("miss")
		return credential.Credential{}, false
	}

	if c.now().Sub(e.insertedAt) >= e.ttl {
		s.mu.Lock()
		// Re-check under the write lock; another goroutine may have
		// refreshed the entry between the RUnlock and here.
		if cur, still := s.entries[key]; still && c.now().Sub(cur.insertedAt) >= cur.ttl {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		c.recorder.RecordCacheRequest("expired")
		return credential.Credential{}, false
	}

	c.recorder.RecordCacheRequest("hit")
	return e.cred, true
}

// Put stores a credential under the cache's default TTL.
func (c *Cache) Put(key string, cred credential.Credential) {
	c.PutTTL(key, cred, c.defaultTTL)
}

// PutTTL stores a credential with an explicit TTL, overwriting any existing
// entry for the key.
func (c *Cache) PutTTL(key string, cred credential.Credential, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	s := c.shardFor(key)
	s.mu.Lock()
	s.entries[key] = entry{cred: cred, insertedAt: c.now(), ttl: ttl}
	s.mu.Unlock()
}

// Invalidate removes the entry for key, if any. Set and Delete call this
// synchronously before returning so a subsequent Get cannot observe stale
// data.
func (c *Cache) Invalidate(key string) {
	s := c.shardFor(key)
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Flush removes every entry.
func (c *Cache) Flush() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.entries = make(map[string]entry)
		s.mu.Unlock()
	}
}

// Len returns the number of resident entries, counting expired entries that
// have not yet been read out.
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}
