// Package cache implements the per-service, content-addressed, append-only
// response cache of spec §4.2: never evicts, first-insert-wins, concurrent
// reads, serialized writes, hit-rate counters for diagnostics.
package cache

import (
	"encoding/binary"
	"sort"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Status is the outcome recorded alongside a cached entry.
type Status int

const (
	StatusSuccess Status = iota
	StatusNotFound
	StatusError
)

// Param is one (name, value) request parameter. Pagination keys (offset,
// limit) must be excluded by the caller before building a Key — they are
// not part of the request's logical identity (spec §4.2).
type Param struct {
	Name  string
	Value string
}

// Key identifies a cached request: an entity kind, an optional id, an
// optional resource, and a sorted parameter set.
type Key struct {
	Entity   string
	ID       string
	Resource string
	Params   []Param
}

// Digest returns a stable, order-independent fixed-size identity for k,
// suitable as a map key for callers (e.g. Mediator's per-query waiter
// channels) that need to key on a Key's full identity rather than just the
// cache's own internal map.
func (k Key) Digest() [32]byte { return k.digest() }

// digest returns a stable, order-independent fixed-size key for k.
func (k Key) digest() [32]byte {
	params := append([]Param(nil), k.Params...)
	sort.Slice(params, func(i, j int) bool {
		if params[i].Name != params[j].Name {
			return params[i].Name < params[j].Name
		}
		return params[i].Value < params[j].Value
	})

	h, _ := blake2b.New256(nil)
	writeString(h, k.Entity)
	writeString(h, k.ID)
	writeString(h, k.Resource)
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(params)))
	h.Write(lenBuf[:])
	for _, p := range params {
		writeString(h, p.Name)
		writeString(h, p.Value)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func writeString(h interface{ Write([]byte) (int, error) }, s string) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(s)))
	h.Write(lenBuf[:])
	h.Write([]byte(s))
}

// Entry is a cached response: a parsed value plus its outcome status.
type Entry struct {
	Value  any
	Status Status
}

// Cache is one per external service. Zero value is not usable; use New.
type Cache struct {
	mu      sync.RWMutex
	entries map[[32]byte]Entry
	hits    uint64
	misses  uint64
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[[32]byte]Entry)}
}

// Lookup is a pure read. The returned bool reports presence.
func (c *Cache) Lookup(key Key) (Entry, bool) {
	d := key.digest()
	c.mu.RLock()
	e, ok := c.entries[d]
	c.mu.RUnlock()

	c.mu.Lock()
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
	return e, ok
}

// Insert appends entry under key. Repeated inserts of the same key keep
// the first value inserted — the cache never overwrites.
func (c *Cache) Insert(key Key, entry Entry) {
	d := key.digest()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[d]; exists {
		return
	}
	c.entries[d] = entry
}

// Stats reports cumulative hit/miss counts for diagnostics.
type Stats struct {
	Hits, Misses uint64
}

func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Hits: c.hits, Misses: c.misses}
}

// Len reports the number of distinct cached keys.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
