package query

import (
	"sync"
	"sync/atomic"

	"github.com/golang/groupcache/lru"
	"github.com/golang/groupcache/singleflight"
)

// DefaultCacheSize bounds the cache shared by compilers built without WithCache.
const DefaultCacheSize = 128

// Cache memoizes query parses by exact query bytes, client encoding and
// dialect. Entries are immutable once stored. Failed parses are not stored:
// they are handed to the callers waiting on that parse and recomputed on the
// next lookup, which fails the same way because query text never changes.
//
// A Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex // guards entries; lru.Cache reorders on Get
	entries *lru.Cache
	flight  singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Hits    int64
	Misses  int64
	Entries int
}

type cacheKey struct {
	dialect  Dialect
	encoding string
	query    string
}

func (k cacheKey) flightKey() string {
	return k.dialect.String() + "\x00" + k.encoding + "\x00" + k.query
}

// NewCache returns a cache holding at most maxEntries parses, evicting the
// least recently used. maxEntries <= 0 means no limit.
func NewCache(maxEntries int) *Cache {
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &Cache{entries: lru.New(maxEntries)}
}

// Lookup returns the parse of query under dialect d, parsing it on a miss.
func (c *Cache) Lookup(d Dialect, query []byte, encoding string) (*ParseResult, error) {
	res, _, err := c.lookup(d, query, encoding)
	return res, err
}

// lookup also reports whether this call did the parsing.
func (c *Cache) lookup(d Dialect, query []byte, encoding string) (*ParseResult, bool, error) {
	key := cacheKey{dialect: d, encoding: encoding, query: string(query)}
	if res, ok := c.get(key); ok {
		c.hits.Add(1)
		return res, false, nil
	}

	parsed := false
	v, err := c.flight.Do(key.flightKey(), func() (interface{}, error) {
		// Another flight may have stored it between get and Do.
		if res, ok := c.get(key); ok {
			c.hits.Add(1)
			return res, nil
		}

		c.misses.Add(1)
		parsed = true
		res, err := d.parseIn([]byte(key.query), key.encoding)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries.Add(key, res)
		c.mu.Unlock()
		return res, nil
	})
	if err != nil {
		return nil, parsed, err
	}
	return v.(*ParseResult), parsed, nil
}

func (c *Cache) get(key cacheKey) (*ParseResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*ParseResult), true
}

// Len returns the number of cached parses.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Stats returns the cache counters.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.Len(),
	}
}

// Purge drops every cached parse. Counters are kept.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Clear()
}
