package cache

import (
	"fmt"
	"log"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/nci/gomemcache/memcache"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// Config bounds a ResultCache. At most one of Capacity and TTL may be set;
// when neither is, the cache is unbounded for the process lifetime, which
// is acceptable because the cache is scoped to analysis runs rather than a
// long-lived server.
type Config struct {
	Capacity int           `json:"capacity" yaml:"capacity"`
	TTL      time.Duration `json:"ttl" yaml:"ttl"`

	// MemcacheURI enables a best-effort second tier shared between
	// processes, host:port. Requires Encode and Decode.
	MemcacheURI string `json:"memcache_uri" yaml:"memcache_uri"`
	Encode      func(interface{}) ([]byte, error)
	Decode      func([]byte) (interface{}, error)

	Verbose bool `json:"verbose" yaml:"verbose"`
}

type store interface {
	get(key string) (interface{}, bool)
	set(key string, value interface{})
}

type mapStore struct {
	mu      sync.RWMutex
	entries map[string]interface{}
}

func (s *mapStore) get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok
}

func (s *mapStore) set(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
}

type lruStore struct {
	cache *lru.Cache
}

func (s *lruStore) get(key string) (interface{}, bool) { return s.cache.Get(key) }
func (s *lruStore) set(key string, value interface{})  { s.cache.Add(key, value) }

type ttlStore struct {
	cache *gocache.Cache
}

func (s *ttlStore) get(key string) (interface{}, bool) { return s.cache.Get(key) }
func (s *ttlStore) set(key string, value interface{}) {
	s.cache.Set(key, value, gocache.DefaultExpiration)
}

// ResultCache keys previously computed results by canonical fingerprint,
// guaranteeing at most one computation per key within its lifetime.
type ResultCache struct {
	store   store
	group   singleflight.Group
	mc      *memcache.Client
	encode  func(interface{}) ([]byte, error)
	decode  func([]byte) (interface{}, error)
	verbose bool
}

func NewResultCache(cfg Config) (*ResultCache, error) {
	if cfg.Capacity > 0 && cfg.TTL > 0 {
		return nil, fmt.Errorf("at most one of capacity and ttl may be set")
	}

	rc := &ResultCache{
		encode:  cfg.Encode,
		decode:  cfg.Decode,
		verbose: cfg.Verbose,
	}

	switch {
	case cfg.Capacity > 0:
		c, err := lru.New(cfg.Capacity)
		if err != nil {
			return nil, err
		}
		rc.store = &lruStore{cache: c}
	case cfg.TTL > 0:
		rc.store = &ttlStore{cache: gocache.New(cfg.TTL, 2*cfg.TTL)}
	default:
		rc.store = &mapStore{entries: make(map[string]interface{})}
	}

	if len(cfg.MemcacheURI) > 0 {
		if cfg.Encode == nil || cfg.Decode == nil {
			return nil, fmt.Errorf("memcache tier requires encode and decode functions")
		}
		rc.mc = memcache.New(cfg.MemcacheURI)
	}

	return rc, nil
}

// GetOrCompute returns the cached result for key, computing it at most once.
// Concurrent callers for the same key share one computation: the first
// performs it while the rest block and then receive the same result. A
// failed computation propagates to every waiter and is not cached, so a
// later call retries cleanly.
func (rc *ResultCache) GetOrCompute(key Key, compute func() (interface{}, error)) (interface{}, error) {
	k := key.String()

	if v, ok := rc.store.get(k); ok {
		return v, nil
	}

	v, err, _ := rc.group.Do(k, func() (interface{}, error) {
		// A concurrent winner may have populated the store between our
		// miss and the flight start.
		if v, ok := rc.store.get(k); ok {
			return v, nil
		}

		if rc.mc != nil {
			if item, err := rc.mc.Get(k); err == nil {
				if v, err := rc.decode(item.Value); err == nil {
					rc.store.set(k, v)
					return v, nil
				}
			}
		}

		v, err := compute()
		if err != nil {
			return nil, err
		}
		rc.store.set(k, v)

		if rc.mc != nil {
			payload, err := rc.encode(v)
			if err == nil {
				// Best effort; memcache may not retain this anyway.
				rc.mc.Set(&memcache.Item{Key: k, Value: payload})
			} else if rc.verbose {
				log.Printf("ResultCache: encode error for %v: %v", k, err)
			}
		}

		return v, nil
	})
	return v, err
}
