package cache

import (
	lru "github.com/hashicorp/golang-lru"
)

// Cache holds immutable lookups such as on-chain proofs. Entries are never invalidated by writers,
// so only values that cannot change once observed belong here.
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
	Len() int
}

const DefaultCacheSize = 1024

type LocalCache struct {
	*lru.Cache
}

func NewLocalCache(size uint64) (Cache, error) {
	c, err := lru.New(int(size))
	if err != nil {
		return nil, err
	}
	return &LocalCache{
		c,
	}, nil
}

func (c *LocalCache) Get(key string) (interface{}, bool) {
	return c.Cache.Get(key)
}

func (c *LocalCache) Set(key string, value interface{}) {
	c.Cache.Add(key, value)
}

// NoopCache never stores anything, used when caching is disabled.
type NoopCache struct{}

func (NoopCache) Get(string) (interface{}, bool) { return nil, false }
func (NoopCache) Set(string, interface{})        {}
func (NoopCache) Len() int                       { return 0 }
