package cache

import (
	"sync"
	"time"

	"github.com/karlseguin/ccache/v3"

	"github.com/intunehq/intune/catalog"
)

var (
	DefaultRandomSetTTL = 1 * time.Hour
	DefaultCoverTTL     = 1 * time.Hour
)

type Cache struct {
	RandomAlbums RandomAlbumsCache
	Covers       CoversCache
}

func New() *Cache {
	randomAlbumsCache := ccache.New(
		ccache.Configure[[]catalog.AlbumSummary]().
			MaxSize(10).
			GetsPerPromote(3).
			ItemsToPrune(1),
	)

	coversCache := ccache.New(
		ccache.Configure[[]byte]().
			MaxSize(100).
			GetsPerPromote(3).
			ItemsToPrune(1),
	)

	return &Cache{
		RandomAlbums: RandomAlbumsCache{
			c:   randomAlbumsCache,
			mux: sync.Mutex{},
		},
		Covers: CoversCache{
			c:   coversCache,
			mux: sync.Mutex{},
		},
	}
}

type RandomAlbumsCache struct {
	c   *ccache.Cache[[]catalog.AlbumSummary]
	mux sync.Mutex
}

func (c *RandomAlbumsCache) Fetch(k string, ttl time.Duration, fetch func() ([]catalog.AlbumSummary, error)) (*ccache.Item[[]catalog.AlbumSummary], error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.c.Fetch(k, ttl, fetch)
}

type CoversCache struct {
	c   *ccache.Cache[[]byte]
	mux sync.Mutex
}

func (c *CoversCache) Fetch(k string, ttl time.Duration, fetch func() ([]byte, error)) (*ccache.Item[[]byte], error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.c.Fetch(k, ttl, fetch)
}
