package search

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/intunehq/intune/api"
	"github.com/intunehq/intune/cache"
	"github.com/intunehq/intune/catalog"
	"github.com/intunehq/intune/config"
)

type remote interface {
	SearchAlbums(ctx context.Context, query string, page, limit int) (*api.SearchResult, error)
	RandomAlbums(ctx context.Context, count int) ([]catalog.AlbumSummary, error)
}

type Options struct {
	DefaultSet  config.DefaultAlbums
	PageLimit   int
	RandomCount int
	QuietPeriod time.Duration
}

// Controller debounces free-text catalog searches and guarantees that only
// the response belonging to the most recent query generation ever becomes
// visible. Out-of-order replies for older generations are discarded, never
// merged.
type Controller struct {
	mu         sync.Mutex
	ctx        context.Context
	remote     remote
	cache      *cache.Cache
	opts       Options
	logger     zerolog.Logger
	query      string
	results    []catalog.AlbumSummary
	generation uint64
	timer      *time.Timer
	onUpdate   func()
}

func NewController(ctx context.Context, r remote, c *cache.Cache, opts Options, logger zerolog.Logger) *Controller {
	if opts.QuietPeriod <= 0 {
		opts.QuietPeriod = config.SearchQuietPeriod
	}
	ctrl := &Controller{
		mu:         sync.Mutex{},
		ctx:        ctx,
		remote:     r,
		cache:      c,
		opts:       opts,
		logger:     logger,
		query:      "",
		results:    nil,
		generation: 0,
		timer:      nil,
		onUpdate:   nil,
	}
	ctrl.results = ctrl.defaultSet()
	return ctrl
}

// OnUpdate registers a re-render callback. It runs outside the controller
// lock, after every visible results change.
func (c *Controller) OnUpdate(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}

func (c *Controller) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

func (c *Controller) Results() []catalog.AlbumSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.results)
}

// Visible applies the local secondary filter on top of the current results.
// It is re-evaluated on every call and involves no network round trip.
func (c *Controller) Visible(by catalog.SearchBy) []catalog.AlbumSummary {
	c.mu.Lock()
	results := slices.Clone(c.results)
	query := c.query
	c.mu.Unlock()
	return catalog.Filter(results, by, query)
}

// SetQuery records a query edit. Every edit bumps the generation; an empty
// trimmed query installs the default set synchronously and skips the network
// entirely, anything else (re)arms the single debounce timer.
func (c *Controller) SetQuery(query string) {
	c.mu.Lock()
	c.generation++
	c.query = query
	if nil != c.timer {
		c.timer.Stop()
		c.timer = nil
	}

	if strings.TrimSpace(query) == "" {
		gen := c.generation
		c.mu.Unlock()
		c.commit(gen, c.defaultSet())
		return
	}

	gen := c.generation
	c.timer = time.AfterFunc(c.opts.QuietPeriod, func() { c.fire(gen) })
	c.mu.Unlock()
}

// Flush runs a pending debounced search immediately. It exists for drivers
// and tests that cannot wait out the quiet period.
func (c *Controller) Flush() {
	c.mu.Lock()
	if nil == c.timer {
		c.mu.Unlock()
		return
	}
	c.timer.Stop()
	c.timer = nil
	gen := c.generation
	query := c.query
	c.mu.Unlock()

	c.search(gen, query)
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	// A nil timer means Flush already consumed this arm.
	if gen != c.generation || nil == c.timer {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	query := c.query
	c.mu.Unlock()

	c.search(gen, query)
}

func (c *Controller) search(gen uint64, query string) {
	ctx, cancel := context.WithTimeout(c.ctx, config.SearchRequestTimeout)
	defer cancel()

	result, err := c.remote.SearchAlbums(ctx, query, 1, c.opts.PageLimit)
	if nil != err {
		c.logger.Debug().Str("query", query).Err(err).Msg("Search failed; showing empty results")
		// Stale data must not outlive a failed search: an empty set reads as
		// "no results", stale results read as an answer to the wrong query.
		c.commit(gen, []catalog.AlbumSummary{})
		return
	}
	c.commit(gen, result.Results)
}

// commit installs results only when gen is still the current generation.
// This is the latest-wins property: a slow response to an old query can
// arrive after a newer query's response and must be dropped.
func (c *Controller) commit(gen uint64, results []catalog.AlbumSummary) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.logger.Trace().Uint64("generation", gen).Msg("Discarding stale search response")
		return
	}
	c.results = results
	notify := c.onUpdate
	c.mu.Unlock()
	if nil != notify {
		notify()
	}
}

func (c *Controller) defaultSet() []catalog.AlbumSummary {
	if c.opts.DefaultSet != config.DefaultAlbumsRandom {
		return catalog.FallbackAlbums()
	}

	item, err := c.cache.RandomAlbums.Fetch("default-set", cache.DefaultRandomSetTTL, func() ([]catalog.AlbumSummary, error) {
		ctx, cancel := context.WithTimeout(c.ctx, config.RandomAlbumsRequestTimeout)
		defer cancel()
		return c.remote.RandomAlbums(ctx, c.opts.RandomCount)
	})
	if nil != err {
		c.logger.Debug().Err(err).Msg("Random album fetch failed; falling back to builtin set")
		return catalog.FallbackAlbums()
	}
	return item.Value()
}
