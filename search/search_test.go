package search_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intunehq/intune/api"
	"github.com/intunehq/intune/cache"
	"github.com/intunehq/intune/catalog"
	"github.com/intunehq/intune/config"
	"github.com/intunehq/intune/log"
	"github.com/intunehq/intune/search"
)

type fakeRemote struct {
	mu        sync.Mutex
	gates     map[string]chan struct{}
	results   map[string][]catalog.AlbumSummary
	failures  map[string]error
	random    []catalog.AlbumSummary
	randomErr error
	calls     []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		mu:        sync.Mutex{},
		gates:     make(map[string]chan struct{}),
		results:   make(map[string][]catalog.AlbumSummary),
		failures:  make(map[string]error),
		random:    nil,
		randomErr: nil,
		calls:     nil,
	}
}

// gate makes responses for query block until the returned release function is
// called, so tests can decide response arrival order.
func (r *fakeRemote) gate(query string) func() {
	ch := make(chan struct{})
	r.mu.Lock()
	r.gates[query] = ch
	r.mu.Unlock()
	return func() { close(ch) }
}

func (r *fakeRemote) SearchAlbums(ctx context.Context, query string, page, limit int) (*api.SearchResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, query)
	gate := r.gates[query]
	results := r.results[query]
	failure := r.failures[query]
	r.mu.Unlock()

	if nil != gate {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if nil != failure {
		return nil, failure
	}
	return &api.SearchResult{Query: query, Page: page, Total: len(results), Results: results}, nil
}

func (r *fakeRemote) RandomAlbums(_ context.Context, _ int) ([]catalog.AlbumSummary, error) {
	if nil != r.randomErr {
		return nil, r.randomErr
	}
	return r.random, nil
}

func (r *fakeRemote) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func album(id, title string) catalog.AlbumSummary {
	return catalog.AlbumSummary{ID: id, Title: title, ArtistName: "Artist " + id, CoverURL: ""}
}

func newController(t *testing.T, remote *fakeRemote, opts search.Options) *search.Controller {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if opts.PageLimit == 0 {
		opts.PageLimit = 5
	}
	if opts.RandomCount == 0 {
		opts.RandomCount = 6
	}
	if opts.QuietPeriod == 0 {
		opts.QuietPeriod = 10 * time.Millisecond
	}
	return search.NewController(ctx, remote, cache.New(), opts, log.NewPacked(testWriter{t}))
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestInitialResultsAreDefaultSet(t *testing.T) {
	t.Parallel()
	remote := newFakeRemote()
	c := newController(t, remote, search.Options{DefaultSet: config.DefaultAlbumsBuiltin}) //nolint:exhaustruct

	assert.Equal(t, catalog.FallbackAlbums(), c.Results())
	assert.Zero(t, remote.callCount())
}

func TestEmptyQuerySkipsNetwork(t *testing.T) {
	t.Parallel()
	remote := newFakeRemote()
	remote.results["radiohead"] = []catalog.AlbumSummary{album("1", "OK Computer")}
	c := newController(t, remote, search.Options{DefaultSet: config.DefaultAlbumsBuiltin}) //nolint:exhaustruct

	c.SetQuery("radiohead")
	c.Flush()
	require.Len(t, c.Results(), 1)

	c.SetQuery("   ")
	assert.Equal(t, catalog.FallbackAlbums(), c.Results())
	assert.Equal(t, 1, remote.callCount())
}

func TestDebounceCollapsesEdits(t *testing.T) {
	t.Parallel()
	remote := newFakeRemote()
	remote.results["radiohead"] = []catalog.AlbumSummary{album("1", "OK Computer")}
	c := newController(t, remote, search.Options{DefaultSet: config.DefaultAlbumsBuiltin, QuietPeriod: 25 * time.Millisecond}) //nolint:exhaustruct

	c.SetQuery("r")
	c.SetQuery("ra")
	c.SetQuery("radiohead")

	assert.Eventually(t, func() bool {
		results := c.Results()
		return len(results) == 1 && results[0].ID == "1"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, remote.callCount())
}

func TestLatestWinsDiscardsStaleResponse(t *testing.T) {
	t.Parallel()
	remote := newFakeRemote()
	remote.results["slow"] = []catalog.AlbumSummary{album("1", "Slow Album")}
	remote.results["fast"] = []catalog.AlbumSummary{album("2", "Fast Album")}
	releaseSlow := remote.gate("slow")
	c := newController(t, remote, search.Options{DefaultSet: config.DefaultAlbumsBuiltin}) //nolint:exhaustruct

	var updates sync.WaitGroup

	c.SetQuery("slow")
	updates.Add(1)
	go func() {
		defer updates.Done()
		c.Flush()
	}()

	// The older request must be on the wire before the newer query supersedes
	// it, otherwise the generation bump would simply cancel its dispatch.
	require.Eventually(t, func() bool { return remote.callCount() == 1 }, time.Second, time.Millisecond)

	// The newer query completes while the older one is still in flight.
	c.SetQuery("fast")
	c.Flush()
	results := c.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "2", results[0].ID)

	releaseSlow()
	updates.Wait()

	// The late response for the superseded query must not replace newer results.
	results = c.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "2", results[0].ID)
}

func TestFailureYieldsEmptyResultsNotStaleOnes(t *testing.T) {
	t.Parallel()
	remote := newFakeRemote()
	remote.results["good"] = []catalog.AlbumSummary{album("1", "Good Album")}
	remote.failures["bad"] = errors.New("catalog unavailable")
	c := newController(t, remote, search.Options{DefaultSet: config.DefaultAlbumsBuiltin}) //nolint:exhaustruct

	c.SetQuery("good")
	c.Flush()
	require.Len(t, c.Results(), 1)

	c.SetQuery("bad")
	c.Flush()
	assert.Empty(t, c.Results())
}

func TestVisibleAppliesLocalFilter(t *testing.T) {
	t.Parallel()
	remote := newFakeRemote()
	remote.results["road"] = []catalog.AlbumSummary{
		{ID: "1", Title: "Abbey Road", ArtistName: "The Beatles", CoverURL: ""},
		{ID: "2", Title: "The Road", ArtistName: "Abbey Lincoln", CoverURL: ""},
	}
	c := newController(t, remote, search.Options{DefaultSet: config.DefaultAlbumsBuiltin}) //nolint:exhaustruct

	c.SetQuery("road")
	c.Flush()

	byAlbum := c.Visible(catalog.SearchByAlbum)
	assert.Len(t, byAlbum, 2)

	byArtist := c.Visible(catalog.SearchByArtist)
	require.Len(t, byArtist, 1)
	assert.Equal(t, "2", byArtist[0].ID)
}

func TestRandomDefaultSetFallsBackToBuiltinOnError(t *testing.T) {
	t.Parallel()
	remote := newFakeRemote()
	remote.randomErr = errors.New("catalog unavailable")
	c := newController(t, remote, search.Options{DefaultSet: config.DefaultAlbumsRandom}) //nolint:exhaustruct

	assert.Equal(t, catalog.FallbackAlbums(), c.Results())
}

func TestRandomDefaultSet(t *testing.T) {
	t.Parallel()
	remote := newFakeRemote()
	remote.random = []catalog.AlbumSummary{album("7", "Random Pick")}
	c := newController(t, remote, search.Options{DefaultSet: config.DefaultAlbumsRandom}) //nolint:exhaustruct

	results := c.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "7", results[0].ID)
}

func TestOnUpdateFiresAfterCommit(t *testing.T) {
	t.Parallel()
	remote := newFakeRemote()
	remote.results["radiohead"] = []catalog.AlbumSummary{album("1", "OK Computer")}
	c := newController(t, remote, search.Options{DefaultSet: config.DefaultAlbumsBuiltin}) //nolint:exhaustruct

	var notified bool
	c.OnUpdate(func() { notified = true })

	c.SetQuery("radiohead")
	c.Flush()
	assert.True(t, notified)
}
