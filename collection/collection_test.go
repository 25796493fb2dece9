package collection_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intunehq/intune/catalog"
	"github.com/intunehq/intune/collection"
	"github.com/intunehq/intune/log"
)

type fakeRemote struct {
	mu        sync.Mutex
	saved     map[string]struct{}
	addErr    error
	removeErr error
	listErr   error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		mu:        sync.Mutex{},
		saved:     make(map[string]struct{}),
		addErr:    nil,
		removeErr: nil,
		listErr:   nil,
	}
}

func (r *fakeRemote) MyAlbums(_ context.Context) ([]catalog.AlbumSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if nil != r.listErr {
		return nil, r.listErr
	}
	out := make([]catalog.AlbumSummary, 0, len(r.saved))
	for id := range r.saved {
		out = append(out, catalog.AlbumSummary{ID: id, Title: "Album " + id, ArtistName: "Artist", CoverURL: ""})
	}
	return out, nil
}

func (r *fakeRemote) AddAlbum(_ context.Context, albumID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if nil != r.addErr {
		return r.addErr
	}
	r.saved[albumID] = struct{}{}
	return nil
}

func (r *fakeRemote) RemoveAlbum(_ context.Context, albumID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if nil != r.removeErr {
		return r.removeErr
	}
	delete(r.saved, albumID)
	return nil
}

func album(id, title string) catalog.AlbumSummary {
	return catalog.AlbumSummary{ID: id, Title: title, ArtistName: "Artist " + id, CoverURL: ""}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func newManager(t *testing.T, remote *fakeRemote) *collection.Manager {
	t.Helper()
	return collection.NewManager(remote, log.NewPacked(testWriter{t}))
}

func TestAddConfirms(t *testing.T) {
	t.Parallel()
	remote := newFakeRemote()
	m := newManager(t, remote)

	require.NoError(t, m.Add(context.Background(), album("1", "Abbey Road")))
	assert.True(t, m.IsSaved("1"))

	saved := m.Saved()
	require.Len(t, saved, 1)
	assert.Equal(t, "Abbey Road", saved[0].Title)
}

func TestAddRollsBackOnRejection(t *testing.T) {
	t.Parallel()
	remote := newFakeRemote()
	remote.addErr = errors.New("album not found")
	m := newManager(t, remote)

	err := m.Add(context.Background(), album("1", "Abbey Road"))
	require.Error(t, err)
	assert.False(t, m.IsSaved("1"))
	assert.Empty(t, m.Saved())
}

func TestRemoveRestoresOnRejection(t *testing.T) {
	t.Parallel()
	remote := newFakeRemote()
	m := newManager(t, remote)
	require.NoError(t, m.Add(context.Background(), album("1", "Abbey Road")))

	remote.mu.Lock()
	remote.removeErr = errors.New("temporarily unavailable")
	remote.mu.Unlock()

	err := m.Remove(context.Background(), "1")
	require.Error(t, err)
	assert.True(t, m.IsSaved("1"))

	saved := m.Saved()
	require.Len(t, saved, 1)
	assert.Equal(t, "Abbey Road", saved[0].Title)
}

func TestRemoveUnknownAlbumIsHarmless(t *testing.T) {
	t.Parallel()
	remote := newFakeRemote()
	m := newManager(t, remote)

	require.NoError(t, m.Remove(context.Background(), "404"))
	assert.False(t, m.IsSaved("404"))
}

func TestRefreshReplacesMirror(t *testing.T) {
	t.Parallel()
	remote := newFakeRemote()
	remote.saved["2"] = struct{}{}
	m := newManager(t, remote)
	require.NoError(t, m.Add(context.Background(), album("1", "Abbey Road")))

	remote.mu.Lock()
	delete(remote.saved, "1")
	remote.mu.Unlock()

	require.NoError(t, m.Refresh(context.Background()))
	assert.False(t, m.IsSaved("1"))
	assert.True(t, m.IsSaved("2"))
}

func TestRefreshFailureKeepsMirror(t *testing.T) {
	t.Parallel()
	remote := newFakeRemote()
	m := newManager(t, remote)
	require.NoError(t, m.Add(context.Background(), album("1", "Abbey Road")))

	remote.mu.Lock()
	remote.listErr = errors.New("catalog unavailable")
	remote.mu.Unlock()

	require.Error(t, m.Refresh(context.Background()))
	assert.True(t, m.IsSaved("1"))
}

func TestSavedIsSortedByTitle(t *testing.T) {
	t.Parallel()
	remote := newFakeRemote()
	m := newManager(t, remote)
	require.NoError(t, m.Add(context.Background(), album("1", "Zuma")))
	require.NoError(t, m.Add(context.Background(), album("2", "Abbey Road")))
	require.NoError(t, m.Add(context.Background(), album("3", "Marquee Moon")))

	saved := m.Saved()
	require.Len(t, saved, 3)
	assert.Equal(t, []string{"Abbey Road", "Marquee Moon", "Zuma"}, []string{saved[0].Title, saved[1].Title, saved[2].Title})
}

func TestConcurrentTogglesOnSameAlbumSerialize(t *testing.T) {
	t.Parallel()
	remote := newFakeRemote()
	m := newManager(t, remote)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Add(context.Background(), album("1", "Abbey Road"))
			_ = m.Remove(context.Background(), "1")
		}()
	}
	wg.Wait()

	// Mirror and server agree once everything settles.
	remote.mu.Lock()
	_, remoteSaved := remote.saved["1"]
	remote.mu.Unlock()
	assert.Equal(t, remoteSaved, m.IsSaved("1"))
}

func TestClear(t *testing.T) {
	t.Parallel()
	remote := newFakeRemote()
	m := newManager(t, remote)
	require.NoError(t, m.Add(context.Background(), album("1", "Abbey Road")))

	m.Clear()
	assert.False(t, m.IsSaved("1"))
	assert.Empty(t, m.Saved())
}
