package collection

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/exp/maps"

	"github.com/intunehq/intune/catalog"
	"github.com/intunehq/intune/guard"
)

type remote interface {
	MyAlbums(ctx context.Context) ([]catalog.AlbumSummary, error)
	AddAlbum(ctx context.Context, albumID string) error
	RemoveAlbum(ctx context.Context, albumID string) error
}

// Manager mirrors the set of albums the user has saved. Mutations are
// optimistic: the mirror flips first, the server confirms, and a confirmed
// failure rolls the mirror back. The server stays authoritative; the mirror
// is advisory and reconciles on Refresh.
type Manager struct {
	mu     sync.Mutex
	saved  map[string]catalog.AlbumSummary
	remote remote
	keys   *guard.Keyed
	logger zerolog.Logger
}

func NewManager(r remote, logger zerolog.Logger) *Manager {
	return &Manager{
		mu:     sync.Mutex{},
		saved:  make(map[string]catalog.AlbumSummary),
		remote: r,
		keys:   guard.NewKeyed(),
		logger: logger,
	}
}

// Refresh replaces the mirror with the server's saved set.
func (m *Manager) Refresh(ctx context.Context) error {
	albums, err := m.remote.MyAlbums(ctx)
	if nil != err {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = make(map[string]catalog.AlbumSummary, len(albums))
	for _, album := range albums {
		m.saved[album.ID] = album
	}
	return nil
}

func (m *Manager) IsSaved(albumID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.saved[albumID]
	return ok
}

func (m *Manager) Saved() []catalog.AlbumSummary {
	m.mu.Lock()
	albums := maps.Values(m.saved)
	m.mu.Unlock()
	slices.SortFunc(albums, func(a, b catalog.AlbumSummary) int { return strings.Compare(a.Title, b.Title) })
	return albums
}

// Add optimistically saves the album, then confirms with the server. A
// confirmed failure rolls the optimistic mark back and surfaces the error.
// Calls for the same album serialize; different albums are independent.
func (m *Manager) Add(ctx context.Context, album catalog.AlbumSummary) error {
	return m.keys.Do(ctx, album.ID, func() error {
		m.mu.Lock()
		prev, existed := m.saved[album.ID]
		m.saved[album.ID] = album
		m.mu.Unlock()

		if err := m.remote.AddAlbum(ctx, album.ID); nil != err {
			m.mu.Lock()
			if existed {
				m.saved[album.ID] = prev
			} else {
				delete(m.saved, album.ID)
			}
			m.mu.Unlock()
			m.logger.Debug().Str("album_id", album.ID).Err(err).Msg("Add failed; rolled back optimistic save")
			return err
		}
		return nil
	})
}

// Remove is symmetric to Add: unmark first, restore the saved entry when the
// server refuses.
func (m *Manager) Remove(ctx context.Context, albumID string) error {
	return m.keys.Do(ctx, albumID, func() error {
		m.mu.Lock()
		prev, existed := m.saved[albumID]
		delete(m.saved, albumID)
		m.mu.Unlock()

		if err := m.remote.RemoveAlbum(ctx, albumID); nil != err {
			m.mu.Lock()
			if existed {
				m.saved[albumID] = prev
			}
			m.mu.Unlock()
			m.logger.Debug().Str("album_id", albumID).Err(err).Msg("Remove failed; restored optimistic unsave")
			return err
		}
		return nil
	})
}

// Clear wipes the mirror, e.g. at logout.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = make(map[string]catalog.AlbumSummary)
}
