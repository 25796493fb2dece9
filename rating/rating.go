package rating

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/intunehq/intune/catalog"
	"github.com/intunehq/intune/guard"
)

type remote interface {
	Rate(ctx context.Context, albumID string, rating int) error
	Rating(ctx context.Context, albumID string) (int, bool, error)
	RemoveRating(ctx context.Context, albumID string) error
	RatedAlbums(ctx context.Context) ([]catalog.AlbumSummary, error)
}

type InvalidRatingError struct {
	Value int
}

func (e *InvalidRatingError) Error() string {
	return fmt.Sprintf("rating %d is out of the 1..5 range", e.Value)
}

// Display is what the view renders for an album: a transient hover preview
// wins over the confirmed value, and absence of both means "no rating",
// never zero stars.
type Display struct {
	Value   int
	Preview bool
	Rated   bool
}

// Manager mirrors per-album confirmed ratings. At most one submission per
// album is in flight at a time; a second submission during that window is
// silently skipped, not an error, so the view can simply disable its controls.
type Manager struct {
	mu       sync.Mutex
	ratings  map[string]int
	previews map[string]int
	remote   remote
	keys     *guard.Keyed
	logger   zerolog.Logger
}

func NewManager(r remote, logger zerolog.Logger) *Manager {
	return &Manager{
		mu:       sync.Mutex{},
		ratings:  make(map[string]int),
		previews: make(map[string]int),
		remote:   r,
		keys:     guard.NewKeyed(),
		logger:   logger,
	}
}

// Fetch populates the starting display value from the server.
func (m *Manager) Fetch(ctx context.Context, albumID string) (int, bool, error) {
	value, rated, err := m.remote.Rating(ctx, albumID)
	if nil != err {
		return 0, false, err
	}

	m.mu.Lock()
	if rated {
		m.ratings[albumID] = value
	} else {
		delete(m.ratings, albumID)
	}
	m.mu.Unlock()
	return value, rated, nil
}

func (m *Manager) Confirmed(albumID string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.ratings[albumID]
	return value, ok
}

// Submit stores value as the album's rating. It reports whether the
// submission was accepted: false means another submission for the same album
// was still in flight and this one was dropped without a network call. On
// failure the last confirmed value stays in place.
func (m *Manager) Submit(ctx context.Context, albumID string, value int) (bool, error) {
	if value < 1 || value > 5 {
		return false, &InvalidRatingError{Value: value}
	}

	return m.keys.TryDo(albumID, func() error {
		if err := m.remote.Rate(ctx, albumID, value); nil != err {
			m.logger.Debug().Str("album_id", albumID).Int("rating", value).Err(err).Msg("Rating submission failed; keeping last confirmed value")
			return err
		}
		m.mu.Lock()
		m.ratings[albumID] = value
		m.mu.Unlock()
		return nil
	})
}

// Remove clears the album's rating locally and remotely, under the same
// in-flight guard as Submit.
func (m *Manager) Remove(ctx context.Context, albumID string) (bool, error) {
	return m.keys.TryDo(albumID, func() error {
		if err := m.remote.RemoveRating(ctx, albumID); nil != err {
			return err
		}
		m.mu.Lock()
		delete(m.ratings, albumID)
		m.mu.Unlock()
		return nil
	})
}

// Preview records the transient hover value. It is presentational only: it is
// never persisted and never feeds Submit.
func (m *Manager) Preview(albumID string, value int) {
	if value < 1 || value > 5 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.previews[albumID] = value
}

func (m *Manager) ClearPreview(albumID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.previews, albumID)
}

func (m *Manager) Displayed(albumID string) Display {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value, ok := m.previews[albumID]; ok {
		return Display{Value: value, Preview: true, Rated: false}
	}
	if value, ok := m.ratings[albumID]; ok {
		return Display{Value: value, Preview: false, Rated: true}
	}
	return Display{Value: 0, Preview: false, Rated: false}
}

func (m *Manager) RatedAlbums(ctx context.Context) ([]catalog.AlbumSummary, error) {
	return m.remote.RatedAlbums(ctx)
}

// Clear wipes both mirrors, e.g. at logout.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratings = make(map[string]int)
	m.previews = make(map[string]int)
}
