package catalog

import (
	"fmt"
	"slices"
)

type AlbumSummary struct {
	ID         string `json:"deezer_id"`
	Title      string `json:"title"`
	ArtistName string `json:"artist_name"`
	CoverURL   string `json:"cover_url"`
}

type Track struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	DurationSeconds int    `json:"duration"`
	Position        int    `json:"track_position"`
}

type AlbumDetail struct {
	AlbumSummary
	ArtistID    string  `json:"artist_id"`
	ReleaseDate string  `json:"release_date"`
	Tracks      []Track `json:"tracks"`
}

// SortedTracks returns the tracks ordered by position. The catalog does not
// guarantee wire order, so array order must never be trusted.
func (d AlbumDetail) SortedTracks() []Track {
	out := slices.Clone(d.Tracks)
	slices.SortStableFunc(out, func(a, b Track) int { return a.Position - b.Position })
	return out
}

func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
