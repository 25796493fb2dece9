package catalog

import (
	"strings"

	"github.com/samber/lo"
)

type SearchBy string

const (
	SearchByAlbum  SearchBy = "album"
	SearchByArtist SearchBy = "artist"
	SearchBySong   SearchBy = "song"
)

func (s SearchBy) Valid() bool {
	switch s {
	case SearchByAlbum, SearchByArtist, SearchBySong:
		return true
	default:
		return false
	}
}

// Filter narrows albums by a case-insensitive substring match on the field
// selected by `by`. It is purely local and independent of any catalog call.
func Filter(albums []AlbumSummary, by SearchBy, term string) []AlbumSummary {
	needle := strings.ToLower(term)
	return lo.Filter(albums, func(a AlbumSummary, _ int) bool {
		switch by {
		case SearchByArtist:
			return strings.Contains(strings.ToLower(a.ArtistName), needle)
		case SearchByAlbum, SearchBySong:
			return strings.Contains(strings.ToLower(a.Title), needle)
		default:
			return true
		}
	})
}
