package catalog

import "slices"

// FallbackAlbums is the fixed sample set shown when the query is empty or the
// catalog is unreachable.
func FallbackAlbums() []AlbumSummary {
	return slices.Clone(fallbackAlbums)
}

var fallbackAlbums = []AlbumSummary{
	{ID: "1", Title: "Abbey Road", ArtistName: "The Beatles", CoverURL: "/assets/abbeyroad.jpeg"},
	{ID: "2", Title: "Is This It", ArtistName: "The Strokes", CoverURL: "/assets/isthisit.png"},
	{ID: "3", Title: "Fleetwood Mac", ArtistName: "Fleetwood Mac", CoverURL: "/assets/fleetwoodmac.png"},
	{ID: "4", Title: "The Queen is Dead", ArtistName: "The Smiths", CoverURL: "/assets/theSmiths.jpg"},
	{ID: "5", Title: "Being Funny in a Foreign Language", ArtistName: "The 1975", CoverURL: "/assets/the1975.jpeg"},
	{ID: "6", Title: "Static & Silence", ArtistName: "The Sundays", CoverURL: "/assets/sundays.jpg"},
}
