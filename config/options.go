package config

import "time"

var (
	SearchQuietPeriod          = 500 * time.Millisecond
	SearchRequestTimeout       = 5 * time.Second
	AlbumDetailRequestTimeout  = 5 * time.Second
	RandomAlbumsRequestTimeout = 5 * time.Second
	SessionRequestTimeout      = 5 * time.Second
	LogoutGracePeriod          = 5 * time.Second
	CollectionMutationTimeout  = 5 * time.Second
	RatingMutationTimeout      = 5 * time.Second
	CoverDownloadTimeout       = 5 * time.Second
	CollectionRefreshTimeout   = 5 * time.Second
	RatedAlbumsRequestTimeout  = 5 * time.Second
)
