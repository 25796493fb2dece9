package covers

import (
	"context"

	"github.com/intunehq/intune/cache"
	"github.com/intunehq/intune/config"
)

type Fetcher interface {
	FetchCover(ctx context.Context, coverURL string) ([]byte, error)
}

// Loader serves cover art through the shared byte cache so repeated views of
// the same album do not refetch from the CDN.
type Loader struct {
	cache  *cache.Cache
	remote Fetcher
}

func NewLoader(c *cache.Cache, remote Fetcher) *Loader {
	return &Loader{cache: c, remote: remote}
}

func (l *Loader) Load(ctx context.Context, coverURL string) ([]byte, error) {
	if coverURL == "" {
		return nil, nil
	}
	item, err := l.cache.Covers.Fetch(coverURL, cache.DefaultCoverTTL, func() ([]byte, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, config.CoverDownloadTimeout)
		defer cancel()
		return l.remote.FetchCover(fetchCtx, coverURL)
	})
	if nil != err {
		return nil, err
	}
	return item.Value(), nil
}
