package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/xeptore/flaw/v8"

	"github.com/intunehq/intune/catalog"
	"github.com/intunehq/intune/errutil"
	"github.com/intunehq/intune/httputil"
)

type SearchResult struct {
	Query   string                 `json:"query"`
	Page    int                    `json:"page"`
	Total   int                    `json:"total"`
	Results []catalog.AlbumSummary `json:"results"`
}

func (c *Client) SearchAlbums(ctx context.Context, query string, page, limit int) (*SearchResult, error) {
	params := make(url.Values, 3)
	params.Set("q", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))

	respBytes, err := c.perform(ctx, http.MethodGet, "/v1/search/albums", params, nil)
	if nil != err {
		return nil, err
	}
	return decode[SearchResult](respBytes, flaw.P{"operation": "search_albums", "query": query})
}

func (c *Client) AlbumDetail(ctx context.Context, albumID string) (*catalog.AlbumDetail, error) {
	respBytes, err := c.perform(ctx, http.MethodGet, "/v1/albums/"+albumID, nil, nil)
	if nil != err {
		return nil, err
	}
	return decode[catalog.AlbumDetail](respBytes, flaw.P{"operation": "album_detail", "album_id": albumID})
}

func (c *Client) RandomAlbums(ctx context.Context, count int) ([]catalog.AlbumSummary, error) {
	params := make(url.Values, 1)
	params.Set("count", strconv.Itoa(count))

	respBytes, err := c.perform(ctx, http.MethodGet, "/v1/albums/random", params, nil)
	if nil != err {
		return nil, err
	}
	albums, err := decode[[]catalog.AlbumSummary](respBytes, flaw.P{"operation": "random_albums"})
	if nil != err {
		return nil, err
	}
	return *albums, nil
}

func (c *Client) MyAlbums(ctx context.Context) ([]catalog.AlbumSummary, error) {
	respBytes, err := c.perform(ctx, http.MethodGet, "/v1/me/albums", nil, nil)
	if nil != err {
		return nil, err
	}
	albums, err := decode[[]catalog.AlbumSummary](respBytes, flaw.P{"operation": "my_albums"})
	if nil != err {
		return nil, err
	}
	return *albums, nil
}

func (c *Client) AddAlbum(ctx context.Context, albumID string) error {
	respBytes, err := c.perform(ctx, http.MethodPost, "/v1/albums/"+albumID+"/add", nil, nil)
	if nil != err {
		return err
	}
	return rejectionToError(respBytes)
}

func (c *Client) RemoveAlbum(ctx context.Context, albumID string) error {
	respBytes, err := c.perform(ctx, http.MethodPost, "/v1/albums/"+albumID+"/remove", nil, nil)
	if nil != err {
		return err
	}
	return rejectionToError(respBytes)
}

func (c *Client) Rate(ctx context.Context, albumID string, rating int) error {
	body := struct {
		Rating int `json:"rating"`
	}{Rating: rating}
	respBytes, err := c.perform(ctx, http.MethodPost, "/v1/albums/"+albumID+"/rate", nil, body)
	if nil != err {
		return err
	}
	return rejectionToError(respBytes)
}

// Rating fetches the caller's rating of an album. Absence is reported through
// the boolean: both a JSON null and a zero value mean "unrated", never a
// zero-star rating.
func (c *Client) Rating(ctx context.Context, albumID string) (int, bool, error) {
	respBytes, err := c.perform(ctx, http.MethodGet, "/v1/albums/"+albumID+"/rating", nil, nil)
	if nil != err {
		return 0, false, err
	}

	v := gjson.GetBytes(respBytes, "rating")
	switch {
	case !v.Exists(), v.Type == gjson.Null:
		return 0, false, nil
	case v.Type == gjson.Number:
		if n := int(v.Int()); n >= 1 && n <= 5 {
			return n, true, nil
		}
		return 0, false, nil
	default:
		flawP := flaw.P{"operation": "get_rating", "album_id": albumID, "response_body": string(respBytes)}
		return 0, false, flaw.From(fmt.Errorf("unexpected rating payload type %s", v.Type)).Append(flawP)
	}
}

func (c *Client) RatedAlbums(ctx context.Context) ([]catalog.AlbumSummary, error) {
	respBytes, err := c.perform(ctx, http.MethodGet, "/v1/me/rated-albums", nil, nil)
	if nil != err {
		return nil, err
	}
	albums, err := decode[[]catalog.AlbumSummary](respBytes, flaw.P{"operation": "rated_albums"})
	if nil != err {
		return nil, err
	}
	return *albums, nil
}

func (c *Client) RemoveRating(ctx context.Context, albumID string) error {
	respBytes, err := c.perform(ctx, http.MethodDelete, "/v1/albums/"+albumID+"/rating", nil, nil)
	if nil != err {
		return err
	}
	return rejectionToError(respBytes)
}

// FetchCover downloads raw cover art bytes. Cover URLs point at a CDN, not the
// service base URL, so this bypasses the path join and the cookie credential is
// simply ignored there.
func (c *Client) FetchCover(ctx context.Context, coverURL string) (b []byte, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if nil != err {
		if errutil.IsContext(ctx) {
			return nil, ctx.Err()
		}
		flawP := flaw.P{"url": coverURL, "err_debug_tree": errutil.Tree(err).FlawP()}
		return nil, flaw.From(fmt.Errorf("failed to create cover request: %v", err)).Append(flawP)
	}

	resp, err := c.http.Do(req)
	if nil != err {
		switch {
		case errutil.IsContext(ctx):
			return nil, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			return nil, context.DeadlineExceeded
		default:
			return nil, newNetworkError(err)
		}
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr && nil == err {
			flawP := flaw.P{"url": coverURL, "err_debug_tree": errutil.Tree(closeErr).FlawP()}
			err = flaw.From(fmt.Errorf("failed to close cover response body: %v", closeErr)).Append(flawP)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, newServerError(resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return httputil.ReadResponseBody(ctx, resp)
}

// rejectionToError maps a 2xx mutation response carrying {ok:false, message}
// to a server rejection, as some deployments report predicate failures without
// an error status.
func rejectionToError(respBytes []byte) error {
	if ok, message := httputil.RejectionMessage(respBytes); !ok {
		if message == "" {
			message = "request rejected"
		}
		return newServerError(http.StatusOK, message)
	}
	return nil
}
