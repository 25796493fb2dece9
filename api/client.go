package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/xeptore/flaw/v8"

	"github.com/intunehq/intune/errutil"
	"github.com/intunehq/intune/httputil"
	"github.com/intunehq/intune/localfs"
)

// Client is the typed request wrapper around the catalog & account service.
// Every call carries the cookie-based session credential. It performs no
// retries; retry policy belongs to the caller.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  zerolog.Logger
}

func New(baseURL string, logger zerolog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if nil != err {
		flawP := flaw.P{"base_url": baseURL, "err_debug_tree": errutil.Tree(err).FlawP()}
		return nil, flaw.From(fmt.Errorf("failed to parse base URL: %v", err)).Append(flawP)
	}

	jar, err := cookiejar.New(nil)
	if nil != err {
		flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
		return nil, flaw.From(fmt.Errorf("failed to create cookie jar: %v", err)).Append(flawP)
	}

	return &Client{
		baseURL: u,
		http:    &http.Client{Jar: jar}, //nolint:exhaustruct
		logger:  logger,
	}, nil
}

// ExportCookies snapshots the session credential for persistence across runs.
func (c *Client) ExportCookies() []localfs.Cookie {
	cookies := c.http.Jar.Cookies(c.baseURL)
	out := make([]localfs.Cookie, len(cookies))
	for i, v := range cookies {
		out[i] = localfs.Cookie{Name: v.Name, Value: v.Value}
	}
	return out
}

func (c *Client) ImportCookies(cookies []localfs.Cookie) {
	restored := make([]*http.Cookie, len(cookies))
	for i, v := range cookies {
		restored[i] = &http.Cookie{Name: v.Name, Value: v.Value} //nolint:exhaustruct
	}
	c.http.Jar.SetCookies(c.baseURL, restored)
}

// ClearCookies drops the session credential, e.g. after logout.
func (c *Client) ClearCookies() {
	jar, err := cookiejar.New(nil)
	if nil != err {
		panic(fmt.Sprintf("cookiejar.New with nil options must not fail: %v", err))
	}
	c.http.Jar = jar
}

func (c *Client) perform(ctx context.Context, method, path string, query url.Values, body any) (respBytes []byte, err error) {
	reqURL := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		reqURL.RawQuery = query.Encode()
	}
	reqURLStr := reqURL.String()
	flawP := flaw.P{"method": method, "url": reqURLStr}

	var reqBody *bytes.Buffer
	if nil != body {
		b, err := json.Marshal(body)
		if nil != err {
			flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
			return nil, flaw.From(fmt.Errorf("failed to encode request body: %v", err)).Append(flawP)
		}
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURLStr, reqBody)
	if nil != err {
		if errutil.IsContext(ctx) {
			return nil, ctx.Err()
		}
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return nil, flaw.From(fmt.Errorf("failed to create request: %v", err)).Append(flawP)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if nil != err {
		switch {
		case errutil.IsContext(ctx):
			return nil, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			return nil, context.DeadlineExceeded
		default:
			c.logger.Debug().Str("method", method).Str("url", reqURLStr).Err(err).Msg("Request failed before a response arrived")
			return nil, newNetworkError(err)
		}
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			flawP["err_debug_tree"] = errutil.Tree(closeErr).FlawP()
			closeErr = flaw.From(fmt.Errorf("failed to close response body: %v", closeErr)).Append(flawP)
			switch {
			case nil == err:
				err = closeErr
			case errutil.IsFlaw(err):
				err = flaw.From(errors.New("request failed")).Join(closeErr)
			default:
				// Keep the original call error; the close failure is diagnostics only.
				c.logger.Warn().Err(closeErr).Msg("Failed to close response body")
			}
		}
	}()
	flawP["response"] = errutil.HTTPResponseFlawPayload(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBytes, err := httputil.ReadOptionalResponseBody(ctx, resp)
		if nil != err {
			return nil, err
		}
		if msg, ok := httputil.ErrorMessage(respBytes); ok {
			return nil, newServerError(resp.StatusCode, msg)
		}
		return nil, newServerError(resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	respBytes, err = httputil.ReadOptionalResponseBody(ctx, resp)
	if nil != err {
		return nil, err
	}
	return respBytes, nil
}

func decode[T any](b []byte, flawP flaw.P) (*T, error) {
	var out T
	if err := json.Unmarshal(b, &out); nil != err {
		flawP["response_body"] = string(b)
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return nil, flaw.From(fmt.Errorf("failed to decode response body: %v", err)).Append(flawP)
	}
	return &out, nil
}
