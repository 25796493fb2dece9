package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
	"github.com/xeptore/flaw/v8"

	"github.com/intunehq/intune/errutil"
)

func readResponseBody(ctx context.Context, resp *http.Response) ([]byte, error) {
	respBody, err := io.ReadAll(resp.Body)
	if nil != err {
		switch {
		case errors.Is(err, io.EOF):
			return nil, io.EOF
		case errutil.IsContext(ctx):
			return nil, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			return nil, context.DeadlineExceeded
		default:
			flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
			return nil, flaw.From(fmt.Errorf("failed to read response body: %v", err)).Append(flawP)
		}
	}
	return respBody, nil
}

func ReadResponseBody(ctx context.Context, resp *http.Response) ([]byte, error) {
	respBody, err := readResponseBody(ctx, resp)
	if nil != err {
		if errors.Is(err, io.EOF) {
			return nil, flaw.From(errors.New("unexpected empty response body"))
		}
		return nil, err
	}
	return respBody, nil
}

func ReadOptionalResponseBody(ctx context.Context, resp *http.Response) ([]byte, error) {
	respBody, err := readResponseBody(ctx, resp)
	if nil != err && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return respBody, nil
}

// ErrorMessage extracts the message of a structured {"error": "..."} rejection
// payload. It tolerates empty and non-JSON bodies and reports whether a message
// was present.
func ErrorMessage(b []byte) (string, bool) {
	if len(b) == 0 {
		return "", false
	}
	if v := gjson.GetBytes(b, "error"); v.Exists() && v.Type == gjson.String && v.Str != "" {
		return v.Str, true
	}
	return "", false
}

// RejectionMessage reads an optional {"ok": false, "message": "..."} mutation
// response. ok defaults to true for endpoints that answer with a bare 2xx.
func RejectionMessage(b []byte) (ok bool, message string) {
	if len(b) == 0 {
		return true, ""
	}
	okVal := gjson.GetBytes(b, "ok")
	if okVal.Exists() && !okVal.Bool() {
		return false, gjson.GetBytes(b, "message").Str
	}
	return true, gjson.GetBytes(b, "message").Str
}
