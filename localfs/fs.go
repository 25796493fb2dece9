package localfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/xeptore/flaw/v8"

	"github.com/intunehq/intune/errutil"
	"github.com/intunehq/intune/must"
)

type Dir string

func From(d string) Dir {
	return Dir(d)
}

func (dir Dir) path() string {
	return string(dir)
}

func (dir Dir) Session() SessionFile {
	return SessionFile{InfoFile[SessionSnapshot]{Path: filepath.Join(dir.path(), "session.json")}}
}

// Friends returns the friend directory file of owner. Each account keeps its
// own directory, so the file name is namespaced by the owning username.
func (dir Dir) Friends(owner string) FriendsFile {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, owner)
	return FriendsFile{InfoFile[FriendsContent]{Path: filepath.Join(dir.path(), "friends-"+safe+".json")}}
}

type SessionFile struct {
	InfoFile[SessionSnapshot]
}

type SessionSnapshot struct {
	User    SessionUser `json:"user"`
	Cookies []Cookie    `json:"cookies"`
}

type SessionUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type FriendsFile struct {
	InfoFile[FriendsContent]
}

type FriendsContent struct {
	AllUsers []string `json:"all_users"`
	Friends  []string `json:"friends"`
}

type InfoFile[T any] struct {
	Path string
}

func (f InfoFile[T]) Read() (*T, error) {
	return readInfoFile(f)
}

func (f InfoFile[T]) Write(v T) error {
	return writeInfoFile(f, v)
}

func (f InfoFile[T]) Remove() error {
	if err := os.Remove(f.Path); nil != err {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		flawP := flaw.P{"file_path": f.Path, "err_debug_tree": errutil.Tree(err).FlawP()}
		return flaw.From(fmt.Errorf("failed to remove info file: %v", err)).Append(flawP)
	}
	return nil
}

func readInfoFile[T any](file InfoFile[T]) (out *T, err error) {
	filePath := file.Path
	flawP := flaw.P{"file_path": filePath}

	f, err := os.OpenFile(filePath, os.O_RDONLY, 0o0600)
	if nil != err {
		if errors.Is(err, os.ErrNotExist) {
			return nil, os.ErrNotExist
		}
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return nil, flaw.From(fmt.Errorf("failed to open info file for read: %v", err)).Append(flawP)
	}
	defer func() {
		if closeErr := f.Close(); nil != closeErr {
			flawP["err_debug_tree"] = errutil.Tree(closeErr).FlawP()
			closeErr = flaw.From(fmt.Errorf("failed to close info file: %v", closeErr)).Append(flawP)
			if nil != err {
				err = must.BeFlaw(err).Join(closeErr)
			} else {
				err = closeErr
			}
		}
	}()

	if err := json.NewDecoder(f).Decode(&out); nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return nil, flaw.From(fmt.Errorf("failed to decode info file contents: %v", err)).Append(flawP)
	}

	return out, nil
}

func writeInfoFile[T any](file InfoFile[T], obj T) (err error) {
	filePath := file.Path
	flawP := flaw.P{"file_path": filePath}

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o0600)
	if nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return flaw.From(fmt.Errorf("failed to open info file for write: %v", err)).Append(flawP)
	}
	defer func() {
		if closeErr := f.Close(); nil != closeErr {
			flawP["err_debug_tree"] = errutil.Tree(closeErr).FlawP()
			closeErr = flaw.From(fmt.Errorf("failed to close info file: %v", closeErr)).Append(flawP)
			if nil != err {
				err = must.BeFlaw(err).Join(closeErr)
			} else {
				err = closeErr
			}
		}
	}()

	if err := json.NewEncoder(f).Encode(obj); nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return flaw.From(fmt.Errorf("failed to encode info file contents: %v", err)).Append(flawP)
	}

	if err := f.Sync(); nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return flaw.From(fmt.Errorf("failed to sync info file: %v", err)).Append(flawP)
	}

	return nil
}
