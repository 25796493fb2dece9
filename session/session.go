package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/intunehq/intune/api"
	"github.com/intunehq/intune/localfs"
)

const (
	RouteWelcome = "/"
	RouteHome    = "/home"
)

// Navigator is the view-layer side effect the guard uses to send an
// unauthenticated caller back to the entry point.
type Navigator interface {
	Navigate(route string)
}

type User struct {
	ID          string
	DisplayName string
}

type State struct {
	Authenticated bool
	User          User
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

type remote interface {
	Login(ctx context.Context, username, password string) error
	Register(ctx context.Context, username, password string) (*api.User, error)
	Me(ctx context.Context) (*api.Me, error)
	Logout(ctx context.Context) error
}

type credentialStore interface {
	ExportCookies() []localfs.Cookie
	ImportCookies(cookies []localfs.Cookie)
	ClearCookies()
}

// Guard owns the process-wide session state. All reads and writes of
// authentication state go through it, and per-user stores hook into its
// logout to guarantee no stale state survives a user switch.
type Guard struct {
	mu       sync.Mutex
	state    State
	remote   remote
	creds    credentialStore
	file     localfs.SessionFile
	onLogout []func()
	logger   zerolog.Logger
}

func NewGuard(r remote, creds credentialStore, dir localfs.Dir, logger zerolog.Logger) *Guard {
	return &Guard{
		mu:       sync.Mutex{},
		state:    State{Authenticated: false, User: User{}}, //nolint:exhaustruct
		remote:   r,
		creds:    creds,
		file:     dir.Session(),
		onLogout: nil,
		logger:   logger,
	}
}

// OnLogout registers a per-user store reset. Hooks run synchronously inside
// Logout, before any navigation.
func (g *Guard) OnLogout(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onLogout = append(g.onLogout, fn)
}

func (g *Guard) Current() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// RequireSession gates a protected view. The check is purely local so no
// protected content can flash while an async check resolves; it reports false
// after redirecting the navigator to the entry point.
func (g *Guard) RequireSession(nav Navigator) bool {
	g.mu.Lock()
	authenticated := g.state.Authenticated
	g.mu.Unlock()
	if !authenticated {
		nav.Navigate(RouteWelcome)
		return false
	}
	return true
}

// Restore loads a persisted session snapshot from a previous run and confirms
// it against the service. A snapshot the server no longer recognizes is
// discarded.
func (g *Guard) Restore(ctx context.Context) (bool, error) {
	snapshot, err := g.file.Read()
	if nil != err {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	g.creds.ImportCookies(snapshot.Cookies)

	me, err := g.remote.Me(ctx)
	if nil != err {
		return false, err
	}
	if !me.Authenticated || nil == me.User {
		g.creds.ClearCookies()
		if err := g.file.Remove(); nil != err {
			g.logger.Warn().Err(err).Msg("Failed to remove stale session snapshot")
		}
		return false, nil
	}

	g.mu.Lock()
	g.state = State{Authenticated: true, User: User{ID: me.User.ID, DisplayName: me.User.DisplayName}}
	g.mu.Unlock()
	return true, nil
}

// Login establishes a session. Credential validation happens before any
// network call; server rejections are surfaced verbatim and leave the guard
// unauthenticated.
func (g *Guard) Login(ctx context.Context, username, password string) error {
	if username == "" {
		return &ValidationError{Field: "username", Reason: "must not be empty"}
	}
	if password == "" {
		return &ValidationError{Field: "password", Reason: "must not be empty"}
	}

	if err := g.remote.Login(ctx, username, password); nil != err {
		return err
	}

	me, err := g.remote.Me(ctx)
	if nil != err {
		return err
	}
	if !me.Authenticated || nil == me.User {
		return &api.CallError{Kind: api.KindServer, StatusCode: 0, Message: "login did not establish a session"}
	}

	g.mu.Lock()
	g.state = State{Authenticated: true, User: User{ID: me.User.ID, DisplayName: me.User.DisplayName}}
	g.mu.Unlock()

	g.persistSnapshot(me.User)
	return nil
}

// Register creates an account and logs it in. Password confirmation is a
// client-side precondition.
func (g *Guard) Register(ctx context.Context, username, password, confirm string) error {
	if username == "" {
		return &ValidationError{Field: "username", Reason: "must not be empty"}
	}
	if password == "" {
		return &ValidationError{Field: "password", Reason: "must not be empty"}
	}
	if password != confirm {
		return &ValidationError{Field: "confirm", Reason: "passwords do not match"}
	}

	if _, err := g.remote.Register(ctx, username, password); nil != err {
		return err
	}
	return g.Login(ctx, username, password)
}

// Logout notifies the service best-effort, then unconditionally clears local
// session state and every registered per-user store before navigating back to
// the entry point. A failed server call never blocks the local clear.
func (g *Guard) Logout(ctx context.Context, nav Navigator) {
	if err := g.remote.Logout(ctx); nil != err {
		g.logger.Warn().Err(err).Msg("Server logout failed; clearing local session anyway")
	}

	g.mu.Lock()
	g.state = State{Authenticated: false, User: User{}} //nolint:exhaustruct
	hooks := make([]func(), len(g.onLogout))
	copy(hooks, g.onLogout)
	g.mu.Unlock()

	g.creds.ClearCookies()
	if err := g.file.Remove(); nil != err {
		g.logger.Warn().Err(err).Msg("Failed to remove session snapshot")
	}

	for _, fn := range hooks {
		fn()
	}

	nav.Navigate(RouteWelcome)
}

func (g *Guard) persistSnapshot(u *api.User) {
	snapshot := localfs.SessionSnapshot{
		User:    localfs.SessionUser{ID: u.ID, DisplayName: u.DisplayName},
		Cookies: g.creds.ExportCookies(),
	}
	if err := g.file.Write(snapshot); nil != err {
		g.logger.Warn().Err(err).Msg("Failed to persist session snapshot")
	}
}
