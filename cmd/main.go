package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/cenkalti/backoff/v4"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"github.com/xeptore/flaw/v8"
	"gopkg.in/matryer/try.v1"

	"github.com/intunehq/intune/api"
	"github.com/intunehq/intune/cache"
	"github.com/intunehq/intune/catalog"
	"github.com/intunehq/intune/collection"
	"github.com/intunehq/intune/config"
	"github.com/intunehq/intune/constant"
	"github.com/intunehq/intune/covers"
	"github.com/intunehq/intune/ctxutil"
	"github.com/intunehq/intune/errutil"
	"github.com/intunehq/intune/friends"
	"github.com/intunehq/intune/localfs"
	"github.com/intunehq/intune/log"
	"github.com/intunehq/intune/rating"
	"github.com/intunehq/intune/search"
	"github.com/intunehq/intune/session"
)

const (
	flagConfigFilePath = "config"
)

func main() {
	logger := log.NewPretty(os.Stdout).Level(zerolog.TraceLevel)
	if err := godotenv.Load(); nil != err {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn().Msg(".env file was not found")
		} else {
			logger.Fatal().Err(err).Msg("Failed to load .env file")
		}
	}

	//nolint:exhaustruct
	app := &cli.App{
		Name:     "intune",
		Version:  constant.Version,
		Compiled: constant.CompileTime,
		Suggest:  true,
		Usage:    "In Tune album client",
		Commands: []*cli.Command{
			//nolint:exhaustruct
			{
				Name:    "run",
				Aliases: []string{"r"},
				Usage:   "Run the interactive client",
				Action:  run,
				Flags: []cli.Flag{
					//nolint:exhaustruct
					&cli.StringFlag{
						Name:     flagConfigFilePath,
						Aliases:  []string{"c"},
						Usage:    "Config file path",
						Required: false,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); nil != err {
		if errors.Is(err, context.Canceled) {
			logger.Trace().Msg("Application was canceled")
			return
		}
		if flawErr := new(flaw.Flaw); errors.As(err, &flawErr) {
			if flawBytes, yamlErr := errutil.FlawToYAML(flawErr); nil != yamlErr {
				logger.Error().Func(log.Flaw(yamlErr)).Msg("Failed to convert flaw to YAML")
			} else if writeErr := os.WriteFile("flaw.yaml", flawBytes, 0o0600); nil != writeErr {
				logger.Error().Err(writeErr).Msg("Failed to write flaw dump file")
			} else {
				logger.Info().Str("file_path", "flaw.yaml").Msg("Flaw dump written")
			}
			logger.Fatal().Func(log.Flaw(flawErr)).Msg("Application exited with flaw")
			return
		}
		logger.Fatal().Err(err).Msg("Application exited with error")
	}
}

func run(cliCtx *cli.Context) (err error) {
	ctx, cancel := signal.NotifyContext(cliCtx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.NewPretty(os.Stdout).Level(zerolog.TraceLevel)
	var (
		cfgEnv = os.Getenv("CONFIG")
		cfg    *config.Config
	)
	cfgFilePath := cliCtx.String(flagConfigFilePath)
	switch {
	case cfgFilePath != "" && cfgEnv != "":
		return errors.New("config file path and config environment variable are both set. specify only one")
	case cfgFilePath == "" && cfgEnv == "":
		return errors.New("config file path and config environment variable are both empty. specify one")
	case cfgFilePath != "":
		logger.Debug().Str("config_file_path", cfgFilePath).Msg("Loading config from file")
		c, err := config.FromFile(cfgFilePath)
		if nil != err {
			return fmt.Errorf("failed to load config file: %v", err)
		}
		cfg = c
	default:
		logger.Debug().Msg("Loading config from environment variable")
		c, err := config.FromString(cfgEnv)
		if nil != err {
			return fmt.Errorf("failed to load config from environment variable: %v", err)
		}
		cfg = c
	}

	if _, err := os.ReadDir(cfg.CredsDir); nil != err && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read credentials directory: %v", err)
	} else if errors.Is(err, os.ErrNotExist) {
		logger.Warn().Msg("Credentials directory does not exist. Creating...")
		if err := os.MkdirAll(cfg.CredsDir, 0o0755); nil != err {
			return fmt.Errorf("failed to create credentials directory: %v", err)
		}
		logger.Info().Msg("Credentials directory created")
	}

	client, err := api.New(cfg.BaseURL, logger.With().Str("module", "api").Logger())
	if nil != err {
		return err
	}

	dir := localfs.From(cfg.CredsDir)
	appCache := cache.New()

	a := &App{
		ctx:        ctx,
		cfg:        cfg,
		logger:     logger,
		client:     client,
		dir:        dir,
		nav:        &routeLogger{logger: logger.With().Str("module", "nav").Logger()},
		guard:      session.NewGuard(client, client, dir, logger.With().Str("module", "session").Logger()),
		search:     nil,
		collection: collection.NewManager(client, logger.With().Str("module", "collection").Logger()),
		ratings:    rating.NewManager(client, logger.With().Str("module", "rating").Logger()),
		covers:     covers.NewLoader(appCache, client),
		friends:    nil,
		by:         catalog.SearchByAlbum,
	}
	a.search = search.NewController(
		ctx,
		client,
		appCache,
		search.Options{
			DefaultSet:  cfg.DefaultAlbums,
			PageLimit:   cfg.PageLimit,
			RandomCount: cfg.RandomCount,
			QuietPeriod: config.SearchQuietPeriod,
		},
		logger.With().Str("module", "search").Logger(),
	)
	a.guard.OnLogout(func() {
		a.collection.Clear()
		a.ratings.Clear()
		a.search.SetQuery("")
		if nil != a.friends {
			a.friends.Clear()
			a.friends = nil
		}
	})

	restored, err := a.restoreSession(ctx)
	if nil != err {
		switch {
		case errors.Is(ctx.Err(), context.Canceled):
			return context.Canceled
		case errutil.IsFlaw(err):
			return err
		case errors.Is(err, context.DeadlineExceeded), api.IsCallError(err):
			logger.Warn().Err(err).Msg("Failed to restore previous session. Starting signed out")
		default:
			panic(errutil.UnknownError(err))
		}
	}
	if restored {
		state := a.guard.Current()
		logger.Info().Str("user", state.User.DisplayName).Msg("Restored previous session")
		a.nav.Navigate(session.RouteHome)
		a.onSignedIn()
	} else {
		a.nav.Navigate(session.RouteWelcome)
	}

	return a.repl()
}

// restoreSession confirms a persisted snapshot against the service, retrying
// transient network failures a few times before giving up. Anything else is
// permanent: a rejected snapshot is not worth retrying.
func (a *App) restoreSession(ctx context.Context) (bool, error) {
	var restored bool
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	err := backoff.Retry(func() error {
		reqCtx, cancel := context.WithTimeout(ctx, config.SessionRequestTimeout)
		defer cancel()
		ok, err := a.guard.Restore(reqCtx)
		if nil != err {
			if api.IsNetworkError(err) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return backoff.Permanent(err)
		}
		restored = ok
		return nil
	}, bo)
	if nil != err {
		return false, err
	}
	return restored, nil
}

// routeLogger stands in for the view router of the graphical client.
type routeLogger struct {
	logger zerolog.Logger
}

func (r *routeLogger) Navigate(route string) {
	r.logger.Info().Str("route", route).Msg("Navigating")
}

type App struct {
	ctx        context.Context
	cfg        *config.Config
	logger     zerolog.Logger
	client     *api.Client
	dir        localfs.Dir
	nav        *routeLogger
	guard      *session.Guard
	search     *search.Controller
	collection *collection.Manager
	ratings    *rating.Manager
	covers     *covers.Loader
	friends    *friends.Directory
	by         catalog.SearchBy
}

// onSignedIn warms the per-user stores after login or restore. Failures are
// logged, not fatal: the mirrors reconcile on the next refresh.
func (a *App) onSignedIn() {
	state := a.guard.Current()

	d, err := friends.Open(a.dir, state.User.DisplayName, a.logger.With().Str("module", "friends").Logger())
	if nil != err {
		a.logger.Warn().Err(err).Msg("Failed to open friend directory")
	} else {
		a.friends = d
	}

	err = try.Do(func(attempt int) (bool, error) {
		reqCtx, cancel := context.WithTimeout(a.ctx, config.CollectionRefreshTimeout)
		defer cancel()
		err := a.collection.Refresh(reqCtx)
		return attempt < 3, err
	})
	if nil != err {
		a.logger.Warn().Err(err).Msg("Failed to refresh saved albums")
	}
}

func (a *App) repl() error {
	fmt.Println("Type a search query, or /help for commands.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		if err := a.ctx.Err(); nil != err {
			return context.Canceled
		}
		fmt.Print("> ")
		if !scanner.Scan() {
			if err := scanner.Err(); nil != err {
				return fmt.Errorf("failed to read input: %v", err)
			}
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return nil
		}
		if strings.HasPrefix(line, "/") {
			a.dispatch(line)
			continue
		}
		a.runSearch(line)
	}
}

func (a *App) dispatch(line string) {
	args := strings.Fields(line)
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "/help":
		printHelp()
	case "/login":
		a.login(rest)
	case "/register":
		a.register(rest)
	case "/logout":
		a.logout()
	case "/profile":
		a.profile()
	case "/by":
		a.setSearchBy(rest)
	case "/open":
		a.openAlbum(rest)
	case "/save":
		a.saveAlbum(rest)
	case "/unsave":
		a.unsaveAlbum(rest)
	case "/saved":
		a.listSaved()
	case "/rate":
		a.rateAlbum(rest)
	case "/unrate":
		a.unrateAlbum(rest)
	case "/rated":
		a.listRated()
	case "/friends":
		a.listFriends()
	case "/friend":
		a.friendCmd(rest)
	default:
		fmt.Printf("Unknown command %s. See /help.\n", cmd)
	}
}

func printHelp() {
	fmt.Print(`Free text searches the catalog. Commands:
  /login <user> <pass>            Sign in
  /register <user> <pass> <pass>  Create an account and sign in
  /logout                         Sign out
  /profile                        Show the signed-in user
  /by artist|album|song           Set the local result filter mode
  /open <album-id>                Show album details
  /save <album-id>                Save an album
  /unsave <album-id>              Remove a saved album
  /saved                          List saved albums
  /rate <album-id> <1-5>          Rate an album
  /unrate <album-id>              Clear an album rating
  /rated                          List rated albums
  /friends                        List friends
  /friend find <term>             Search users to befriend
  /friend add <user>              Add a friend
  /friend rm <user>               Remove a friend
  /quit                           Exit
`)
}

func (a *App) login(args []string) {
	if len(args) != 2 {
		fmt.Println("Usage: /login <user> <pass>")
		return
	}
	reqCtx, cancel := context.WithTimeout(a.ctx, config.SessionRequestTimeout)
	defer cancel()
	if err := a.guard.Login(reqCtx, args[0], args[1]); nil != err {
		fmt.Printf("Login failed: %s\n", describeError(err))
		return
	}
	a.nav.Navigate(session.RouteHome)
	a.onSignedIn()
	fmt.Printf("Signed in as %s.\n", a.guard.Current().User.DisplayName)
}

func (a *App) register(args []string) {
	if len(args) != 3 {
		fmt.Println("Usage: /register <user> <pass> <pass-again>")
		return
	}
	reqCtx, cancel := context.WithTimeout(a.ctx, config.SessionRequestTimeout)
	defer cancel()
	if err := a.guard.Register(reqCtx, args[0], args[1], args[2]); nil != err {
		fmt.Printf("Registration failed: %s\n", describeError(err))
		return
	}
	a.nav.Navigate(session.RouteHome)
	a.onSignedIn()
	fmt.Printf("Welcome, %s.\n", a.guard.Current().User.DisplayName)
}

// logout gives the best-effort server notification a short grace window past
// interactive cancellation, then clears everything locally regardless.
func (a *App) logout() {
	logoutCtx, cancel := ctxutil.WithDelayedTimeout(a.ctx, config.LogoutGracePeriod)
	defer cancel()
	a.guard.Logout(logoutCtx, a.nav)
	fmt.Println("Signed out.")
}

func (a *App) profile() {
	if !a.guard.RequireSession(a.nav) {
		fmt.Println("Not signed in.")
		return
	}
	state := a.guard.Current()
	fmt.Printf("Signed in as %s (id %s).\n", state.User.DisplayName, state.User.ID)
	fmt.Printf("Saved albums: %d\n", len(a.collection.Saved()))
}

func (a *App) setSearchBy(args []string) {
	if len(args) != 1 || !catalog.SearchBy(args[0]).Valid() {
		fmt.Println("Usage: /by artist|album|song")
		return
	}
	a.by = catalog.SearchBy(args[0])
	a.printResults(a.search.Visible(a.by))
}

func (a *App) runSearch(query string) {
	a.search.SetQuery(query)
	a.search.Flush()
	a.printResults(a.search.Visible(a.by))
}

func (a *App) printResults(albums []catalog.AlbumSummary) {
	if len(albums) == 0 {
		fmt.Println("No results.")
		return
	}
	for _, album := range albums {
		marker := " "
		if a.collection.IsSaved(album.ID) {
			marker = "*"
		}
		display := a.ratings.Displayed(album.ID)
		stars := ""
		if display.Rated {
			stars = fmt.Sprintf("  %s", strings.Repeat("★", display.Value))
		}
		fmt.Printf("%s %-12s %s by %s%s\n", marker, album.ID, album.Title, album.ArtistName, stars)
	}
}

func (a *App) openAlbum(args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: /open <album-id>")
		return
	}
	if !a.guard.RequireSession(a.nav) {
		fmt.Println("Sign in first.")
		return
	}
	albumID := args[0]

	reqCtx, cancel := context.WithTimeout(a.ctx, config.AlbumDetailRequestTimeout)
	defer cancel()
	detail, err := a.client.AlbumDetail(reqCtx, albumID)
	if nil != err {
		fmt.Printf("Failed to load album: %s\n", describeError(err))
		return
	}

	if _, _, err := a.ratings.Fetch(reqCtx, albumID); nil != err {
		a.logger.Debug().Str("album_id", albumID).Err(err).Msg("Failed to fetch album rating")
	}

	fmt.Printf("%s by %s (%s)\n", detail.Title, detail.ArtistName, detail.ReleaseDate)
	display := a.ratings.Displayed(albumID)
	switch {
	case a.collection.IsSaved(albumID) && display.Rated:
		fmt.Printf("Saved. Rated %d/5.\n", display.Value)
	case a.collection.IsSaved(albumID):
		fmt.Println("Saved. Not rated.")
	case display.Rated:
		fmt.Printf("Rated %d/5.\n", display.Value)
	}
	for _, track := range detail.SortedTracks() {
		fmt.Printf("  %2d. %s (%s)\n", track.Position, track.Title, catalog.FormatDuration(track.DurationSeconds))
	}

	if cover, err := a.covers.Load(a.ctx, detail.CoverURL); nil != err {
		a.logger.Debug().Str("url", detail.CoverURL).Err(err).Msg("Failed to load cover art")
	} else if len(cover) > 0 {
		fmt.Printf("Cover art: %d bytes cached.\n", len(cover))
	}
}

// findAlbum resolves an id against what the user can currently see, so the
// optimistic mirror carries real display fields when possible.
func (a *App) findAlbum(albumID string) (catalog.AlbumSummary, bool) {
	for _, album := range a.search.Results() {
		if album.ID == albumID {
			return album, true
		}
	}
	for _, album := range a.collection.Saved() {
		if album.ID == albumID {
			return album, true
		}
	}
	return catalog.AlbumSummary{ID: "", Title: "", ArtistName: "", CoverURL: ""}, false
}

func (a *App) saveAlbum(args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: /save <album-id>")
		return
	}
	if !a.guard.RequireSession(a.nav) {
		fmt.Println("Sign in first.")
		return
	}
	albumID := args[0]

	album, found := a.findAlbum(albumID)
	if !found {
		album = catalog.AlbumSummary{ID: albumID, Title: "", ArtistName: "", CoverURL: ""}
	}

	reqCtx, cancel := context.WithTimeout(a.ctx, config.CollectionMutationTimeout)
	defer cancel()
	if err := a.collection.Add(reqCtx, album); nil != err {
		fmt.Printf("Save failed: %s\n", describeError(err))
		return
	}
	fmt.Println("Saved.")
}

func (a *App) unsaveAlbum(args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: /unsave <album-id>")
		return
	}
	if !a.guard.RequireSession(a.nav) {
		fmt.Println("Sign in first.")
		return
	}

	reqCtx, cancel := context.WithTimeout(a.ctx, config.CollectionMutationTimeout)
	defer cancel()
	if err := a.collection.Remove(reqCtx, args[0]); nil != err {
		fmt.Printf("Remove failed: %s\n", describeError(err))
		return
	}
	fmt.Println("Removed.")
}

func (a *App) listSaved() {
	if !a.guard.RequireSession(a.nav) {
		fmt.Println("Sign in first.")
		return
	}
	saved := a.collection.Saved()
	if len(saved) == 0 {
		fmt.Println("No saved albums.")
		return
	}
	a.printResults(saved)
}

func (a *App) rateAlbum(args []string) {
	if len(args) != 2 {
		fmt.Println("Usage: /rate <album-id> <1-5>")
		return
	}
	if !a.guard.RequireSession(a.nav) {
		fmt.Println("Sign in first.")
		return
	}
	value, err := strconv.Atoi(args[1])
	if nil != err {
		fmt.Println("Rating must be a number between 1 and 5.")
		return
	}

	reqCtx, cancel := context.WithTimeout(a.ctx, config.RatingMutationTimeout)
	defer cancel()
	ran, err := a.ratings.Submit(reqCtx, args[0], value)
	if nil != err {
		fmt.Printf("Rating failed: %s\n", describeError(err))
		return
	}
	if !ran {
		fmt.Println("A rating for this album is already being submitted.")
		return
	}
	fmt.Printf("Rated %d/5.\n", value)
}

func (a *App) unrateAlbum(args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: /unrate <album-id>")
		return
	}
	if !a.guard.RequireSession(a.nav) {
		fmt.Println("Sign in first.")
		return
	}

	reqCtx, cancel := context.WithTimeout(a.ctx, config.RatingMutationTimeout)
	defer cancel()
	ran, err := a.ratings.Remove(reqCtx, args[0])
	if nil != err {
		fmt.Printf("Failed to clear rating: %s\n", describeError(err))
		return
	}
	if !ran {
		fmt.Println("A rating for this album is already being submitted.")
		return
	}
	fmt.Println("Rating cleared.")
}

func (a *App) listRated() {
	if !a.guard.RequireSession(a.nav) {
		fmt.Println("Sign in first.")
		return
	}

	reqCtx, cancel := context.WithTimeout(a.ctx, config.RatedAlbumsRequestTimeout)
	defer cancel()
	albums, err := a.ratings.RatedAlbums(reqCtx)
	if nil != err {
		fmt.Printf("Failed to list rated albums: %s\n", describeError(err))
		return
	}
	if len(albums) == 0 {
		fmt.Println("No rated albums.")
		return
	}
	a.printResults(albums)
}

func (a *App) listFriends() {
	if !a.guard.RequireSession(a.nav) || nil == a.friends {
		fmt.Println("Sign in first.")
		return
	}
	list := a.friends.Friends()
	if len(list) == 0 {
		fmt.Println("No friends yet. Try /friend find <term>.")
		return
	}
	for _, name := range list {
		fmt.Printf("  %s\n", name)
	}
}

func (a *App) friendCmd(args []string) {
	if !a.guard.RequireSession(a.nav) || nil == a.friends {
		fmt.Println("Sign in first.")
		return
	}
	if len(args) != 2 {
		fmt.Println("Usage: /friend find|add|rm <user>")
		return
	}
	switch args[0] {
	case "find":
		matches := a.friends.Search(args[1])
		if len(matches) == 0 {
			fmt.Println("No matching users.")
			return
		}
		for _, name := range matches {
			fmt.Printf("  %s\n", name)
		}
	case "add":
		if err := a.friends.Add(args[1]); nil != err {
			fmt.Printf("Failed to add friend: %s\n", describeError(err))
			return
		}
		fmt.Printf("%s is now a friend.\n", args[1])
	case "rm":
		if err := a.friends.Remove(args[1]); nil != err {
			fmt.Printf("Failed to remove friend: %s\n", describeError(err))
			return
		}
		fmt.Printf("%s removed.\n", args[1])
	default:
		fmt.Println("Usage: /friend find|add|rm <user>")
	}
}

// describeError keeps server rejection messages verbatim and folds everything
// else into a short human-readable line.
func describeError(err error) string {
	if target, ok := errutil.IsAny(err, context.DeadlineExceeded, context.Canceled); ok {
		if errors.Is(target, context.Canceled) {
			return "the request was canceled"
		}
		return "the request timed out"
	}
	if api.IsCallError(err) {
		return api.Message(err)
	}
	return err.Error()
}
