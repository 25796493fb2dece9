package friends

import (
	"errors"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/exp/maps"

	"github.com/intunehq/intune/localfs"
)

// seedUsers bootstraps a brand-new directory so the feature is usable before
// any real account data exists. A directory that already has entries is never
// reseeded.
var seedUsers = []string{"Anna", "Chris", "Jordan", "Maya", "Nick", "Priya", "Sam", "Tom"}

// Directory is the client-persisted friend list of one user, namespaced by
// the acting username. Mutations persist immediately.
type Directory struct {
	mu      sync.Mutex
	owner   string
	file    localfs.FriendsFile
	all     map[string]struct{}
	friends map[string]struct{}
	logger  zerolog.Logger
}

func Open(dir localfs.Dir, owner string, logger zerolog.Logger) (*Directory, error) {
	d := &Directory{
		mu:      sync.Mutex{},
		owner:   owner,
		file:    dir.Friends(owner),
		all:     make(map[string]struct{}),
		friends: make(map[string]struct{}),
		logger:  logger,
	}

	content, err := d.file.Read()
	switch {
	case nil == err:
		for _, u := range content.AllUsers {
			d.all[u] = struct{}{}
		}
		for _, u := range content.Friends {
			d.friends[u] = struct{}{}
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if len(d.all) == 0 {
		for _, u := range seedUsers {
			d.all[u] = struct{}{}
		}
		if err := d.persist(); nil != err {
			return nil, err
		}
		logger.Debug().Str("owner", owner).Msg("Seeded empty friend directory")
	}

	return d, nil
}

func (d *Directory) Friends() []string {
	d.mu.Lock()
	out := maps.Keys(d.friends)
	d.mu.Unlock()
	sort.Strings(out)
	return out
}

// Search returns quick-add candidates: a case-insensitive substring match
// over the directory, excluding the acting user and anyone already befriended.
// An empty term yields nothing rather than dumping the whole user base.
func (d *Directory) Search(term string) []string {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return nil
	}

	d.mu.Lock()
	candidates := maps.Keys(d.all)
	ownerLower := strings.ToLower(d.owner)
	matched := lo.Filter(candidates, func(u string, _ int) bool {
		if strings.ToLower(u) == ownerLower {
			return false
		}
		if _, isFriend := d.friends[u]; isFriend {
			return false
		}
		return strings.Contains(strings.ToLower(u), needle)
	})
	d.mu.Unlock()

	sort.Strings(matched)
	return matched
}

// Add befriends username. Adding the owner or an existing friend is a no-op.
func (d *Directory) Add(username string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if username == "" || strings.EqualFold(username, d.owner) {
		return nil
	}
	if _, ok := d.friends[username]; ok {
		return nil
	}

	d.friends[username] = struct{}{}
	d.all[username] = struct{}{}
	return d.persist()
}

// Remove unfriends username. Removing an absent one is a no-op.
func (d *Directory) Remove(username string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.friends[username]; !ok {
		return nil
	}

	delete(d.friends, username)
	return d.persist()
}

// Clear drops the in-memory state at logout. The file stays for the next
// login of the same user.
func (d *Directory) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.all = make(map[string]struct{})
	d.friends = make(map[string]struct{})
}

func (d *Directory) persist() error {
	allUsers := maps.Keys(d.all)
	sort.Strings(allUsers)
	friendList := maps.Keys(d.friends)
	sort.Strings(friendList)
	return d.file.Write(localfs.FriendsContent{AllUsers: allUsers, Friends: friendList})
}
