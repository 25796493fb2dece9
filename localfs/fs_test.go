package localfs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intunehq/intune/localfs"
)

func TestSessionFileRoundTrip(t *testing.T) {
	t.Parallel()
	dir := localfs.From(t.TempDir())
	file := dir.Session()

	snapshot := localfs.SessionSnapshot{
		User:    localfs.SessionUser{ID: "u-1", DisplayName: "anna"},
		Cookies: []localfs.Cookie{{Name: "sid", Value: "abc"}},
	}
	require.NoError(t, file.Write(snapshot))

	read, err := file.Read()
	require.NoError(t, err)
	assert.Equal(t, snapshot, *read)
}

func TestReadMissingFile(t *testing.T) {
	t.Parallel()
	dir := localfs.From(t.TempDir())

	_, err := dir.Session().Read()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRemoveMissingFileIsHarmless(t *testing.T) {
	t.Parallel()
	dir := localfs.From(t.TempDir())
	assert.NoError(t, dir.Session().Remove())
}

func TestRemoveDeletesFile(t *testing.T) {
	t.Parallel()
	dir := localfs.From(t.TempDir())
	file := dir.Session()
	//nolint:exhaustruct
	require.NoError(t, file.Write(localfs.SessionSnapshot{}))

	require.NoError(t, file.Remove())
	_, err := file.Read()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFriendsFileNameIsSanitized(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	dir := localfs.From(base)
	file := dir.Friends("we/ird na:me")

	require.NoError(t, file.Write(localfs.FriendsContent{AllUsers: []string{"Maya"}, Friends: nil}))

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	name := entries[0].Name()
	assert.Equal(t, "friends-we_ird_na_me.json", name)
	assert.NoFileExists(t, filepath.Join(base, "friends-we/ird na:me.json"))
}

func TestFriendsFileRoundTrip(t *testing.T) {
	t.Parallel()
	dir := localfs.From(t.TempDir())
	file := dir.Friends("anna")

	content := localfs.FriendsContent{AllUsers: []string{"Maya", "Tom"}, Friends: []string{"Maya"}}
	require.NoError(t, file.Write(content))

	read, err := file.Read()
	require.NoError(t, err)
	assert.Equal(t, content, *read)
}
