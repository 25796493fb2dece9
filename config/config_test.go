package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intunehq/intune/config"
)

func TestFromString(t *testing.T) {
	t.Parallel()

	t.Run("Defaults", func(t *testing.T) {
		t.Parallel()
		cfg, err := config.FromString("base_url: https://intune.example\ncreds_dir: /tmp/intune\n")
		require.NoError(t, err)
		assert.Equal(t, config.DefaultAlbumsBuiltin, cfg.DefaultAlbums)
		assert.Equal(t, 5, cfg.PageLimit)
		assert.Equal(t, 6, cfg.RandomCount)
	})

	t.Run("ExplicitValues", func(t *testing.T) {
		t.Parallel()
		cfg, err := config.FromString(`
base_url: https://intune.example
creds_dir: /tmp/intune
default_albums: random
page_limit: 10
random_count: 12
`)
		require.NoError(t, err)
		assert.Equal(t, config.DefaultAlbumsRandom, cfg.DefaultAlbums)
		assert.Equal(t, 10, cfg.PageLimit)
		assert.Equal(t, 12, cfg.RandomCount)
	})

	t.Run("MissingBaseURL", func(t *testing.T) {
		t.Parallel()
		_, err := config.FromString("creds_dir: /tmp/intune\n")
		assert.Error(t, err)
	})

	t.Run("MissingCredsDir", func(t *testing.T) {
		t.Parallel()
		_, err := config.FromString("base_url: https://intune.example\n")
		assert.Error(t, err)
	})

	t.Run("UnsupportedDefaultAlbumsMode", func(t *testing.T) {
		t.Parallel()
		_, err := config.FromString("base_url: https://intune.example\ncreds_dir: /tmp/intune\ndefault_albums: editorial\n")
		assert.Error(t, err)
	})

	t.Run("NegativePageLimit", func(t *testing.T) {
		t.Parallel()
		_, err := config.FromString("base_url: https://intune.example\ncreds_dir: /tmp/intune\npage_limit: -1\n")
		assert.Error(t, err)
	})
}

func TestFromFile(t *testing.T) {
	t.Parallel()

	t.Run("ReadsAndValidates", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("base_url: https://intune.example\ncreds_dir: /tmp/intune\n"), 0o0600))

		cfg, err := config.FromFile(path)
		require.NoError(t, err)
		assert.Equal(t, "https://intune.example", cfg.BaseURL)
	})

	t.Run("MissingFile", func(t *testing.T) {
		t.Parallel()
		_, err := config.FromFile(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}
