package clientcli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sagarc03/remotestore/clientcli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_WithDefaults(t *testing.T) {
	cfg := &clientcli.Config{Owner: "jimmy"}
	withDefaults := cfg.WithDefaults()

	assert.Equal(t, clientcli.DefaultEndpoint, withDefaults.Endpoint)
	assert.Empty(t, cfg.Endpoint, "original config must not be mutated")
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, (&clientcli.Config{Owner: "jimmy"}).Validate())
	assert.ErrorIs(t, (&clientcli.Config{Token: "t"}).Validate(), clientcli.ErrOwnerRequired)
}

func TestMergeConfig(t *testing.T) {
	file := &clientcli.Config{Endpoint: "http://file", Owner: "file-owner", Token: "file-token"}
	env := &clientcli.Config{Token: "env-token"}
	flags := &clientcli.Config{Owner: "flag-owner"}

	merged := clientcli.MergeConfig(file, nil, env, flags)
	assert.Equal(t, &clientcli.Config{
		Endpoint: "http://file",
		Owner:    "flag-owner",
		Token:    "env-token",
	}, merged)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("REMOTESTORE_SERVER", "http://env:5708")
	t.Setenv("REMOTESTORE_OWNER", "jimmy")
	t.Setenv("REMOTESTORE_TOKEN", "abc")
	t.Setenv("REMOTESTORE_PROFILE", "work")

	cfg := clientcli.ConfigFromEnv()
	assert.Equal(t, "http://env:5708", cfg.Endpoint)
	assert.Equal(t, "jimmy", cfg.Owner)
	assert.Equal(t, "abc", cfg.Token)
	assert.Equal(t, "work", clientcli.ProfileFromEnv())
}

func TestConfigFromProfile(t *testing.T) {
	assert.Equal(t, &clientcli.Config{}, clientcli.ConfigFromProfile(nil))

	cfg := clientcli.ConfigFromProfile(&clientcli.Profile{
		Name:     "work",
		Endpoint: "http://work",
		Owner:    "jimmy",
		Token:    "abc",
	})
	assert.Equal(t, &clientcli.Config{Endpoint: "http://work", Owner: "jimmy", Token: "abc"}, cfg)
}

func TestConfigFile_Profiles(t *testing.T) {
	cfg := &clientcli.ConfigFile{}

	_, err := cfg.GetProfile("")
	require.ErrorIs(t, err, clientcli.ErrNoProfiles)
	assert.Empty(t, cfg.DefaultName())

	require.NoError(t, cfg.AddProfile(clientcli.Profile{Name: "home", Endpoint: "http://home", Owner: "jimmy"}))
	require.NoError(t, cfg.AddProfile(clientcli.Profile{Name: "work", Endpoint: "http://work", Owner: "jim"}))
	assert.ErrorIs(t, cfg.AddProfile(clientcli.Profile{Name: "work"}), clientcli.ErrProfileExists)

	t.Run("first profile is default when none marked", func(t *testing.T) {
		p, err := cfg.GetProfile("")
		require.NoError(t, err)
		assert.Equal(t, "home", p.Name)
	})

	t.Run("set default", func(t *testing.T) {
		require.NoError(t, cfg.SetDefault("work"))
		assert.Equal(t, "work", cfg.DefaultName())
		assert.False(t, cfg.Profiles[0].Default)
		assert.ErrorIs(t, cfg.SetDefault("nope"), clientcli.ErrProfileNotFound)
	})

	t.Run("update", func(t *testing.T) {
		require.NoError(t, cfg.UpdateProfile(clientcli.Profile{Name: "home", Endpoint: "http://new", Owner: "jimmy"}))
		p, err := cfg.GetProfile("home")
		require.NoError(t, err)
		assert.Equal(t, "http://new", p.Endpoint)
		assert.ErrorIs(t, cfg.UpdateProfile(clientcli.Profile{Name: "nope"}), clientcli.ErrProfileNotFound)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, cfg.RemoveProfile("home"))
		assert.Equal(t, []string{"work"}, cfg.ProfileNames())
		assert.ErrorIs(t, cfg.RemoveProfile("home"), clientcli.ErrProfileNotFound)
	})
}

func TestConfigFile_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := &clientcli.ConfigFile{Profiles: []clientcli.Profile{
		{Name: "home", Endpoint: "http://home", Owner: "jimmy", Token: "abc", Default: true},
	}}
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := clientcli.LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	_, err = clientcli.LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("HOME", "/home/jimmy")
	assert.Equal(t, filepath.Join("/home/jimmy", ".remotestore", "config.yaml"), clientcli.DefaultConfigPath())
}
