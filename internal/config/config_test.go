package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T, watch string) {
	t.Helper()
	t.Setenv("API_BASE_URL", "https://photos.example.com/")
	t.Setenv("API_TOKEN", "secret")
	t.Setenv("WATCH_FOLDER", watch)
	t.Setenv("UPLOADED_FOLDER", filepath.Join(watch, "uploaded"))
	t.Setenv("ALBUM_SLUG", "iceland")
}

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	require.NoError(t, Bind(v))
	return v
}

func TestLoadFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	setRequired(t, dir)

	cfg, err := Load(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, "https://photos.example.com", cfg.APIBaseURL)
	assert.Equal(t, "secret", cfg.APIToken)
	assert.Equal(t, dir, cfg.WatchFolder)
	assert.Equal(t, "iceland", cfg.AlbumSlug)
	assert.Empty(t, cfg.AltText)
	assert.Equal(t, 500*time.Millisecond, cfg.StabilityInterval)
	assert.Equal(t, 30*time.Second, cfg.StabilityTimeout)
}

func TestLoadMissingSettings(t *testing.T) {
	for _, env := range []string{"API_BASE_URL", "API_TOKEN", "WATCH_FOLDER", "UPLOADED_FOLDER", "ALBUM_SLUG"} {
		t.Run(env, func(t *testing.T) {
			setRequired(t, t.TempDir())
			t.Setenv(env, "")

			_, err := Load(newViper(t))
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), env)
		})
	}
}

func TestLoadWatchFolderMustExist(t *testing.T) {
	setRequired(t, filepath.Join(t.TempDir(), "nope"))

	_, err := Load(newViper(t))
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestLoadWatchFolderMustBeDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	setRequired(t, file)

	_, err := Load(newViper(t))
	require.ErrorIs(t, err, ErrInvalid)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	setRequired(t, t.TempDir())

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("album", "", "")
	flags.String("alt", "", "")
	require.NoError(t, flags.Parse([]string{"--album", "faroe", "--alt", "Sea cliffs"}))

	v := newViper(t)
	require.NoError(t, v.BindPFlag("album_slug", flags.Lookup("album")))
	require.NoError(t, v.BindPFlag("alt_text", flags.Lookup("alt")))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "faroe", cfg.AlbumSlug)
	assert.Equal(t, "Sea cliffs", cfg.AltText)
}

func TestAlbumFlagSatisfiesMissingEnvironment(t *testing.T) {
	setRequired(t, t.TempDir())
	t.Setenv("ALBUM_SLUG", "")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("album", "", "")
	require.NoError(t, flags.Parse([]string{"--album", "faroe"}))

	v := newViper(t)
	require.NoError(t, v.BindPFlag("album_slug", flags.Lookup("album")))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "faroe", cfg.AlbumSlug)
}

func TestDotenvFileIsLowerPriorityThanEnvironment(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "API_BASE_URL=https://from-file.example.com\n" +
		"API_TOKEN=file-token\n" +
		"WATCH_FOLDER=" + dir + "\n" +
		"UPLOADED_FOLDER=" + filepath.Join(dir, "done") + "\n" +
		"ALBUM_SLUG=from-file\n" +
		"STABILITY_TIMEOUT=5s\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))
	t.Setenv("ALBUM_SLUG", "from-env")

	v := newViper(t)
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "https://from-file.example.com", cfg.APIBaseURL)
	assert.Equal(t, "file-token", cfg.APIToken)
	assert.Equal(t, "from-env", cfg.AlbumSlug)
	assert.Equal(t, 5*time.Second, cfg.StabilityTimeout)
}

func TestLoadRejectsNonPositiveDurations(t *testing.T) {
	setRequired(t, t.TempDir())
	t.Setenv("STABILITY_INTERVAL", "0s")

	_, err := Load(newViper(t))
	require.ErrorIs(t, err, ErrInvalid)
}
