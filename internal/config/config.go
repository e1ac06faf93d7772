package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalid is wrapped by every error returned from Load.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	APIBaseURL        string        `mapstructure:"api_base_url"`
	APIToken          string        `mapstructure:"api_token"`
	WatchFolder       string        `mapstructure:"watch_folder"`
	UploadedFolder    string        `mapstructure:"uploaded_folder"`
	AlbumSlug         string        `mapstructure:"album_slug"`
	AltText           string        `mapstructure:"alt_text"`          // Applied to every upload, null when empty
	HistoryDB         string        `mapstructure:"history_db"`        // Optional sqlite ledger
	StabilityInterval time.Duration `mapstructure:"stability_interval"` // Time between size polls
	StabilityTimeout  time.Duration `mapstructure:"stability_timeout"`  // Max wait for a file to settle
}

// envKeys maps config keys to the environment variables that feed them.
var envKeys = map[string]string{
	"api_base_url":       "API_BASE_URL",
	"api_token":          "API_TOKEN",
	"watch_folder":       "WATCH_FOLDER",
	"uploaded_folder":    "UPLOADED_FOLDER",
	"album_slug":         "ALBUM_SLUG",
	"history_db":         "HISTORY_DB",
	"stability_interval": "STABILITY_INTERVAL",
	"stability_timeout":  "STABILITY_TIMEOUT",
}

// required lists the keys that must be non-empty, in reporting order.
var required = []string{"api_base_url", "api_token", "watch_folder", "uploaded_folder", "album_slug"}

// Bind registers environment variables and defaults on v. Flags are bound
// by the caller before Load is invoked.
func Bind(v *viper.Viper) error {
	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}
	v.SetDefault("stability_interval", "500ms")
	v.SetDefault("stability_timeout", "30s")
	return nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var missing []string
	for _, key := range required {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, envKeys[key])
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: missing %s", ErrInvalid, strings.Join(missing, ", "))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	if cfg.StabilityInterval <= 0 {
		return Config{}, fmt.Errorf("%w: STABILITY_INTERVAL must be positive", ErrInvalid)
	}
	if cfg.StabilityTimeout <= 0 {
		return Config{}, fmt.Errorf("%w: STABILITY_TIMEOUT must be positive", ErrInvalid)
	}

	info, err := os.Stat(cfg.WatchFolder)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("%w: watch folder %s does not exist", ErrInvalid, cfg.WatchFolder)
		}
		return Config{}, fmt.Errorf("%w: watch folder %s: %v", ErrInvalid, cfg.WatchFolder, err)
	}
	if !info.IsDir() {
		return Config{}, fmt.Errorf("%w: watch folder %s is not a directory", ErrInvalid, cfg.WatchFolder)
	}

	return cfg, nil
}
