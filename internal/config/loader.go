package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// levels, so SHOWSHELF_HTTP__LISTEN_ADDR sets http.listen_addr.
const EnvPrefix = "SHOWSHELF_"

// DefaultPath is the config file read when no path is given.
const DefaultPath = "conf/showshelf.yaml"

// Load merges defaults, an optional .env file, the YAML file at path, and
// SHOWSHELF_ environment overrides (highest precedence), then validates.
// A missing YAML file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	// .env is optional and never overrides variables already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		zap.S().Warnw("config .env load failed", "err", err)
	}

	k := koanf.New(".")

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		zap.S().Debugw("config yaml loaded", "file", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateStruct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.TMDB.APIKey == "" {
		zap.S().Warnw("tmdb api key not set, TMDB API calls will fail")
	}
	zap.S().Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"db_path", cfg.Database.Path,
		"telegram", cfg.TelegramEnabled(),
	)
	return &cfg, nil
}

// envKey maps SHOWSHELF_TMDB__API_KEY to tmdb.api_key.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}
