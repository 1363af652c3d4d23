package cli

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/metaop/pkg/catalog"
	errs "github.com/matzehuels/metaop/pkg/errors"
	"github.com/matzehuels/metaop/pkg/preset"
)

// Config is the on-disk CLI configuration. Flags override every field.
//
//	log_level = "info"
//	range_policy = "clamp"
//	variant = "bokeh"
//
//	[cache]
//	disabled = false
//	dir = "/var/cache/metaop"
//
//	[presets]
//	backend = "redis"
//	redis_addr = "localhost:6379"
type Config struct {
	LogLevel    string        `toml:"log_level"`
	RangePolicy string        `toml:"range_policy"`
	Variant     string        `toml:"variant"`
	Cache       CacheConfig   `toml:"cache"`
	Presets     PresetsConfig `toml:"presets"`
}

// CacheConfig configures the render cache.
type CacheConfig struct {
	Disabled  bool   `toml:"disabled"`
	Backend   string `toml:"backend"` // file (default) or redis
	Dir       string `toml:"dir"`
	RedisAddr string `toml:"redis_addr"`
}

const (
	cacheBackendFile  = "file"
	cacheBackendRedis = "redis"
)

// PresetsConfig configures the preset store.
type PresetsConfig struct {
	Backend       string `toml:"backend"`
	Dir           string `toml:"dir"`
	RedisAddr     string `toml:"redis_addr"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

// configDir returns the config directory using the XDG standard
// (~/.config/metaop/).
func configDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}

// defaultConfigPath returns config.toml inside configDir.
func defaultConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// loadConfig reads path. A missing file at the default location yields
// the zero config; a missing file named explicitly is an error.
func loadConfig(path string) (Config, error) {
	var cfg Config
	explicit := path != ""
	if !explicit {
		p, err := defaultConfigPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if explicit {
				return cfg, errs.New(errs.ErrCodeNotFound, "config file %s not found", path)
			}
			return cfg, nil
		}
		return cfg, errs.Wrap(errs.ErrCodeInvalidFormat, err, "parse config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, errs.New(errs.ErrCodeInvalidInput, "config %s: unknown key %q", path, undecoded[0].String())
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if _, err := c.logLevel(); err != nil {
		return err
	}
	if _, err := c.policy(); err != nil {
		return err
	}
	switch c.Cache.Backend {
	case "", cacheBackendFile:
	case cacheBackendRedis:
		if c.Cache.RedisAddr == "" {
			return errs.New(errs.ErrCodeInvalidInput, "redis cache backend requires redis_addr")
		}
	default:
		return errs.New(errs.ErrCodeInvalidInput, "invalid cache backend %q (want file or redis)", c.Cache.Backend)
	}
	switch c.Presets.Backend {
	case "", preset.BackendFile, preset.BackendRedis, preset.BackendMongo:
	default:
		return errs.New(errs.ErrCodeInvalidInput, "invalid presets backend %q (want file, redis or mongo)", c.Presets.Backend)
	}
	return nil
}

// logLevel parses log_level; empty means info.
func (c Config) logLevel() (log.Level, error) {
	if c.LogLevel == "" {
		return log.InfoLevel, nil
	}
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel, errs.Wrap(errs.ErrCodeInvalidInput, err, "invalid log_level")
	}
	return level, nil
}

func (c Config) policy() (catalog.Policy, error) {
	return catalog.ParsePolicy(c.RangePolicy)
}

// presetConfig converts the [presets] table for preset.Open.
func (c Config) presetConfig() preset.Config {
	return preset.Config{
		Backend:       c.Presets.Backend,
		Dir:           c.Presets.Dir,
		RedisAddr:     c.Presets.RedisAddr,
		MongoURI:      c.Presets.MongoURI,
		MongoDatabase: c.Presets.MongoDatabase,
	}
}
