// Package config loads the wheelsmith configuration file.
//
// The file is TOML and lives at $XDG_CONFIG_HOME/wheelsmith/config.toml
// unless WHEELSMITH_CONFIG names another path. Every key is optional:
//
//	[install]
//	lock_policy = "wait"     # or "fail-fast"
//	lock_timeout = "30s"
//	installer = "wheelsmith"
//
//	[requirements]
//	max_include_depth = 32
//
//	[platform]
//	cache_ttl = "24h"
//	no_cache = false
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/spf13/afero"

	"github.com/matzehuels/wheelsmith/pkg/errors"
	"github.com/matzehuels/wheelsmith/pkg/location"
	"github.com/matzehuels/wheelsmith/pkg/requirements"
	"github.com/matzehuels/wheelsmith/pkg/wheel"
)

const (
	appName = "wheelsmith"

	// EnvConfig overrides the config file location.
	EnvConfig = "WHEELSMITH_CONFIG"
)

// Config is the parsed configuration file.
type Config struct {
	Install      Install      `toml:"install"`
	Requirements Requirements `toml:"requirements"`
	Platform     Platform     `toml:"platform"`
}

// Install configures wheel installation.
type Install struct {
	LockPolicy string `toml:"lock_policy"`
	// LockTimeout bounds how long the wait policy blocks. Zero waits forever.
	LockTimeout Duration `toml:"lock_timeout"`
	Installer   string   `toml:"installer"`
}

// Requirements configures requirements file parsing.
type Requirements struct {
	MaxIncludeDepth int `toml:"max_include_depth"`
}

// Platform configures host platform detection.
type Platform struct {
	CacheTTL Duration `toml:"cache_ttl"`
	NoCache  bool     `toml:"no_cache"`
}

// Duration is a time.Duration written as a string such as "1h30m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Install: Install{
			LockPolicy: location.FailFast.String(),
			Installer:  wheel.DefaultInstaller,
		},
		Requirements: Requirements{MaxIncludeDepth: requirements.DefaultMaxDepth},
		Platform:     Platform{CacheTTL: Duration{24 * time.Hour}},
	}
}

// Path returns the config file that Load reads, whether or not it exists.
func Path() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	return filepath.Join(xdg.ConfigHome, appName, "config.toml")
}

// CacheDir returns the directory for cached data.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, appName)
}

// Load reads the config file from Path. A missing file yields Default.
func Load() (Config, error) {
	return LoadFile(afero.NewOsFs(), Path())
}

// LoadFile reads the config file at path on fs. Keys absent from the file
// keep their default values.
func LoadFile(fs afero.Fs, path string) (Config, error) {
	cfg := Default()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrap(errors.ErrCodeIO, err, "failed to read config file %s", path)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid config file %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, errors.New(errors.ErrCodeInvalidInput, "invalid config file %s: unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid config file %s", path)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if _, err := location.ParseLockPolicy(c.Install.LockPolicy); err != nil {
		return err
	}
	if c.Install.LockTimeout.Duration < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "install.lock_timeout must not be negative")
	}
	if c.Requirements.MaxIncludeDepth < 1 {
		return errors.New(errors.ErrCodeInvalidInput, "requirements.max_include_depth must be at least 1")
	}
	if c.Platform.CacheTTL.Duration < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "platform.cache_ttl must not be negative")
	}
	return nil
}

// LockPolicy returns the parsed install.lock_policy.
func (c Config) LockPolicy() location.LockPolicy {
	p, err := location.ParseLockPolicy(c.Install.LockPolicy)
	if err != nil {
		return location.FailFast
	}
	return p
}
