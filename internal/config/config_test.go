package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/wheelsmith/pkg/errors"
	"github.com/matzehuels/wheelsmith/pkg/location"
)

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(afero.NewMemMapFs(), "/etc/wheelsmith/config.toml")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, location.FailFast, cfg.LockPolicy())
	assert.Equal(t, 24*time.Hour, cfg.Platform.CacheTTL.Duration)
	assert.Equal(t, 32, cfg.Requirements.MaxIncludeDepth)
}

func TestLoadFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/config.toml", []byte(`
[install]
lock_policy = "wait"
lock_timeout = "1m30s"

[platform]
cache_ttl = "2h"
`), 0o644))

	cfg, err := LoadFile(fs, "/config.toml")
	require.NoError(t, err)
	assert.Equal(t, location.Wait, cfg.LockPolicy())
	assert.Equal(t, 90*time.Second, cfg.Install.LockTimeout.Duration)
	assert.Equal(t, 2*time.Hour, cfg.Platform.CacheTTL.Duration)
	// untouched keys keep their defaults
	assert.Equal(t, "wheelsmith", cfg.Install.Installer)
	assert.Equal(t, 32, cfg.Requirements.MaxIncludeDepth)
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[install\n", "invalid config file"},
		{"unknown key", "[install]\nlock = \"wait\"\n", `unknown key "install.lock"`},
		{"bad policy", "[install]\nlock_policy = \"sometimes\"\n", "unknown lock policy"},
		{"bad duration", "[platform]\ncache_ttl = \"soon\"\n", "invalid config file"},
		{"negative timeout", "[install]\nlock_timeout = \"-1s\"\n", "must not be negative"},
		{"zero depth", "[requirements]\nmax_include_depth = 0\n", "at least 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "/config.toml", []byte(tt.content), 0o644))

			_, err := LoadFile(fs, "/config.toml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
		})
	}
}

func TestPathHonorsEnvironment(t *testing.T) {
	t.Setenv(EnvConfig, "/tmp/custom.toml")
	assert.Equal(t, "/tmp/custom.toml", Path())
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte(" 45s ")))
	assert.Equal(t, 45*time.Second, d.Duration)

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "45s", string(text))
}
