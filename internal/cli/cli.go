// Package cli implements the wheelsmith command-line interface.
//
// # Commands
//
//   - parse: Parse a requirements.txt file and its includes
//   - install: Install wheels into a virtualenv or monotrail store
//   - tags: List the compatibility tags the host accepts, best first
//   - select: Pick the best compatible wheel out of several candidates
//   - cache: Manage the platform detection cache
//
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"context"
	"encoding/json"
	"io"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/wheelsmith/internal/config"
	"github.com/matzehuels/wheelsmith/pkg/buildinfo"
	"github.com/matzehuels/wheelsmith/pkg/cache"
	"github.com/matzehuels/wheelsmith/pkg/observability"
	"github.com/matzehuels/wheelsmith/pkg/tags"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "wheelsmith",
		Short:        "Wheelsmith installs Python wheels and parses requirements files",
		Long:         `Wheelsmith is the install core of a Python package manager: it parses requirements.txt files, picks compatible wheels for the host and installs them into virtual environments with RECORD verification.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c.Config = cfg
			c.registerHooks()
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.parseCommand())
	root.AddCommand(c.installCommand())
	root.AddCommand(c.tagsCommand())
	root.AddCommand(c.selectCommand())
	root.AddCommand(c.cacheCommand())

	return root
}

func (c *CLI) registerHooks() {
	hooks := &logHooks{logger: c.Logger}
	observability.SetParseHooks(hooks)
	observability.SetInstallHooks(hooks)
	observability.SetCacheHooks(hooks)
}

func (c *CLI) newCache() (cache.Cache, error) {
	if c.Config.Platform.NoCache {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(config.CacheDir())
}

// hostPlatform detects the running platform, consulting the cache first.
func (c *CLI) hostPlatform(ctx context.Context, refresh bool) (tags.Platform, error) {
	ch, err := c.newCache()
	if err != nil {
		c.Logger.Warn("platform cache unavailable", "error", err)
		ch = cache.NewNullCache()
	}
	defer ch.Close()

	key := cache.Key("platform", runtime.GOOS, runtime.GOARCH)
	if !refresh {
		if data, ok, err := ch.Get(ctx, key); err == nil && ok {
			var p tags.Platform
			if err := json.Unmarshal(data, &p); err == nil {
				c.Logger.Debug("using cached platform", "platform", p)
				return p, nil
			}
		}
	}

	p, err := tags.DetectPlatform()
	if err != nil {
		return tags.Platform{}, err
	}
	c.Logger.Debug("detected platform", "platform", p)
	if data, err := json.Marshal(p); err == nil {
		if err := ch.Set(ctx, key, data, c.Config.Platform.CacheTTL.Duration); err != nil {
			c.Logger.Warn("failed to cache platform", "error", err)
		}
	}
	return p, nil
}

// compatibleTags returns the tags a python major.minor accepts on the host.
func (c *CLI) compatibleTags(ctx context.Context, major, minor int, refresh bool) (*tags.CompatibleTags, error) {
	p, err := c.hostPlatform(ctx, refresh)
	if err != nil {
		return nil, err
	}
	return tags.NewCompatibleTags(major, minor, p)
}
