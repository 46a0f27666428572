// Package cli implements the pkgindex command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/git-pkgs/pkgindex/cache"
	"github.com/git-pkgs/pkgindex/client"
	"github.com/git-pkgs/pkgindex/config"
	"github.com/git-pkgs/pkgindex/internal/core"

	// registers the legacy source kind
	_ "github.com/git-pkgs/pkgindex/internal/remote"
)

const appName = "pkgindex"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	out    io.Writer

	configPath   string
	noCache      bool
	repositories []string
}

// New creates a CLI printing results to out and logging to logw.
func New(out, logw io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(logw, level),
		out:    out,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Query simple package indexes",
		Long:         `pkgindex lists the versions a package index offers for a dependency, inspects releases and shows their artifacts, using the repositories, certificates and credentials from the config file.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", config.DefaultPath(), "config file (toml or yaml)")
	flags.BoolVar(&c.noCache, "no-cache", false, "disable the response and metadata cache")
	flags.StringArrayVarP(&c.repositories, "repository", "r", nil, "extra repository as name=url (repeatable)")

	root.AddCommand(c.findCommand())
	root.AddCommand(c.infoCommand())
	root.AddCommand(c.linksCommand())
	root.AddCommand(c.cacheCommand())

	return root
}

// session is everything a command needs to talk to the configured
// repositories.
type session struct {
	config *config.Config
	cache  cache.Cache
	auth   *client.Authenticator
	pool   *core.Pool
}

func (s *session) Close() error {
	return errors.Join(s.auth.Close(), s.cache.Close())
}

func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	for _, spec := range c.repositories {
		name, url, ok := strings.Cut(spec, "=")
		if !ok || name == "" || url == "" {
			return nil, fmt.Errorf("invalid repository %q, want name=url", spec)
		}
		cfg.AddRepository(name, url)
	}
	if c.noCache {
		cfg.Cache.Disabled = true
	}
	if cfg.Cache.Dir == "" && cfg.Cache.RedisURL == "" && cfg.Cache.MongoURI == "" {
		if dir, err := cacheDir(); err == nil {
			cfg.Cache.Dir = dir
		}
	}
	return cfg, nil
}

func (c *CLI) newSession(ctx context.Context) (*session, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	if len(cfg.Repositories()) == 0 {
		return nil, errors.New("no repositories configured; add one to the config file or pass --repository name=url")
	}

	store, err := cache.Open(ctx, cfg.CacheOptions())
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	opts := []client.Option{client.WithLogger(c.Logger), client.WithCache(cache.Namespace(store, "responses"))}
	if cfg.Cache.TTL > 0 {
		opts = append(opts, client.WithHTTPCacheTTL(cfg.Cache.TTL))
	}
	auth := client.New(cfg, opts...)

	pool := core.NewPool(c.Logger)
	for _, r := range cfg.RepositoryList() {
		src, err := core.New(core.SourceLegacy, r.Name, core.Options{
			URL:    r.URL,
			Auth:   auth,
			Cache:  store,
			Logger: c.Logger,
		})
		if err == nil {
			err = pool.AddSource(src)
		}
		if err != nil {
			_ = auth.Close()
			_ = store.Close()
			return nil, err
		}
	}

	return &session{config: cfg, cache: store, auth: auth, pool: pool}, nil
}

// cacheDir returns the cache directory using XDG standard (~/.cache/pkgindex/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
