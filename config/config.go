// Package config loads repository, certificate, credential and cache
// settings from a TOML or YAML file and the environment.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/git-pkgs/pkgindex/cache"
	"github.com/git-pkgs/pkgindex/client"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PKGINDEX_"

// Repository is a named index.
type Repository struct {
	Name string
	URL  string
}

// Certificates holds TLS file paths for a repository.
type Certificates struct {
	Cert       string `toml:"cert" yaml:"cert"`
	ClientCert string `toml:"client-cert" yaml:"client-cert"`
}

// Cache configures the shared cache backend. TTL is the lifetime of cached
// HTTP responses that carry no max-age.
type Cache struct {
	Dir      string
	RedisURL string
	MongoURI string
	TTL      time.Duration
	Disabled bool
}

// Config is the resolved configuration. It implements client.Config.
type Config struct {
	repositories []Repository
	certificates map[string]Certificates
	httpBasic    map[string]client.Credential
	Cache        Cache
}

var _ client.Config = (*Config)(nil)

// New returns an empty configuration.
func New() *Config {
	return &Config{
		certificates: make(map[string]Certificates),
		httpBasic:    make(map[string]client.Credential),
	}
}

// AddRepository declares a repository. Redeclaring a name updates its URL
// and keeps its position.
func (c *Config) AddRepository(name, url string) *Config {
	if i := c.index(name); i >= 0 {
		c.repositories[i].URL = url
		return c
	}
	c.repositories = append(c.repositories, Repository{Name: name, URL: url})
	return c
}

// SetCertificates sets the TLS file paths for a repository.
func (c *Config) SetCertificates(name, cert, clientCert string) *Config {
	c.certificates[name] = Certificates{Cert: cert, ClientCert: clientCert}
	return c
}

// SetHTTPBasic sets the basic auth credentials for a repository.
func (c *Config) SetHTTPBasic(name, username, password string) *Config {
	c.httpBasic[name] = client.Credential{Username: username, Password: password}
	return c
}

// Repositories returns the repository names in declaration order.
func (c *Config) Repositories() []string {
	names := make([]string, len(c.repositories))
	for i, r := range c.repositories {
		names[i] = r.Name
	}
	return names
}

// RepositoryList returns the repositories in declaration order.
func (c *Config) RepositoryList() []Repository {
	return slices.Clone(c.repositories)
}

func (c *Config) RepositoryURL(name string) string {
	if i := c.index(name); i >= 0 {
		return c.repositories[i].URL
	}
	return ""
}

func (c *Config) Cert(name string) string {
	return c.certificates[name].Cert
}

func (c *Config) ClientCert(name string) string {
	return c.certificates[name].ClientCert
}

// HTTPBasic returns the credentials configured for name, if any.
func (c *Config) HTTPBasic(name string) (client.Credential, bool) {
	cred, ok := c.httpBasic[name]
	return cred, ok && !cred.IsZero()
}

// CacheOptions returns the options for cache.Open.
func (c *Config) CacheOptions() cache.Options {
	return cache.Options{
		Dir:      c.Cache.Dir,
		RedisURL: c.Cache.RedisURL,
		MongoURI: c.Cache.MongoURI,
		Disabled: c.Cache.Disabled,
	}
}

func (c *Config) index(name string) int {
	return slices.IndexFunc(c.repositories, func(r Repository) bool { return r.Name == name })
}

// DefaultPath returns $PKGINDEX_CONFIG, else config.toml in the user
// config directory.
func DefaultPath() string {
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "pkgindex", "config.toml")
}

// Load reads the file at path and applies environment overrides. A
// missing file yields a configuration built from the environment alone.
func Load(path string) (*Config, error) {
	cfg := New()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("reading config: %w", err)
		default:
			if cfg, err = Parse(data, formatOf(path)); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	}
	return "toml"
}

// ApplyEnv overrides http-basic credentials from
// PKGINDEX_HTTP_BASIC_<NAME>_USERNAME and _PASSWORD, where NAME is the
// upper-cased repository name with dashes and dots as underscores.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	for _, r := range c.repositories {
		prefix := EnvPrefix + "HTTP_BASIC_" + envName(r.Name) + "_"
		cred := c.httpBasic[r.Name]
		changed := false
		if v, ok := lookup(prefix + "USERNAME"); ok {
			cred.Username, changed = v, true
		}
		if v, ok := lookup(prefix + "PASSWORD"); ok {
			cred.Password, changed = v, true
		}
		if changed {
			c.httpBasic[r.Name] = cred
		}
	}
}

func envName(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
}

type fileRepository struct {
	URL string `toml:"url" yaml:"url"`
}

type fileCredential struct {
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password"`
}

type fileCache struct {
	Dir      string `toml:"dir" yaml:"dir"`
	RedisURL string `toml:"redis-url" yaml:"redis-url"`
	MongoURI string `toml:"mongo-uri" yaml:"mongo-uri"`
	TTL      string `toml:"ttl" yaml:"ttl"`
	Disabled bool   `toml:"disabled" yaml:"disabled"`
}

type fileConfig struct {
	Repositories map[string]fileRepository `toml:"repositories" yaml:"repositories"`
	Certificates map[string]Certificates   `toml:"certificates" yaml:"certificates"`
	HTTPBasic    map[string]fileCredential `toml:"http-basic" yaml:"http-basic"`
	Cache        fileCache                 `toml:"cache" yaml:"cache"`
}

// Parse decodes a configuration in the given format ("toml" or "yaml").
func Parse(data []byte, format string) (*Config, error) {
	var (
		fc    fileConfig
		order []string
	)
	switch format {
	case "toml":
		md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&fc)
		if err != nil {
			return nil, fmt.Errorf("parsing toml: %w", err)
		}
		for _, key := range md.Keys() {
			if len(key) == 2 && key[0] == "repositories" {
				order = append(order, key[1])
			}
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parsing yaml: %w", err)
		}
		var doc struct {
			Repositories yaml.Node `yaml:"repositories"`
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing yaml: %w", err)
		}
		for i := 0; i+1 < len(doc.Repositories.Content); i += 2 {
			order = append(order, doc.Repositories.Content[i].Value)
		}
	default:
		return nil, fmt.Errorf("unknown config format %q", format)
	}

	cfg := New()
	for _, name := range order {
		if r, ok := fc.Repositories[name]; ok {
			cfg.AddRepository(name, r.URL)
		}
	}
	for name, certs := range fc.Certificates {
		cfg.certificates[name] = certs
	}
	for name, cred := range fc.HTTPBasic {
		cfg.SetHTTPBasic(name, cred.Username, cred.Password)
	}

	cfg.Cache = Cache{
		Dir:      fc.Cache.Dir,
		RedisURL: fc.Cache.RedisURL,
		MongoURI: fc.Cache.MongoURI,
		Disabled: fc.Cache.Disabled,
	}
	if fc.Cache.TTL != "" {
		ttl, err := time.ParseDuration(fc.Cache.TTL)
		if err != nil {
			return nil, fmt.Errorf("cache ttl: %w", err)
		}
		cfg.Cache.TTL = ttl
	}
	return cfg, nil
}
