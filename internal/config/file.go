// Package config handles uicheck configuration from YAML files and the
// environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/uicheck/uicheck/report"
)

// Config is the top-level uicheck configuration.
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Browser BrowserConfig `yaml:"browser"`
	Audit   AuditConfig   `yaml:"audit"`
	Store   StoreConfig   `yaml:"store"`
	Sinks   []SinkConfig  `yaml:"sinks"`
	Server  ServerConfig  `yaml:"server"`
}

// SiteConfig describes the site under audit.
type SiteConfig struct {
	BaseURL      string     `yaml:"base_url"`
	InfoRoute    string     `yaml:"info_route"`
	ExtraURLs    [][]string `yaml:"extra_urls"` // [path, query, subtype]
	AllowedHosts []string   `yaml:"allowed_hosts"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote            string        `yaml:"remote"`
	Headless          *bool         `yaml:"headless"`
	Stealth           bool          `yaml:"stealth"`
	ResourceBlocking  []string      `yaml:"resource_blocking"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
}

// IsHeadless reports the effective headless setting, true when unset.
func (b BrowserConfig) IsHeadless() bool {
	return b.Headless == nil || *b.Headless
}

// AuditConfig selects checks and parallelism.
type AuditConfig struct {
	Checks      []string `yaml:"checks"`
	Concurrency int      `yaml:"concurrency"`
}

// StoreConfig locates the SQLite database. An empty path disables
// persistence.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook
	URL  string `yaml:"url"`  // for webhook
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoadFile reads a YAML configuration file, applies environment overrides
// and defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML configuration bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv("UICHECK_BASE_URL"); v != "" {
		c.Site.BaseURL = v
	}
	if v := os.Getenv("UICHECK_CHROME_URL"); v != "" {
		c.Browser.Remote = v
	}
	if v := os.Getenv("UICHECK_DB"); v != "" {
		c.Store.Path = v
	}
}

func (c *Config) applyDefaults() {
	if c.Site.BaseURL == "" {
		c.Site.BaseURL = "http://localhost:8889"
	}
	if c.Site.InfoRoute == "" {
		c.Site.InfoRoute = "/theme-test-helper/v1/info"
	}
	if c.Site.ExtraURLs == nil {
		c.Site.ExtraURLs = [][]string{{"/", "?feed=rss2", ""}}
	}
	if c.Browser.ResourceBlocking == nil {
		c.Browser.ResourceBlocking = []string{"images", "fonts", "media"}
	}
	if c.Browser.NavigationTimeout <= 0 {
		c.Browser.NavigationTimeout = 30 * time.Second
	}
	if len(c.Audit.Checks) == 0 {
		for _, ch := range report.AllChecks {
			c.Audit.Checks = append(c.Audit.Checks, string(ch))
		}
	}
	if c.Audit.Concurrency <= 0 {
		c.Audit.Concurrency = 1
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []SinkConfig{{Type: "stdout"}}
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8087"
	}
}

// Validate rejects configurations the auditor cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Site.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: site.base_url %q is not an absolute URL", c.Site.BaseURL)
	}
	known := make(map[report.Check]bool, len(report.AllChecks))
	for _, ch := range report.AllChecks {
		known[ch] = true
	}
	for _, ch := range c.Audit.Checks {
		if !known[report.Check(ch)] {
			return fmt.Errorf("config: audit.checks: unknown check %q", ch)
		}
	}
	for i, s := range c.Site.ExtraURLs {
		if len(s) == 0 || len(s) > 3 {
			return fmt.Errorf("config: site.extra_urls[%d]: want [path, query, subtype]", i)
		}
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: sinks[%d]: webhook needs url", i)
			}
		default:
			return fmt.Errorf("config: sinks[%d]: unknown type %q", i, s.Type)
		}
	}
	return nil
}

// CheckList converts the configured check names.
func (c *Config) CheckList() []report.Check {
	out := make([]report.Check, 0, len(c.Audit.Checks))
	for _, ch := range c.Audit.Checks {
		out = append(out, report.Check(ch))
	}
	return out
}
