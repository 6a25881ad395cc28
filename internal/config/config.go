// Package config loads the spindle CLI configuration from an optional YAML
// file and SPINDLE_-prefixed environment variables.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full CLI configuration tree.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Fetcher FetcherConfig `mapstructure:"fetcher"`
	Spider  SpiderConfig  `mapstructure:"spider"`
	Output  OutputConfig  `mapstructure:"output"`
}

// LoggingConfig selects the logger flavor.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CrawlConfig maps onto the engine settings.
type CrawlConfig struct {
	UserAgent  string        `mapstructure:"user_agent"`
	Delay      time.Duration `mapstructure:"delay"`
	Timeout    time.Duration `mapstructure:"timeout"`
	HTTPProxy  string        `mapstructure:"http_proxy"`
	HTTPSProxy string        `mapstructure:"https_proxy"`
	Cache      CacheConfig   `mapstructure:"cache"`
}

// CacheConfig controls the response cache. A non-empty Dir makes the cache
// persistent on disk; otherwise an in-memory cache serves the run.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// FetcherConfig selects and tunes the transport.
type FetcherConfig struct {
	// Kind is "colly" (plain HTTP, the default) or "headless" (browser).
	Kind        string        `mapstructure:"kind"`
	MaxParallel int           `mapstructure:"max_parallel"`
	NavTimeout  time.Duration `mapstructure:"nav_timeout"`
}

// SpiderConfig describes the config-driven site spider: where to start,
// which links to follow, and which fields make up an item. Field rules are
// CSS selectors, optionally suffixed with @attr to read an attribute
// instead of the text content.
type SpiderConfig struct {
	StartURLs      []string          `mapstructure:"start_urls"`
	AllowedDomains []string          `mapstructure:"allowed_domains"`
	Follow         []string          `mapstructure:"follow"`
	Fields         map[string]string `mapstructure:"fields"`
	MaxPages       int               `mapstructure:"max_pages"`
}

// OutputConfig says where items go, one JSON object per line.
type OutputConfig struct {
	// Path of the output file; "-" or empty means stdout.
	Path string `mapstructure:"path"`
}

// Load reads path (optional when empty) plus the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SPINDLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
	v.SetDefault("crawl.user_agent", "")
	v.SetDefault("crawl.delay", "0s")
	v.SetDefault("crawl.timeout", "30s")
	v.SetDefault("crawl.http_proxy", "")
	v.SetDefault("crawl.https_proxy", "")
	v.SetDefault("crawl.cache.enabled", false)
	v.SetDefault("crawl.cache.dir", "")
	v.SetDefault("fetcher.kind", "colly")
	v.SetDefault("fetcher.max_parallel", 2)
	v.SetDefault("fetcher.nav_timeout", "45s")
	v.SetDefault("spider.max_pages", 100)
	v.SetDefault("output.path", "-")
}

// Validate rejects configurations the CLI cannot run.
func (c *Config) Validate() error {
	if len(c.Spider.StartURLs) == 0 {
		return fmt.Errorf("spider.start_urls must not be empty")
	}
	for _, raw := range c.Spider.StartURLs {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("spider.start_urls: %q is not an absolute URL", raw)
		}
	}
	if len(c.Spider.Fields) == 0 {
		return fmt.Errorf("spider.fields must define at least one field")
	}
	if c.Spider.MaxPages <= 0 {
		return fmt.Errorf("spider.max_pages must be positive")
	}
	if c.Crawl.Delay < 0 {
		return fmt.Errorf("crawl.delay must not be negative")
	}
	switch c.Fetcher.Kind {
	case "colly", "headless":
	default:
		return fmt.Errorf("fetcher.kind must be colly or headless, got %q", c.Fetcher.Kind)
	}
	return nil
}
