package crawler

import (
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Config captures every knob that influences one crawl run. It is immutable
// for the duration of the run; a site profile supplies the base values and
// Viper supplies operator overrides.
type Config struct {
	CrawlType  string
	Collection string
	Source     string

	StartURLs        []string
	AllowedDomains   []string
	ExcludedPatterns []string

	MaxDepth       int
	MaxConcurrency int
	MaxRequests    int

	MinDelay          time.Duration
	MaxDelay          time.Duration
	RequestsPerMinute int

	UserAgent      string
	RequestTimeout time.Duration
}

// ApplyOverrides returns a copy of c with any operator-supplied Viper keys
// applied on top of the profile defaults.
func ApplyOverrides(c Config, v *viper.Viper) Config {
	if v.IsSet("crawler.max_depth") {
		c.MaxDepth = v.GetInt("crawler.max_depth")
	}
	if v.IsSet("crawler.max_concurrency") {
		c.MaxConcurrency = v.GetInt("crawler.max_concurrency")
	}
	if v.IsSet("crawler.max_requests") {
		c.MaxRequests = v.GetInt("crawler.max_requests")
	}
	if v.IsSet("crawler.min_delay") {
		c.MinDelay = v.GetDuration("crawler.min_delay")
	}
	if v.IsSet("crawler.max_delay") {
		c.MaxDelay = v.GetDuration("crawler.max_delay")
	}
	if v.IsSet("crawler.requests_per_minute") {
		c.RequestsPerMinute = v.GetInt("crawler.requests_per_minute")
	}
	if v.IsSet("crawler.user_agent") {
		c.UserAgent = v.GetString("crawler.user_agent")
	}
	if v.IsSet("crawler.request_timeout") {
		c.RequestTimeout = v.GetDuration("crawler.request_timeout")
	}
	return c
}

// Deepened returns the --deep preset: the same crawl with raised depth and
// request limits for a full re-ingest.
func (c Config) Deepened() Config {
	c.MaxDepth *= 2
	c.MaxRequests *= 4
	return c
}

// Validate checks for configurations that must be rejected before a run
// starts. Profiles left unconfigured (no seeds, no domains) are refused
// rather than run as empty crawls.
func (c Config) Validate() error {
	if c.CrawlType == "" {
		return NewConfigError("crawl_type", "must be set")
	}
	if len(c.StartURLs) == 0 {
		return NewConfigError("start_urls", "must include at least one seed URL")
	}
	for _, raw := range c.StartURLs {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return NewConfigError("start_urls", "invalid seed URL "+raw)
		}
	}
	if len(c.AllowedDomains) == 0 {
		return NewConfigError("allowed_domains", "must include at least one domain")
	}
	if c.MaxDepth < 0 {
		return NewConfigError("max_depth", "must be >= 0")
	}
	if c.MaxConcurrency <= 0 {
		return NewConfigError("max_concurrency", "must be > 0")
	}
	if c.MaxRequests <= 0 {
		return NewConfigError("max_requests", "must be > 0")
	}
	if c.MinDelay < 0 {
		return NewConfigError("min_delay", "must be >= 0")
	}
	if c.MaxDelay < c.MinDelay {
		return NewConfigError("max_delay", "must be >= min_delay")
	}
	if c.RequestsPerMinute <= 0 {
		return NewConfigError("requests_per_minute", "must be > 0")
	}
	if c.UserAgent == "" {
		return NewConfigError("user_agent", "must be set")
	}
	if c.RequestTimeout <= 0 {
		return NewConfigError("request_timeout", "must be > 0")
	}
	return nil
}
