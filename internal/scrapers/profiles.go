// Package scrapers holds the declarative per-site crawl profiles. Each
// profile pins the seeds, scope, exclusions, and limits for one source of
// Canadian tax documents.
package scrapers

import (
	"fmt"
	"sort"
	"time"

	"github.com/taxrag/tax-rag-crawler/internal/crawler"
)

// Profile is the static definition of one crawl target.
type Profile struct {
	Name             string
	CrawlType        string
	Collection       string
	Source           string
	StartURLs        []string
	AllowedDomains   []string
	ExcludedPatterns []string
	MaxDepth         int
	MaxConcurrency   int
	MaxRequests      int
}

// Shared exclusions: binary assets and navigation chrome that never carry
// tax content worth embedding.
var commonExclusions = []string{
	"*.pdf",
	"*.zip",
	"*.doc",
	"*.docx",
	"*.xls",
	"*.xlsx",
	"/fra/",
	"mailto:",
	"/search",
	"/recherche",
}

var profiles = map[string]Profile{
	"ita": {
		Name:       "ita",
		CrawlType:  "ita",
		Collection: "ita-collection",
		Source:     "ita",
		StartURLs: []string{
			"https://laws-lois.justice.gc.ca/eng/acts/I-3.3/",
		},
		AllowedDomains: []string{
			"https://laws-lois.justice.gc.ca/eng/acts/I-3.3/**",
		},
		ExcludedPatterns: append([]string{
			"/PITIndex",
			"/FullText.html",
		}, commonExclusions...),
		MaxDepth:       5,
		MaxConcurrency: 3,
		MaxRequests:    5000,
	},
	"taxlaw": {
		Name:       "taxlaw",
		CrawlType:  "taxlaw",
		Collection: "taxlaw-collection",
		Source:     "taxlaw",
		StartURLs: []string{
			"https://www.canada.ca/en/department-finance/programs/tax-policy.html",
			"https://www.canada.ca/en/department-finance/news.html",
		},
		AllowedDomains: []string{
			"https://www.canada.ca/en/department-finance/**",
		},
		ExcludedPatterns: append([]string{
			"/photos",
			"/videos",
		}, commonExclusions...),
		MaxDepth:       5,
		MaxConcurrency: 3,
		MaxRequests:    5000,
	},
	"cra-forms": {
		Name:       "cra-forms",
		CrawlType:  "cra-forms",
		Collection: "cra-forms-collection",
		Source:     "cra-forms",
		StartURLs: []string{
			"https://www.canada.ca/en/revenue-agency/services/forms-publications.html",
			"https://www.canada.ca/en/revenue-agency/services/forms-publications/forms.html",
		},
		AllowedDomains: []string{
			"https://www.canada.ca/en/revenue-agency/services/forms-publications/**",
		},
		ExcludedPatterns: append([]string{
			"/previous-years",
			"/order-forms",
		}, commonExclusions...),
		MaxDepth:       5,
		MaxConcurrency: 3,
		MaxRequests:    5000,
	},
}

// Names lists the registered profiles, sorted.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named profile, or a ConfigError naming the known
// profiles when it does not exist.
func Lookup(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, crawler.NewConfigError(
			"site",
			fmt.Sprintf("unknown site %q; known sites: %v", name, Names()),
		)
	}
	return p, nil
}

// Config converts the profile into a runnable crawler configuration with
// the standard politeness defaults filled in.
func (p Profile) Config() crawler.Config {
	return crawler.Config{
		CrawlType:         p.CrawlType,
		Collection:        p.Collection,
		Source:            p.Source,
		StartURLs:         append([]string(nil), p.StartURLs...),
		AllowedDomains:    append([]string(nil), p.AllowedDomains...),
		ExcludedPatterns:  append([]string(nil), p.ExcludedPatterns...),
		MaxDepth:          p.MaxDepth,
		MaxConcurrency:    p.MaxConcurrency,
		MaxRequests:       p.MaxRequests,
		MinDelay:          500 * time.Millisecond,
		MaxDelay:          2 * time.Second,
		RequestsPerMinute: 60,
		UserAgent:         "taxcrawler/1.0 (+https://github.com/taxrag/tax-rag-crawler)",
		RequestTimeout:    30 * time.Second,
	}
}
