package crawler

import (
	"net/http"
	"time"
)

// Task is one unit of crawl work: a URL plus the depth at which it was
// discovered. Tasks are created when a link passes the filter chain and are
// consumed exactly once by the engine.
type Task struct {
	URL            string
	Depth          int
	DiscoveredFrom string
}

// Document is the result of fetching and extracting one page.
type Document struct {
	URL        string
	FinalURL   string
	Title      string
	Text       string
	Links      []string
	HTML       []byte
	StatusCode int
	Headers    http.Header
	FetchedAt  time.Time
}

// ContentLength returns the size of the raw page body.
func (d Document) ContentLength() int {
	return len(d.HTML)
}

// RunState is the lifecycle state of a crawl run.
type RunState string

// Run states reported by the engine.
const (
	RunStateIdle      RunState = "idle"
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateAborted   RunState = "aborted"
)
