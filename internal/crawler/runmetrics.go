package crawler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// MetricsSnapshot is the immutable summary of one crawl run. One JSON line
// per run is appended to the metrics log.
type MetricsSnapshot struct {
	Timestamp          time.Time `json:"timestamp"`
	CrawlType          string    `json:"crawl_type"`
	URLsProcessed      int       `json:"urls_processed"`
	URLsSkipped        int       `json:"urls_skipped"`
	SuccessfulRequests int       `json:"successful_requests"`
	FailedRequests     int       `json:"failed_requests"`
	SuccessRate        float64   `json:"success_rate"`
	DurationSeconds    float64   `json:"duration_seconds"`
}

// Recorder accumulates run counters as tasks complete. All methods are safe
// for concurrent use.
//
// Robots skips are tracked separately: they are neither successes nor
// failures and stay out of the success-rate denominator.
type Recorder struct {
	mu        sync.Mutex
	crawlType string
	started   time.Time
	succeeded int
	failed    int
	skipped   int
}

// NewRecorder starts the run clock.
func NewRecorder(crawlType string) *Recorder {
	return &Recorder{
		crawlType: crawlType,
		started:   time.Now(),
	}
}

// Success records a completed fetch-and-ingest.
func (r *Recorder) Success() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.succeeded++
}

// Failure records a terminally failed task.
func (r *Recorder) Failure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
}

// Skip records a robots.txt skip.
func (r *Recorder) Skip() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped++
}

// Processed returns successes plus failures so far.
func (r *Recorder) Processed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.succeeded + r.failed
}

// Finalize computes a snapshot from the counters so far. The success rate
// is 0 when nothing was processed.
func (r *Recorder) Finalize() MetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	processed := r.succeeded + r.failed
	rate := 0.0
	if processed > 0 {
		rate = float64(r.succeeded) / float64(processed) * 100
	}
	return MetricsSnapshot{
		Timestamp:          time.Now().UTC(),
		CrawlType:          r.crawlType,
		URLsProcessed:      processed,
		URLsSkipped:        r.skipped,
		SuccessfulRequests: r.succeeded,
		FailedRequests:     r.failed,
		SuccessRate:        rate,
		DurationSeconds:    time.Since(r.started).Seconds(),
	}
}

// AppendMetrics appends the snapshot as one JSON line to path, creating the
// directory as needed.
func AppendMetrics(path string, snap MetricsSnapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open metrics log: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()
	if _, err := file.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("append metrics: %w", err)
	}
	return nil
}
