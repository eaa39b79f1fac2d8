package crawler

import "sync"

// Frontier is the FIFO queue of URLs discovered but not yet fetched. It
// deduplicates against every URL ever enqueued, enforces the depth cap, and
// admits at most maxRequests tasks over the life of the run. URLs are marked
// visited at enqueue time so the same link discovered concurrently by two
// workers produces one task.
type Frontier struct {
	mu          sync.Mutex
	queue       []Task
	visited     map[string]struct{}
	admitted    int
	outstanding int
	maxDepth    int
	maxRequests int
}

// NewFrontier builds a frontier with the run's depth and request caps.
func NewFrontier(maxDepth, maxRequests int) *Frontier {
	return &Frontier{
		visited:     make(map[string]struct{}),
		maxDepth:    maxDepth,
		maxRequests: maxRequests,
	}
}

// Enqueue admits the task unless its URL was already seen, its depth exceeds
// the cap, or the run's request budget is exhausted. It reports whether the
// task was accepted.
func (f *Frontier) Enqueue(task Task) bool {
	normalized, err := NormalizeURL(task.URL)
	if err != nil {
		return false
	}
	task.URL = normalized

	f.mu.Lock()
	defer f.mu.Unlock()

	if task.Depth > f.maxDepth {
		return false
	}
	if f.admitted >= f.maxRequests {
		return false
	}
	if _, seen := f.visited[normalized]; seen {
		return false
	}
	f.visited[normalized] = struct{}{}
	f.admitted++
	f.queue = append(f.queue, task)
	return true
}

// Next returns the next task in FIFO order. ok is false when no task is
// currently available; done is additionally true when the crawl is finished:
// the queue is empty and no dequeued task is still in flight. Callers must
// pair every ok dequeue with a Done call.
func (f *Frontier) Next() (task Task, ok bool, done bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return Task{}, false, f.outstanding == 0
	}
	task = f.queue[0]
	f.queue = f.queue[1:]
	f.outstanding++
	return task, true, false
}

// Done marks a previously dequeued task as fully processed.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outstanding--
}

// Seen reports whether the URL has been enqueued or processed this run.
func (f *Frontier) Seen(rawURL string) bool {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, seen := f.visited[normalized]
	return seen
}

// Admitted returns how many tasks have been accepted so far.
func (f *Frontier) Admitted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.admitted
}

// Pending returns the number of queued, not yet dequeued tasks.
func (f *Frontier) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}
