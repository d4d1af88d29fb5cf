package crawler

// Frontier is the per-session BFS state: a FIFO pending queue plus the sets
// needed to keep insertion and fetching idempotent. It is scoped to one
// traversal and holds no locks; crawls are single-threaded.
type Frontier struct {
	visited map[string]struct{}
	queued  map[string]struct{}
	pending []string
}

// NewFrontier returns a frontier seeded with the root URL.
func NewFrontier(root string) *Frontier {
	f := &Frontier{
		visited: make(map[string]struct{}),
		queued:  make(map[string]struct{}),
	}
	f.Push(root)
	return f
}

// Push enqueues a URL unless it was already visited or queued.
// Returns whether the URL was accepted.
func (f *Frontier) Push(url string) bool {
	if _, ok := f.visited[url]; ok {
		return false
	}
	if _, ok := f.queued[url]; ok {
		return false
	}
	f.queued[url] = struct{}{}
	f.pending = append(f.pending, url)
	return true
}

// Pop removes and returns the front URL. Returns false when empty.
func (f *Frontier) Pop() (string, bool) {
	if len(f.pending) == 0 {
		return "", false
	}
	url := f.pending[0]
	f.pending = f.pending[1:]
	delete(f.queued, url)
	return url, true
}

// MarkVisited records the URL as fetched.
func (f *Frontier) MarkVisited(url string) {
	f.visited[url] = struct{}{}
}

// Visited reports whether the URL was already fetched.
func (f *Frontier) Visited(url string) bool {
	_, ok := f.visited[url]
	return ok
}

// VisitedCount returns how many URLs have been fetched this session.
func (f *Frontier) VisitedCount() int {
	return len(f.visited)
}

// Len returns the number of pending URLs.
func (f *Frontier) Len() int {
	return len(f.pending)
}
