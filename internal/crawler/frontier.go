package crawler

// frontier is the FIFO work queue plus the set of every URL ever enqueued.
// A URL enters the queue at most once, so once dequeued it is never revisited.
type frontier struct {
	queue []string
	head  int
	seen  map[string]struct{}
}

func newFrontier() *frontier {
	return &frontier{seen: make(map[string]struct{})}
}

// Push enqueues key unless it was seen before. It reports whether key was added.
func (f *frontier) Push(key string) bool {
	if _, ok := f.seen[key]; ok {
		return false
	}
	f.seen[key] = struct{}{}
	f.queue = append(f.queue, key)
	return true
}

// Pop dequeues the oldest URL.
func (f *frontier) Pop() (string, bool) {
	if f.head >= len(f.queue) {
		return "", false
	}
	next := f.queue[f.head]
	f.queue[f.head] = ""
	f.head++
	// Compact once the consumed prefix dominates the backing array.
	if f.head > 64 && f.head*2 >= len(f.queue) {
		f.queue = append(f.queue[:0:0], f.queue[f.head:]...)
		f.head = 0
	}
	return next, true
}

// Len returns the number of queued URLs.
func (f *frontier) Len() int {
	return len(f.queue) - f.head
}
