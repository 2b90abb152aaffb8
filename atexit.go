package splitar

import "sync"

// CleanupRegistry tracks in-flight cleanup actions — one per currently open
// volume — so that an interrupted run (context canceled mid-volume) can
// still unlink whatever partial output it left behind. Unlike a plain
// program-exit hook list, entries come and go as volumes open and close
// across a single run, so Register returns a token used to cancel it once
// the volume commits normally.
type CleanupRegistry struct {
	mu      sync.Mutex
	next    int
	pending map[int]func()
}

// NewCleanupRegistry returns an empty registry.
func NewCleanupRegistry() *CleanupRegistry {
	return &CleanupRegistry{pending: make(map[int]func())}
}

// Register records fn to run if RunPending is called before Cancel(token).
func (r *CleanupRegistry) Register(fn func()) (token int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	token = r.next
	r.pending[token] = fn
	return token
}

// Cancel removes a previously registered cleanup, e.g. because the volume it
// guarded committed successfully.
func (r *CleanupRegistry) Cancel(token int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, token)
}

// RunPending runs and forgets every cleanup still registered, in unspecified
// order. Safe to call more than once.
func (r *CleanupRegistry) RunPending() {
	r.mu.Lock()
	pending := r.pending
	r.pending = make(map[int]func())
	r.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}
