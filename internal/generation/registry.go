package generation

import (
	"context"
	"sync"
)

// CancelRegistry tracks the cancellation handle for every in-flight
// generation task, keyed by route or feature id. Beginning a task for a key
// cancels and supersedes any prior task for the same key, so per-key work is
// ordered last-write-wins. The registry is injected into the coordinator and
// batch processor so tests can assert on its contents.
type CancelRegistry struct {
	mu        sync.Mutex
	nextEpoch uint64
	entries   map[string]*registryEntry
}

type registryEntry struct {
	cancel context.CancelFunc
	epoch  uint64
}

// NewCancelRegistry creates an empty registry
func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{
		entries: make(map[string]*registryEntry),
	}
}

// Begin registers a new task for key, cancelling any task currently
// registered under the same key. It returns the task's context and an epoch
// identifying this registration; the epoch is what decides, at completion
// time, whether the task is still the newest one for its key.
func (r *CancelRegistry) Begin(parent context.Context, key string) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)

	r.mu.Lock()
	defer r.mu.Unlock()

	if prior, ok := r.entries[key]; ok {
		prior.cancel()
	}
	r.nextEpoch++
	epoch := r.nextEpoch
	r.entries[key] = &registryEntry{cancel: cancel, epoch: epoch}
	return ctx, epoch
}

// IsCurrent reports whether the registration identified by (key, epoch) is
// still the newest one for its key.
func (r *CancelRegistry) IsCurrent(key string, epoch uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	return ok && entry.epoch == epoch
}

// Complete commits a finished task. If (key, epoch) is still current, commit
// runs while the registration is held and the entry is then removed,
// returning true. If a newer registration has superseded this one, commit is
// not run and Complete returns false. Running commit under the registry lock
// is what guarantees a superseded task can never write over a newer result.
func (r *CancelRegistry) Complete(key string, epoch uint64, commit func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok || entry.epoch != epoch {
		return false
	}
	if commit != nil {
		commit()
	}
	entry.cancel()
	delete(r.entries, key)
	return true
}

// Finish removes the registration identified by (key, epoch) without
// committing anything. A no-op if a newer registration has taken over.
func (r *CancelRegistry) Finish(key string, epoch uint64) {
	r.Complete(key, epoch, nil)
}

// Cancel aborts the in-flight task for key, if any, and removes it
func (r *CancelRegistry) Cancel(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		return false
	}
	entry.cancel()
	delete(r.entries, key)
	return true
}

// CancelAll aborts every in-flight task
func (r *CancelRegistry) CancelAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.entries)
	for key, entry := range r.entries {
		entry.cancel()
		delete(r.entries, key)
	}
	return n
}

// Active returns the number of in-flight registrations
func (r *CancelRegistry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
