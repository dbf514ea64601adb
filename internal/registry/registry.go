package registry

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dreamware/ringdb/internal/objectmodel"
)

// Reload re-fetches the root object from its owning ring, invoked by
// Purge in place of evicting it.
type Reload func(id int64) (*objectmodel.WebObject, error)

type entry struct {
	obj       *objectmodel.WebObject
	expiresAt time.Time
}

// Registry is the process-local cache
type Registry struct {
	ttl         time.Duration
	minPurgeGap time.Duration
	reload      Reload

	mu      sync.RWMutex
	entries map[int64]*entry
	rootID  int64
	hasRoot bool

	purging   atomic.Bool
	lastPurge time.Time
}

// New returns an empty registry. Entries are considered expirable after
// ttl; Purge sweeps are skipped if one has run within minPurgeGap.
func New(ttl, minPurgeGap time.Duration) *Registry {
	return &Registry{
		ttl:         ttl,
		minPurgeGap: minPurgeGap,
		entries:     make(map[int64]*entry),
	}
}

// PinRoot designates id as the root object: Purge reloads it via reload
// instead of evicting it when it expires.
func (r *Registry) PinRoot(id int64, reload Reload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rootID = id
	r.hasRoot = true
	r.reload = reload
}

// Get returns the cached object for id, or nil if absent.
func (r *Registry) Get(id int64) *objectmodel.WebObject {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	return e.obj
}

// Set caches obj under its own id. obj must already have an id assigned.
func (r *Registry) Set(obj *objectmodel.WebObject) error {
	if obj == nil || obj.ID == 0 {
		return fmt.Errorf("registry: cannot cache an object with no assigned id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[obj.ID] = &entry{obj: obj, expiresAt: time.Now().Add(r.ttl)}
	return nil
}

// Drop removes id unconditionally, regardless of expiry or root status.
// Used by the engine after a delete so a stale copy never survives a
// removed id.
func (r *Registry) Drop(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Purge walks expired entries and evicts each, except the pinned root,
// which is reloaded in place. A Purge already in flight makes a
// concurrent call a no-op; a call within minPurgeGap of the last
// completed sweep is also a no-op.
func (r *Registry) Purge() error {
	if !r.purging.CompareAndSwap(false, true) {
		return nil
	}
	defer r.purging.Store(false)

	r.mu.Lock()
	if !r.lastPurge.IsZero() && time.Since(r.lastPurge) < r.minPurgeGap {
		r.mu.Unlock()
		return nil
	}
	now := time.Now()
	r.lastPurge = now

	var toReload []int64
	for id, e := range r.entries {
		if now.Before(e.expiresAt) {
			continue
		}
		if r.hasRoot && id == r.rootID {
			toReload = append(toReload, id)
			continue
		}
		delete(r.entries, id)
	}
	r.mu.Unlock()

	for _, id := range toReload {
		if r.reload == nil {
			continue
		}
		obj, err := r.reload(id)
		if err != nil {
			continue
		}
		if err := r.Set(obj); err != nil {
			continue
		}
	}
	return nil
}

// Len reports the number of cached entries, for tests and diagnostics.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
