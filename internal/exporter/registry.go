package exporter

import (
	"sync"
	"time"

	"invoice-export-service/internal/model"
)

// Export kinds guarded by the lock registry.
const (
	KindInvoices  = "invoices"
	KindBasicData = "basic-data"
)

// LockRegistry is the in-process request-level guard: one entry per
// export kind, non-blocking acquisition, pure status reads. Trigger
// requests are a request/response boundary and cannot queue behind an
// arbitrary-length prior run, so a held lock answers "busy" immediately.
//
// Entries are not persisted; after a restart the process lock file is the
// source of truth for cross-process safety. One instance per process.
type LockRegistry struct {
	mu      sync.Mutex
	running map[string]time.Time
}

// NewLockRegistry builds an empty registry.
func NewLockRegistry() *LockRegistry {
	return &LockRegistry{running: make(map[string]time.Time)}
}

// TryAcquire takes the kind's lock if free and records the start time.
// Returns false without waiting when the kind is already running.
func (r *LockRegistry) TryAcquire(kind string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, held := r.running[kind]; held {
		return false
	}
	r.running[kind] = time.Now().UTC()
	return true
}

// Release clears the kind's entry. Idempotent.
func (r *LockRegistry) Release(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, kind)
}

// Status reports whether a run of the kind is active and since when.
func (r *LockRegistry) Status(kind string) model.SyncStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	started, held := r.running[kind]
	if !held {
		return model.SyncStatus{}
	}
	t := started
	return model.SyncStatus{IsRunning: true, StartedAt: &t}
}
