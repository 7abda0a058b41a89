package exporter

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// ProcessLock is the cross-process guard for one export kind: an advisory
// exclusive lock on a marker file under the state directory. It keeps a
// scheduled run and a manually triggered one from racing on the same
// watermark ledger and output tree.
//
// A lock file left behind by an uncleanly killed process holds no flock
// and does not block new runs, but if a run dies while its flock is held
// by a stuck descendant the operator must confirm process death and
// remove <state_dir>/<kind>.lock by hand. Deliberately not auto-resolved.
type ProcessLock struct {
	fl   *flock.Flock
	mu   sync.Mutex
	held bool
}

// NewProcessLock builds the lock for one export kind ("invoices" or
// "basic-data").
func NewProcessLock(stateDir, kind string) *ProcessLock {
	return &ProcessLock{fl: flock.New(filepath.Join(stateDir, kind+".lock"))}
}

// Acquire attempts the lock without blocking. (false, nil) means another
// process legitimately holds it; a non-nil error means the lock file
// could not even be created (missing directory, permissions) and the
// caller must surface that as a setup failure, not as "busy".
func (l *ProcessLock) Acquire() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.fl.Path()), 0o755); err != nil {
		return false, fmt.Errorf("create lock dir: %w", err)
	}
	ok, err := l.fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire process lock %s: %w", l.fl.Path(), err)
	}
	l.held = ok
	return ok, nil
}

// Release unlocks and removes the marker file. Safe to call when not
// held; runs on every exit path of an export.
func (l *ProcessLock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held {
		return
	}
	_ = l.fl.Unlock()
	_ = os.Remove(l.fl.Path())
	l.held = false
}

// Path reports the lock file location, for operator diagnostics.
func (l *ProcessLock) Path() string {
	return l.fl.Path()
}
