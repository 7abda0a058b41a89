package exporter

import (
	"context"
	"errors"
	"time"

	"invoice-export-service/internal/config"
	"invoice-export-service/internal/model"
	"invoice-export-service/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrBusy reports that a run of the same export kind is already active,
// either in this process or in another one. Callers surface it as a
// rejection, not as a failure.
var ErrBusy = errors.New("an export of this kind is already running")

// Service owns the export synchronization core: the request lock
// registry, the watermark ledger and the per-kind process locks. One
// instance per process, constructed at startup and passed by reference.
type Service struct {
	db  *store.DB
	cfg *config.Config
	log zerolog.Logger

	registry   *LockRegistry
	watermarks *WatermarkStore

	invoiceLock   *ProcessLock
	basicDataLock *ProcessLock
}

// NewService wires the core against an open source store.
func NewService(db *store.DB, cfg *config.Config, log zerolog.Logger) (*Service, error) {
	watermarks, err := NewWatermarkStore(cfg.StateDir, cfg.SafetyBuffer, false, log)
	if err != nil {
		return nil, err
	}
	return &Service{
		db:            db,
		cfg:           cfg,
		log:           log,
		registry:      NewLockRegistry(),
		watermarks:    watermarks,
		invoiceLock:   NewProcessLock(cfg.StateDir, KindInvoices),
		basicDataLock: NewProcessLock(cfg.StateDir, KindBasicData),
	}, nil
}

// Status reports per-kind run status without touching the file system.
func (s *Service) Status() map[string]model.SyncStatus {
	return map[string]model.SyncStatus{
		KindInvoices:  s.registry.Status(KindInvoices),
		KindBasicData: s.registry.Status(KindBasicData),
	}
}

// Watermarks exposes the ledger for status reporting.
func (s *Service) Watermarks() ([]model.WatermarkRecord, error) {
	return s.watermarks.Records()
}

// Run is one in-flight export. The relay streams its events; Done closes
// when the run has finished and both locks are released.
type Run struct {
	ID        string
	Kind      string
	Mode      string
	Params    interface{}
	StartedAt time.Time
	Relay     *Relay

	done    chan struct{}
	summary interface{}
	err     error
}

// Done closes once the run has completed, on every exit path.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run completes.
func (r *Run) Wait() { <-r.done }

// Result returns the terminal summary and error. Valid after Done.
func (r *Run) Result() (interface{}, error) { return r.summary, r.err }

// start acquires both locks for kind and launches body in the background.
// The request lock answers busy fast; the process lock is also taken here
// so a cross-process conflict is rejected before any stream begins. Both
// are released on every exit path of the run goroutine.
func (s *Service) start(kind, mode string, params interface{}, heartbeat time.Duration, body func(ctx context.Context, run *Run) (interface{}, error)) (*Run, error) {
	if !s.registry.TryAcquire(kind) {
		return nil, ErrBusy
	}

	lock := s.invoiceLock
	if kind == KindBasicData {
		lock = s.basicDataLock
	}
	ok, err := lock.Acquire()
	if err != nil {
		s.registry.Release(kind)
		return nil, err
	}
	if !ok {
		s.registry.Release(kind)
		return nil, ErrBusy
	}

	run := &Run{
		ID:        uuid.New().String(),
		Kind:      kind,
		Mode:      mode,
		Params:    params,
		StartedAt: time.Now().UTC(),
		Relay:     NewRelay(heartbeat),
		done:      make(chan struct{}),
	}

	// The run deliberately detaches from the caller's context: an
	// abandoned stream stops receiving events but partition work is not
	// preemptible mid-write, so the run finishes in the background.
	go func() {
		defer close(run.done)
		defer s.registry.Release(kind)
		defer lock.Release()

		summary, err := body(context.Background(), run)
		run.summary = summary
		run.err = err
		if err != nil {
			s.log.Error().Err(err).Str("kind", kind).Str("run_id", run.ID).Msg("export run failed")
		}
	}()

	return run, nil
}
