package exporter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"invoice-export-service/internal/model"

	"github.com/rs/zerolog"
)

const (
	// DefaultSafetyBuffer is subtracted from the current time when
	// computing an export boundary. Rows updated inside the buffer may
	// belong to transactions that are not committed yet, so they are
	// deferred to the next incremental run.
	DefaultSafetyBuffer = 5 * time.Minute

	watermarkFile = "invoice_watermarks.txt"

	// RFC3339Nano keeps the reloaded boundary identical to the one the
	// run used; plain RFC3339 would truncate to the second and re-export
	// the sub-second sliver on the next pass.
	watermarkTime = time.RFC3339Nano
)

// WatermarkStore is the durable per-tenant export boundary ledger. One
// pipe-delimited line per tenant:
//
//	tenant_id|boundary_time|record_count|status
//
// The ledger is only ever replaced atomically (temp file + rename), so a
// concurrent reader never observes a half-written file. One instance per
// process; construct at startup and pass by reference.
type WatermarkStore struct {
	path   string
	buffer time.Duration
	dryRun bool
	log    zerolog.Logger

	// shared across dry-run views of the same ledger
	mu *sync.Mutex
}

// NewWatermarkStore opens (or starts) the ledger under stateDir. A ledger
// with unrecognized content is quarantined with a timestamped suffix and
// replaced with a fresh one: losing a malformed watermark re-exports some
// rows, which is safe, while refusing to start is not.
func NewWatermarkStore(stateDir string, buffer time.Duration, dryRun bool, log zerolog.Logger) (*WatermarkStore, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	if buffer <= 0 {
		buffer = DefaultSafetyBuffer
	}
	s := &WatermarkStore{
		path:   filepath.Join(stateDir, watermarkFile),
		buffer: buffer,
		dryRun: dryRun,
		log:    log,
		mu:     &sync.Mutex{},
	}
	if err := s.validateOrQuarantine(); err != nil {
		return nil, err
	}
	return s, nil
}

// WithDryRun returns a view of the same ledger with the dry-run flag set
// as given. Views share one mutex, so a dry-run view and the live store
// still serialize against each other.
func (s *WatermarkStore) WithDryRun(dryRun bool) *WatermarkStore {
	view := *s
	view.dryRun = dryRun
	return &view
}

// Boundary computes the current export boundary: now minus the safety
// buffer, in UTC. Everything at or before the boundary is stable.
func (s *WatermarkStore) Boundary() time.Time {
	return time.Now().UTC().Add(-s.buffer)
}

// LastBoundary returns the tenant's recorded boundary, or the Unix epoch
// when the tenant has never been exported.
func (s *WatermarkStore) LastBoundary(tenantID string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		s.log.Warn().Err(err).Msg("watermark ledger unreadable, treating tenant as never exported")
		return time.Unix(0, 0).UTC()
	}
	for _, r := range records {
		if r.TenantID == tenantID {
			return r.Boundary
		}
	}
	return time.Unix(0, 0).UTC()
}

// Records returns the full ledger, for status reporting.
func (s *WatermarkStore) Records() ([]model.WatermarkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Update replaces the tenant's ledger line (appending if absent) and
// atomically renames the rewritten ledger into place. Called after every
// tenant-scoped incremental pass, including zero-record passes: advancing
// the watermark on a no-op run records that the tenant was checked up to
// that boundary. In dry-run mode the update is logged and skipped.
func (s *WatermarkStore) Update(tenantID string, boundary time.Time, count int, status string) error {
	if s.dryRun {
		s.log.Info().
			Str("tenant", tenantID).
			Time("boundary", boundary).
			Int("count", count).
			Msg("[dry run] skipping watermark update")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return fmt.Errorf("load watermark ledger: %w", err)
	}

	replaced := false
	for i := range records {
		if records[i].TenantID == tenantID {
			records[i] = model.WatermarkRecord{TenantID: tenantID, Boundary: boundary, RecordCount: count, Status: status}
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, model.WatermarkRecord{TenantID: tenantID, Boundary: boundary, RecordCount: count, Status: status})
	}

	return s.replace(records)
}

// replace writes the full ledger to a temp file in the same directory and
// renames it over the live one. The rename is the only visible state
// transition; a crash in between leaves the previous ledger intact.
func (s *WatermarkStore) replace(records []model.WatermarkRecord) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), watermarkFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, r := range records {
		fmt.Fprintf(w, "%s|%s|%d|%s\n", r.TenantID, r.Boundary.UTC().Format(watermarkTime), r.RecordCount, r.Status)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *WatermarkStore) load() ([]model.WatermarkRecord, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseLedger(f)
}

func parseLedger(r io.Reader) ([]model.WatermarkRecord, error) {
	var records []model.WatermarkRecord
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) != 4 {
			return nil, fmt.Errorf("malformed watermark line: %q", line)
		}
		boundary, err := time.Parse(watermarkTime, parts[1])
		if err != nil {
			return nil, fmt.Errorf("malformed boundary in line %q: %w", line, err)
		}
		count, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("malformed count in line %q: %w", line, err)
		}
		records = append(records, model.WatermarkRecord{
			TenantID:    parts[0],
			Boundary:    boundary.UTC(),
			RecordCount: count,
			Status:      parts[3],
		})
	}
	return records, scanner.Err()
}

// validateOrQuarantine moves an unparseable ledger aside and starts fresh.
func (s *WatermarkStore) validateOrQuarantine() error {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	_, parseErr := parseLedger(f)
	f.Close()
	if parseErr == nil {
		return nil
	}

	quarantine := fmt.Sprintf("%s.corrupt-%s", s.path, time.Now().UTC().Format("20060102T150405"))
	if err := os.Rename(s.path, quarantine); err != nil {
		return fmt.Errorf("quarantine corrupt ledger: %w", err)
	}
	s.log.Warn().
		Str("quarantined", quarantine).
		Err(parseErr).
		Msg("watermark ledger was corrupt; starting a fresh one, affected tenants will re-export from epoch")
	return nil
}
