// Package migrate moves archives from the legacy context-rooted layout
// into the tenant-isolated layout:
//
//	context/invoices/{tenant}/{country}   -> tenant-data/{tenant}/invoices/{country}
//	context/pending-invoices/{tenant}     -> tenant-data/{tenant}/pending-invoices
//
// One-off operational tooling; safe to re-run, existing targets are
// skipped.
package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Migrator performs the directory migration.
type Migrator struct {
	LegacyDir string // old context root
	TenantDir string // new tenant-data root
	DryRun    bool
	log       zerolog.Logger
}

// Summary reports what a migration run did.
type Summary struct {
	InvoiceTenants int `json:"invoice_tenants"`
	PendingTenants int `json:"pending_tenants"`
	Skipped        int `json:"skipped"`
}

// New builds a migrator.
func New(legacyDir, tenantDir string, dryRun bool, log zerolog.Logger) *Migrator {
	return &Migrator{LegacyDir: legacyDir, TenantDir: tenantDir, DryRun: dryRun, log: log}
}

// Run migrates both legacy trees.
func (m *Migrator) Run() (Summary, error) {
	var s Summary

	n, skipped, err := m.migrateTree(filepath.Join(m.LegacyDir, "invoices"), "invoices")
	if err != nil {
		return s, err
	}
	s.InvoiceTenants = n
	s.Skipped += skipped

	n, skipped, err = m.migrateTree(filepath.Join(m.LegacyDir, "pending-invoices"), "pending-invoices")
	if err != nil {
		return s, err
	}
	s.PendingTenants = n
	s.Skipped += skipped

	m.log.Info().
		Int("invoice_tenants", s.InvoiceTenants).
		Int("pending_tenants", s.PendingTenants).
		Int("skipped", s.Skipped).
		Msg("tenant data migration complete")
	return s, nil
}

// migrateTree moves every tenant directory under src to
// {tenantDir}/{tenant}/{kind}.
func (m *Migrator) migrateTree(src, kind string) (moved, skipped int, err error) {
	entries, err := os.ReadDir(src)
	if os.IsNotExist(err) {
		m.log.Warn().Str("dir", src).Msg("legacy directory does not exist, nothing to migrate")
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("read legacy dir %s: %w", src, err)
	}

	var tenants []string
	for _, e := range entries {
		// hidden entries such as .export_state stay where they are
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		tenants = append(tenants, e.Name())
	}
	sort.Strings(tenants)

	for _, tenant := range tenants {
		from := filepath.Join(src, tenant)
		to := filepath.Join(m.TenantDir, tenant, kind)

		if m.DryRun {
			m.log.Info().Str("from", from).Str("to", to).Msg("[dry run] would move")
			moved++
			continue
		}

		if _, err := os.Stat(to); err == nil {
			m.log.Warn().Str("to", to).Msg("target already exists, skipping")
			skipped++
			continue
		}
		if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
			return moved, skipped, fmt.Errorf("create %s: %w", filepath.Dir(to), err)
		}
		if err := os.Rename(from, to); err != nil {
			return moved, skipped, fmt.Errorf("move %s to %s: %w", from, to, err)
		}
		m.log.Info().Str("from", from).Str("to", to).Msg("moved")
		moved++
	}
	return moved, skipped, nil
}
