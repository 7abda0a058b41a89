package exporter

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"invoice-export-service/internal/config"
	"invoice-export-service/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// newTestDB opens a throwaway sqlite source store with the schema applied.
func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "source.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())
	return db
}

// testConfig points every directory at the test's temp space.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		OutputDir:         filepath.Join(root, "tenant-data"),
		BasicDataDir:      filepath.Join(root, "basic-data"),
		StateDir:          filepath.Join(root, "state"),
		LegacyContextDir:  filepath.Join(root, "context"),
		Workers:           2,
		SafetyBuffer:      time.Second,
		HeartbeatInterval: time.Minute,
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestService(t *testing.T, db *store.DB) *Service {
	t.Helper()
	svc, err := NewService(db, testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	return svc
}

// ublPayload builds a minimal valid invoice document.
func ublPayload(id, issueDate string) string {
	return fmt.Sprintf(`{"ID": %q, "IssueDate": %q, "DocumentCurrencyCode": "MYR", "LegalMonetaryTotal": {"PayableAmount": "100.00"}}`, id, issueDate)
}

// seedInvoice inserts one issued, exportable invoice row.
func seedInvoice(t *testing.T, db *store.DB, tenant, country, invoiceNo string, issued, updated time.Time) {
	t.Helper()
	err := db.InsertInvoice(tenant, country, invoiceNo, issued, 3, ublPayload(invoiceNo, issued.Format("2006-01-02")), updated)
	require.NoError(t, err)
}
