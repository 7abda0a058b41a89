package exporter

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"invoice-export-service/internal/model"
	"invoice-export-service/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, db *store.DB, outputDir string, workers int, compress, dryRun bool) *Pool {
	t.Helper()
	return NewPool(db, NewRelay(time.Minute), zerolog.Nop(), outputDir, workers, compress, dryRun)
}

func TestPoolExportsPartition(t *testing.T) {
	db := newTestDB(t)
	out := t.TempDir()
	issued := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	updated := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)

	seedInvoice(t, db, "T1", "MY", "INV-001", issued, updated)
	seedInvoice(t, db, "T1", "MY", "INV-002", issued, updated)

	pool := newTestPool(t, db, out, 2, false, false)
	results := pool.Run(context.Background(), []partitionJob{
		{partition: model.Partition{TenantID: "T1", Country: "MY", InvoiceCount: 2}},
	})

	require.Len(t, results, 1)
	assert.Equal(t, model.StatusSuccess, results[0].Status)
	assert.Equal(t, 2, results[0].Processed)
	assert.Zero(t, results[0].Skipped)

	// Round trip: the archived document equals the source payload.
	path := filepath.Join(out, "T1", "invoices", "MY", "20260801+INV-001.json")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var got, want map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &got))
	require.NoError(t, json.Unmarshal([]byte(ublPayload("INV-001", "2026-08-01")), &want))
	assert.Equal(t, want, got)

	total, written, failed, skipped := pool.Counters()
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, written)
	assert.Zero(t, failed)
	assert.Zero(t, skipped)
}

func TestPoolSanitizesInvoiceNumbersInFilenames(t *testing.T) {
	db := newTestDB(t)
	out := t.TempDir()
	issued := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)

	seedInvoice(t, db, "T1", "SG", "INV/2026/0042", issued, issued)

	pool := newTestPool(t, db, out, 1, false, false)
	results := pool.Run(context.Background(), []partitionJob{
		{partition: model.Partition{TenantID: "T1", Country: "SG"}},
	})

	require.Len(t, results, 1)
	require.Equal(t, model.StatusSuccess, results[0].Status)

	_, err := os.Stat(filepath.Join(out, "T1", "invoices", "SG", "20260715+INV_2026_0042.json"))
	assert.NoError(t, err, "slashes in the invoice number must not create directories")
}

func TestPoolSkipsMalformedPayloads(t *testing.T) {
	db := newTestDB(t)
	out := t.TempDir()
	issued := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	seedInvoice(t, db, "T1", "MY", "GOOD-1", issued, issued)
	// Eligible row whose payload is missing IssueDate.
	require.NoError(t, db.InsertInvoice("T1", "MY", "BAD-1", issued, 3, `{"ID": "BAD-1"}`, issued))
	// Eligible row whose payload is not JSON at all.
	require.NoError(t, db.InsertInvoice("T1", "MY", "BAD-2", issued, 3, `<Invoice/>`, issued))

	pool := newTestPool(t, db, out, 1, false, false)
	results := pool.Run(context.Background(), []partitionJob{
		{partition: model.Partition{TenantID: "T1", Country: "MY"}},
	})

	require.Len(t, results, 1)
	// Bad rows never fail the partition; they are counted and dropped.
	assert.Equal(t, model.StatusSuccess, results[0].Status)
	assert.Equal(t, 1, results[0].Processed)
	assert.Equal(t, 2, results[0].Skipped)

	_, _, _, skipped := pool.Counters()
	assert.Equal(t, 2, skipped)
}

func TestPoolUnknownCountryPartition(t *testing.T) {
	db := newTestDB(t)
	out := t.TempDir()
	issued := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	seedInvoice(t, db, "T1", "", "NOCOUNTRY-1", issued, issued)

	pool := newTestPool(t, db, out, 1, false, false)
	results := pool.Run(context.Background(), []partitionJob{
		{partition: model.Partition{TenantID: "T1", Country: "UNKNOWN"}},
	})

	require.Len(t, results, 1)
	assert.Equal(t, model.StatusSuccess, results[0].Status)

	_, err := os.Stat(filepath.Join(out, "T1", "invoices", "UNKNOWN", "20260801+NOCOUNTRY-1.json"))
	assert.NoError(t, err)
}

func TestPoolWindowFiltersToNoData(t *testing.T) {
	db := newTestDB(t)
	issued := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	updated := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)

	seedInvoice(t, db, "T1", "MY", "INV-001", issued, updated)

	// Window entirely after the row's update time.
	window := &model.TimeWindow{
		After: updated.Add(time.Hour),
		Until: updated.Add(2 * time.Hour),
	}
	pool := newTestPool(t, db, t.TempDir(), 1, false, false)
	results := pool.Run(context.Background(), []partitionJob{
		{partition: model.Partition{TenantID: "T1", Country: "MY"}, window: window},
	})

	require.Len(t, results, 1)
	assert.Equal(t, model.StatusNoData, results[0].Status)
	assert.Zero(t, results[0].Processed)
}

func TestPoolCompressedOutput(t *testing.T) {
	db := newTestDB(t)
	out := t.TempDir()
	issued := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	seedInvoice(t, db, "T1", "MY", "INV-001", issued, issued)

	pool := newTestPool(t, db, out, 1, true, false)
	results := pool.Run(context.Background(), []partitionJob{
		{partition: model.Partition{TenantID: "T1", Country: "MY"}},
	})
	require.Len(t, results, 1)
	require.Equal(t, model.StatusSuccess, results[0].Status)

	f, err := os.Open(filepath.Join(out, "T1", "invoices", "MY", "20260801+INV-001.json.gz"))
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	var doc map[string]interface{}
	require.NoError(t, json.NewDecoder(gz).Decode(&doc))
	assert.Equal(t, "INV-001", doc["ID"])
}

func TestPoolDryRunWritesNothing(t *testing.T) {
	db := newTestDB(t)
	out := filepath.Join(t.TempDir(), "archive")
	issued := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	seedInvoice(t, db, "T1", "MY", "INV-001", issued, issued)

	pool := newTestPool(t, db, out, 1, false, true)
	results := pool.Run(context.Background(), []partitionJob{
		{partition: model.Partition{TenantID: "T1", Country: "MY"}},
	})

	require.Len(t, results, 1)
	assert.Equal(t, model.StatusSuccess, results[0].Status)
	assert.Equal(t, 1, results[0].Processed)

	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err), "dry run must not create the archive root")
}
