package exporter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"invoice-export-service/internal/model"
	"invoice-export-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedBasicData(t *testing.T, db *store.DB) {
	t.Helper()

	_, err := db.Exec(`INSERT INTO t_currency (fcurrency_code, fname, fenglish_name, fsymbol) VALUES
		('MYR', 'Ringgit', 'Malaysian Ringgit', 'RM'),
		('SGD', 'Dollar', 'Singapore Dollar', '$')`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO t_invoice_type (fid, finvoice_code, fdescription_en, factive) VALUES
		('it-1', '01', 'Invoice', 1),
		('it-2', '02', 'Credit Note', 0)`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO t_code_info (fid, fcountry, fcode_type, fcode, fname, factive, fdelete) VALUES
		('c-1', 'MY', '0001', 'KGM', 'Kilogram', 1, 1),
		('c-2', 'MY', '0001', 'LTR', 'Litre', 1, 1),
		('c-3', '',   '0001', 'XUN', 'Unit', 1, 1),
		('c-4', 'MY', '0001', 'OLD', 'Retired', 0, 1),
		('c-5', 'SG', '0008', 'SR',  'Standard rate', 1, 1)`)
	require.NoError(t, err)
}

// readEnvelope decodes one exported reference data file.
func readEnvelope(t *testing.T, path string) map[string]json.RawMessage {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}

func TestBasicDataExportEndToEnd(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	seedBasicData(t, db)

	run, err := svc.StartBasicDataExport(model.BasicDataExportRequest{})
	require.NoError(t, err)
	result, err := waitRun(t, run)
	require.NoError(t, err)

	summary, ok := result.(model.BasicDataSummary)
	require.True(t, ok)
	assert.True(t, summary.Success)
	assert.Equal(t, 2, summary.GlobalFiles)
	// MY and global for UOM codes, SG for tax category codes.
	assert.Equal(t, 3, summary.CodeFiles)
	// 2 currencies + 1 active invoice type + 4 active codes.
	assert.Equal(t, 7, summary.TotalRecords)

	doc := readEnvelope(t, filepath.Join(svc.cfg.BasicDataDir, "global", "currencies.json"))
	var meta model.ExportMeta
	require.NoError(t, json.Unmarshal(doc["meta"], &meta))
	assert.Equal(t, 2, meta.RecordCount)
	assert.Equal(t, "global", meta.Scope)
	var currencies []model.Currency
	require.NoError(t, json.Unmarshal(doc["currencies"], &currencies))
	require.Len(t, currencies, 2)
	assert.Equal(t, "MYR", currencies[0].Code)

	doc = readEnvelope(t, filepath.Join(svc.cfg.BasicDataDir, "global", "invoice-types.json"))
	var types []model.InvoiceType
	require.NoError(t, json.Unmarshal(doc["invoiceTypes"], &types))
	require.Len(t, types, 1, "inactive types are not exported")
	assert.Equal(t, "01", types[0].InvoiceCode)

	doc = readEnvelope(t, filepath.Join(svc.cfg.BasicDataDir, "codes", "uom-codes", "MY.json"))
	require.NoError(t, json.Unmarshal(doc["meta"], &meta))
	assert.Equal(t, "country", meta.Scope)
	assert.Equal(t, "MY", meta.Country)
	assert.Equal(t, "0001", meta.CodeType)
	var codes []model.CodeInfo
	require.NoError(t, json.Unmarshal(doc["uomCodes"], &codes))
	require.Len(t, codes, 2, "inactive codes are not exported")

	// Codes without a country land in the global file.
	doc = readEnvelope(t, filepath.Join(svc.cfg.BasicDataDir, "codes", "uom-codes", "global.json"))
	require.NoError(t, json.Unmarshal(doc["uomCodes"], &codes))
	require.Len(t, codes, 1)
	assert.Equal(t, "XUN", codes[0].Code)

	doc = readEnvelope(t, filepath.Join(svc.cfg.BasicDataDir, "codes", "tax-category-codes", "SG.json"))
	require.NoError(t, json.Unmarshal(doc["taxCategoryCodes"], &codes))
	require.Len(t, codes, 1)
}

func TestBasicDataExportDryRun(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	seedBasicData(t, db)

	run, err := svc.StartBasicDataExport(model.BasicDataExportRequest{DryRun: true})
	require.NoError(t, err)
	result, err := waitRun(t, run)
	require.NoError(t, err)

	summary := result.(model.BasicDataSummary)
	assert.True(t, summary.Success)
	assert.Equal(t, 7, summary.TotalRecords)

	_, err = os.Stat(svc.cfg.BasicDataDir)
	assert.True(t, os.IsNotExist(err), "dry run must not create the output tree")
}

func TestBasicDataExportEmptySource(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)

	run, err := svc.StartBasicDataExport(model.BasicDataExportRequest{})
	require.NoError(t, err)
	result, err := waitRun(t, run)
	require.NoError(t, err)

	summary := result.(model.BasicDataSummary)
	assert.True(t, summary.Success)
	assert.Zero(t, summary.GlobalFiles)
	assert.Zero(t, summary.CodeFiles)
	assert.Zero(t, summary.TotalRecords)
}
