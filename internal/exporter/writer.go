package exporter

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"invoice-export-service/internal/model"
	"invoice-export-service/pkg/utils"
)

// requiredPayloadFields are the identity and date fields every exported
// UBL document must carry.
var requiredPayloadFields = []string{"ID", "IssueDate"}

// validatePayload checks that a raw fext_field value parses as a JSON
// object with the required fields present.
func validatePayload(payload []byte) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return fmt.Errorf("empty payload")
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("payload is not valid JSON: %w", err)
	}
	for _, field := range requiredPayloadFields {
		if _, ok := doc[field]; !ok {
			return fmt.Errorf("payload missing required field %s", field)
		}
	}
	return nil
}

// ensurePartitionDir creates {root}/{tenant}/invoices/{country}.
func ensurePartitionDir(root string, part model.Partition) (string, error) {
	dir := filepath.Join(root, part.TenantID, "invoices", part.Country)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create partition dir: %w", err)
	}
	return dir, nil
}

// InvoiceFilename builds the deterministic output name for one invoice:
// {YYYYMMDD}+{safe_invoice_no}.json, plus .gz when compressed.
func InvoiceFilename(issueDate, invoiceNo string, compress bool) string {
	name := fmt.Sprintf("%s+%s.json", issueDate, utils.SanitizeFilename(invoiceNo))
	if compress {
		name += ".gz"
	}
	return name
}

// writeInvoiceFile writes one invoice payload, indented, optionally
// gzipped.
func writeInvoiceFile(dir string, inv model.Invoice, compress bool) error {
	var doc interface{}
	if err := json.Unmarshal(inv.Payload, &doc); err != nil {
		return fmt.Errorf("reparse payload for %s: %w", inv.InvoiceNo, err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(dir, InvoiceFilename(inv.IssueDate, inv.InvoiceNo, compress))
	if !compress {
		return os.WriteFile(path, data, 0o644)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write(data); err != nil {
		gz.Close()
		f.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeEnvelope writes a reference data file wrapped in its metadata
// envelope, with the dataset under datasetKey.
func writeEnvelope(path string, meta model.ExportMeta, datasetKey string, dataset interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	payload := map[string]interface{}{
		"meta":     meta,
		datasetKey: dataset,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
