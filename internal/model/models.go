package model

import "time"

// Partition identifies one tenant-country group of invoices. It is both
// the query filter and the directory segment in the archive.
type Partition struct {
	TenantID     string `json:"tenant_id"`
	Country      string `json:"country"` // "UNKNOWN" when the source row has no country
	InvoiceCount int    `json:"invoice_count"`
}

// TimeWindow is the half-open interval (After, Until] applied to
// fupdate_time in incremental mode. A nil window means full export.
type TimeWindow struct {
	After time.Time `json:"after"`
	Until time.Time `json:"until"`
}

// Invoice is one exportable row from t_invoice. Payload is the raw UBL
// JSON document from fext_field, validated but not interpreted.
type Invoice struct {
	InvoiceNo  string    `json:"invoice_no"`
	IssueDate  string    `json:"issue_date"` // YYYYMMDD
	Payload    []byte    `json:"-"`
	UpdateTime time.Time `json:"update_time"`
}

// WatermarkRecord is one line of the watermark ledger: the last export
// boundary successfully processed for a tenant.
type WatermarkRecord struct {
	TenantID    string    `json:"tenant_id"`
	Boundary    time.Time `json:"boundary_time"`
	RecordCount int       `json:"record_count"`
	Status      string    `json:"status"`
}

// BasicDataExportRequest are the parameters of a reference data export.
type BasicDataExportRequest struct {
	DryRun bool `json:"dry_run"`
}

// InvoiceExportRequest are the parameters of an invoice export run.
type InvoiceExportRequest struct {
	Incremental bool   `json:"incremental"`
	TenantID    string `json:"tenant_id,omitempty"` // empty = all tenants
	Workers     int    `json:"workers"`             // 1..16
	Compress    bool   `json:"compress"`
	DryRun      bool   `json:"dry_run"`
	LimitGroups int    `json:"limit_groups,omitempty"` // 0 = no limit, used for testing
}

// Normalize clamps worker count into the supported range.
func (r *InvoiceExportRequest) Normalize() {
	if r.Workers < 1 {
		r.Workers = 4
	}
	if r.Workers > 16 {
		r.Workers = 16
	}
}

// SyncStatus is the per-export-kind status exposed to callers.
type SyncStatus struct {
	IsRunning bool       `json:"is_running"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}
