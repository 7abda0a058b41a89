package model

import "time"

// Partition outcome statuses.
const (
	StatusSuccess = "success"
	StatusNoData  = "no_data"
	StatusError   = "error"
)

// PartitionResult is the outcome of exporting one tenant-country group.
type PartitionResult struct {
	TenantID  string        `json:"tenant_id"`
	Country   string        `json:"country"`
	Status    string        `json:"status"`
	Processed int           `json:"processed"`
	Total     int           `json:"total"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// RunSummary aggregates partition results for one export run. Success is
// true iff no partition finished with an error status.
type RunSummary struct {
	TotalGroups   int     `json:"total_groups"`
	SuccessGroups int     `json:"success_groups"`
	NoDataGroups  int     `json:"no_data_groups"`
	FailedGroups  int     `json:"failed_groups"`
	TotalInvoices int     `json:"total_invoices"`
	WrittenFiles  int     `json:"successful_files"`
	FailedFiles   int     `json:"failed_files"`
	SkippedRows   int     `json:"skipped_records"`
	DurationSecs  float64 `json:"duration_seconds"`
	Success       bool    `json:"success"`
}

// Summarize folds partition results into a run summary.
func Summarize(results []PartitionResult, writtenFiles, failedFiles int, duration time.Duration) RunSummary {
	s := RunSummary{
		TotalGroups:  len(results),
		WrittenFiles: writtenFiles,
		FailedFiles:  failedFiles,
		DurationSecs: duration.Seconds(),
	}
	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			s.SuccessGroups++
		case StatusNoData:
			s.NoDataGroups++
		case StatusError:
			s.FailedGroups++
		}
		s.TotalInvoices += r.Total
		s.SkippedRows += r.Skipped
	}
	s.Success = s.FailedGroups == 0
	return s
}

// BasicDataSummary is the terminal summary of a reference data export.
type BasicDataSummary struct {
	CodeFiles    int     `json:"code_files"`
	GlobalFiles  int     `json:"global_files"`
	TotalRecords int     `json:"total_records"`
	DurationSecs float64 `json:"duration_seconds"`
	Success      bool    `json:"success"`
}
