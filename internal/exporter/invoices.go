package exporter

import (
	"context"
	"fmt"
	"time"

	"invoice-export-service/internal/model"

	"github.com/rs/zerolog"
)

// StartInvoiceExport launches an invoice export run, full or incremental.
// Returns ErrBusy when a run of this kind is already active in this or
// another process; any other error is a fail-closed lock setup failure.
func (s *Service) StartInvoiceExport(req model.InvoiceExportRequest) (*Run, error) {
	req.Normalize()
	mode := "full"
	if req.Incremental {
		mode = "incremental"
	}
	return s.start(KindInvoices, mode, req, s.cfg.HeartbeatInterval, func(ctx context.Context, run *Run) (interface{}, error) {
		return s.runInvoices(ctx, req, run.Relay)
	})
}

// runInvoices is the invoice export control flow shared by both modes.
func (s *Service) runInvoices(ctx context.Context, req model.InvoiceExportRequest, relay *Relay) (interface{}, error) {
	start := time.Now()
	log := s.log.Hook(relay.Hook())

	log.Info().
		Bool("incremental", req.Incremental).
		Str("tenant", req.TenantID).
		Int("workers", req.Workers).
		Bool("compress", req.Compress).
		Bool("dry_run", req.DryRun).
		Msg("invoice export starting")

	groups, err := s.db.TenantCountryGroups(ctx, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("enumerate tenant-country groups: %w", err)
	}
	if req.LimitGroups > 0 && len(groups) > req.LimitGroups {
		groups = groups[:req.LimitGroups]
		log.Info().Int("limit", req.LimitGroups).Msg("limiting processed groups")
	}
	log.Info().Int("groups", len(groups)).Msg("found tenant-country groups")

	pool := NewPool(s.db, relay, log, s.cfg.OutputDir, req.Workers, req.Compress, req.DryRun)

	var results []model.PartitionResult
	if req.Incremental {
		results = s.runIncremental(ctx, log, pool, groups, req.DryRun)
	} else {
		jobs := make([]partitionJob, 0, len(groups))
		for _, g := range groups {
			jobs = append(jobs, partitionJob{partition: g})
		}
		results = pool.Run(ctx, jobs)
	}

	_, written, failed, _ := pool.Counters()
	summary := model.Summarize(results, written, failed, time.Since(start))

	log.Info().
		Int("groups", summary.TotalGroups).
		Int("success", summary.SuccessGroups).
		Int("no_data", summary.NoDataGroups).
		Int("failed", summary.FailedGroups).
		Int("files", summary.WrittenFiles).
		Msg("invoice export finished")
	return summary, nil
}

// runIncremental processes one tenant at a time: all of the tenant's
// partitions run through the pool filtered to (last_boundary, boundary],
// then the tenant's watermark advances — including when the window held
// zero new invoices, which records that the tenant was checked. Tenants
// are independent: one tenant's failure never blocks another's watermark.
func (s *Service) runIncremental(ctx context.Context, log zerolog.Logger, pool *Pool, groups []model.Partition, dryRun bool) []model.PartitionResult {
	wm := s.watermarks.WithDryRun(dryRun)
	boundary := wm.Boundary()

	tenants, byTenant := groupByTenant(groups)

	var results []model.PartitionResult
	for _, tenantID := range tenants {
		since := wm.LastBoundary(tenantID)
		window := &model.TimeWindow{After: since, Until: boundary}

		log.Info().
			Str("tenant", tenantID).
			Time("since", since).
			Time("until", boundary).
			Int("partitions", len(byTenant[tenantID])).
			Msg("incremental pass for tenant")

		jobs := make([]partitionJob, 0, len(byTenant[tenantID]))
		for _, g := range byTenant[tenantID] {
			jobs = append(jobs, partitionJob{partition: g, window: window})
		}

		tenantResults := pool.Run(ctx, jobs)
		results = append(results, tenantResults...)

		processed := 0
		for _, r := range tenantResults {
			processed += r.Processed
		}

		// The watermark advances even when a partition inside the tenant
		// failed; the failure stays visible in the run summary.
		if err := wm.Update(tenantID, boundary, processed, "SUCCESS"); err != nil {
			log.Error().Err(err).Str("tenant", tenantID).Msg("failed to update watermark")
		}
	}
	return results
}

// groupByTenant splits partitions by tenant, preserving enumeration order.
func groupByTenant(groups []model.Partition) ([]string, map[string][]model.Partition) {
	var tenants []string
	byTenant := make(map[string][]model.Partition)
	for _, g := range groups {
		if _, seen := byTenant[g.TenantID]; !seen {
			tenants = append(tenants, g.TenantID)
		}
		byTenant[g.TenantID] = append(byTenant[g.TenantID], g)
	}
	return tenants, byTenant
}
