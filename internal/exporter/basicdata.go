package exporter

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"invoice-export-service/internal/model"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// StartBasicDataExport launches a reference/master data export run.
func (s *Service) StartBasicDataExport(req model.BasicDataExportRequest) (*Run, error) {
	// Reference exports are short; a tighter heartbeat keeps the stream
	// visibly alive without waiting the transactional interval.
	heartbeat := s.cfg.HeartbeatInterval
	if heartbeat > 10*time.Second {
		heartbeat = 10 * time.Second
	}
	return s.start(KindBasicData, "full", req, heartbeat, func(ctx context.Context, run *Run) (interface{}, error) {
		return s.runBasicData(ctx, req, run.Relay)
	})
}

// runBasicData exports the global datasets (currencies, invoice types)
// and the per-country code tables, each file wrapped in a metadata
// envelope.
func (s *Service) runBasicData(ctx context.Context, req model.BasicDataExportRequest, relay *Relay) (interface{}, error) {
	start := time.Now()
	log := s.log.Hook(relay.Hook())

	log.Info().Bool("dry_run", req.DryRun).Msg("basic data export starting")

	summary := model.BasicDataSummary{}

	// The two global datasets are independent reads; export them
	// concurrently. A failure here is a fatal setup-or-source problem,
	// not a partition-level one.
	var currencyRecords, typeRecords int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.exportCurrencies(gctx, log, req.DryRun)
		currencyRecords = n
		return err
	})
	g.Go(func() error {
		n, err := s.exportInvoiceTypes(gctx, log, req.DryRun)
		typeRecords = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if currencyRecords > 0 {
		summary.GlobalFiles++
	}
	if typeRecords > 0 {
		summary.GlobalFiles++
	}
	summary.TotalRecords += currencyRecords + typeRecords

	for _, cat := range model.CodeCategories {
		files, records, err := s.exportCodeCategory(ctx, log, cat, req.DryRun)
		if err != nil {
			return nil, err
		}
		summary.CodeFiles += files
		summary.TotalRecords += records
	}

	summary.DurationSecs = time.Since(start).Seconds()
	summary.Success = true

	log.Info().
		Int("code_files", summary.CodeFiles).
		Int("records", summary.TotalRecords).
		Msg("basic data export finished")
	return summary, nil
}

func (s *Service) exportCurrencies(ctx context.Context, log zerolog.Logger, dryRun bool) (int, error) {
	currencies, err := s.db.Currencies(ctx)
	if err != nil {
		return 0, err
	}
	if len(currencies) == 0 {
		log.Warn().Msg("no currency data found")
		return 0, nil
	}

	path := filepath.Join(s.cfg.BasicDataDir, "global", "currencies.json")
	if dryRun {
		log.Info().Int("records", len(currencies)).Str("path", path).Msg("[dry run] skipping currencies file")
		return len(currencies), nil
	}
	meta := model.ExportMeta{
		ExportTime:  time.Now().UTC().Format(time.RFC3339),
		RecordCount: len(currencies),
		Scope:       "global",
	}
	if err := writeEnvelope(path, meta, "currencies", currencies); err != nil {
		return 0, fmt.Errorf("write currencies: %w", err)
	}
	log.Info().Int("records", len(currencies)).Str("path", path).Msg("exported currencies")
	return len(currencies), nil
}

func (s *Service) exportInvoiceTypes(ctx context.Context, log zerolog.Logger, dryRun bool) (int, error) {
	types, err := s.db.InvoiceTypes(ctx)
	if err != nil {
		return 0, err
	}
	if len(types) == 0 {
		log.Warn().Msg("no invoice type data found")
		return 0, nil
	}

	path := filepath.Join(s.cfg.BasicDataDir, "global", "invoice-types.json")
	if dryRun {
		log.Info().Int("records", len(types)).Str("path", path).Msg("[dry run] skipping invoice types file")
		return len(types), nil
	}
	meta := model.ExportMeta{
		ExportTime:  time.Now().UTC().Format(time.RFC3339),
		RecordCount: len(types),
		Scope:       "global",
	}
	if err := writeEnvelope(path, meta, "invoiceTypes", types); err != nil {
		return 0, fmt.Errorf("write invoice types: %w", err)
	}
	log.Info().Int("records", len(types)).Str("path", path).Msg("exported invoice types")
	return len(types), nil
}

// exportCodeCategory writes one file per country for a code category.
func (s *Service) exportCodeCategory(ctx context.Context, log zerolog.Logger, cat model.CodeCategory, dryRun bool) (files, records int, err error) {
	countries, err := s.db.CodeCountries(ctx, cat.Type)
	if err != nil {
		return 0, 0, fmt.Errorf("list countries for %s: %w", cat.Name, err)
	}
	log.Info().Str("category", cat.Name).Int("countries", len(countries)).Msg("exporting code category")

	for _, country := range countries {
		codes, err := s.db.CodesByCountry(ctx, cat.Type, country)
		if err != nil {
			return files, records, fmt.Errorf("query %s codes for %s: %w", cat.Name, country, err)
		}
		if len(codes) == 0 {
			continue
		}

		path := filepath.Join(s.cfg.BasicDataDir, "codes", cat.Dir, country+".json")
		if dryRun {
			log.Info().Str("path", path).Int("records", len(codes)).Msg("[dry run] skipping code file")
		} else {
			meta := model.ExportMeta{
				ExportTime:  time.Now().UTC().Format(time.RFC3339),
				RecordCount: len(codes),
				Scope:       "country",
				Country:     country,
				CodeType:    cat.Type,
			}
			if err := writeEnvelope(path, meta, cat.Key, codes); err != nil {
				return files, records, fmt.Errorf("write %s for %s: %w", cat.Name, country, err)
			}
		}
		files++
		records += len(codes)
	}
	return files, records, nil
}
