package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"invoice-export-service/internal/api"
	"invoice-export-service/internal/config"
	"invoice-export-service/internal/exporter"
	"invoice-export-service/internal/migrate"
	"invoice-export-service/internal/model"
	"invoice-export-service/internal/store"
	"invoice-export-service/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// @title Invoice Export Service API
// @version 1.0
// @description Admin API for tenant-partitioned invoice and reference data exports.
// @BasePath /api/v1

var rootCmd = &cobra.Command{
	Use:   "exportd",
	Short: "Tenant-partitioned invoice export service",
	Long:  "Exports invoice documents and reference data from the billing database into per-tenant JSON archives, incrementally or in full, via HTTP or one-shot commands.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admin HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, svc, closeDB, err := setup()
		if err != nil {
			return err
		}
		defer closeDB()

		r := api.NewRouter(svc, log)
		return r.Start(cfg.ListenAddr)
	},
}

var (
	invIncremental bool
	invTenant      string
	invWorkers     int
	invCompress    bool
	invDryRun      bool
	invLimit       int
)

var exportInvoicesCmd = &cobra.Command{
	Use:   "export-invoices",
	Short: "Run one invoice export and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, log, svc, closeDB, err := setup()
		if err != nil {
			return err
		}
		defer closeDB()

		run, err := svc.StartInvoiceExport(model.InvoiceExportRequest{
			Incremental: invIncremental,
			TenantID:    invTenant,
			Workers:     invWorkers,
			Compress:    invCompress,
			DryRun:      invDryRun,
			LimitGroups: invLimit,
		})
		if err != nil {
			return err
		}
		return consumeRun(log, run)
	},
}

var basicDryRun bool

var exportBasicDataCmd = &cobra.Command{
	Use:   "export-basic-data",
	Short: "Run one reference data export and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, log, svc, closeDB, err := setup()
		if err != nil {
			return err
		}
		defer closeDB()

		run, err := svc.StartBasicDataExport(model.BasicDataExportRequest{DryRun: basicDryRun})
		if err != nil {
			return err
		}
		return consumeRun(log, run)
	},
}

var migrateDryRun bool

var migrateCmd = &cobra.Command{
	Use:   "migrate-tenant-data",
	Short: "Move archives from the legacy context layout to per-tenant directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log := logger.New(cfg.LogLevel, cfg.LogPretty)

		m := migrate.New(cfg.LegacyContextDir, cfg.OutputDir, migrateDryRun, log)
		summary, err := m.Run()
		if err != nil {
			return err
		}
		return printJSON(summary)
	},
}

func init() {
	exportInvoicesCmd.Flags().BoolVar(&invIncremental, "incremental", false, "export only invoices updated since the tenant's watermark")
	exportInvoicesCmd.Flags().StringVar(&invTenant, "tenant", "", "restrict the run to one tenant")
	exportInvoicesCmd.Flags().IntVar(&invWorkers, "workers", 4, "number of export workers (1-16)")
	exportInvoicesCmd.Flags().BoolVar(&invCompress, "compress", false, "gzip the exported invoice files")
	exportInvoicesCmd.Flags().BoolVar(&invDryRun, "dry-run", false, "report what would be exported without writing files or watermarks")
	exportInvoicesCmd.Flags().IntVar(&invLimit, "limit", 0, "process at most N tenant-country groups (0 = all)")

	exportBasicDataCmd.Flags().BoolVar(&basicDryRun, "dry-run", false, "report what would be exported without writing files")

	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "log the moves without performing them")

	rootCmd.AddCommand(serveCmd, exportInvoicesCmd, exportBasicDataCmd, migrateCmd)
}

// setup loads config and builds the shared service stack.
func setup() (*config.Config, zerolog.Logger, *exporter.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), nil, nil, err
	}
	log := logger.New(cfg.LogLevel, cfg.LogPretty)

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, log, nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.InitSchema(); err != nil {
		db.Close()
		return nil, log, nil, nil, fmt.Errorf("init schema: %w", err)
	}

	svc, err := exporter.NewService(db, cfg, log)
	if err != nil {
		db.Close()
		return nil, log, nil, nil, err
	}
	return cfg, log, svc, func() { db.Close() }, nil
}

// consumeRun prints the run's event stream through the logger, then the
// final summary as JSON. Exits non-zero when the run failed outright.
func consumeRun(log zerolog.Logger, run *exporter.Run) error {
	run.Relay.Consume(context.Background(), run.Done(), func(e model.Event) {
		printEvent(log, e)
	})

	summary, err := run.Result()
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func printEvent(log zerolog.Logger, e model.Event) {
	switch e.Kind {
	case model.EventLog:
		entry, ok := e.Payload.(model.LogEntry)
		if !ok {
			return
		}
		lvl, err := zerolog.ParseLevel(entry.Level)
		if err != nil {
			lvl = zerolog.InfoLevel
		}
		log.WithLevel(lvl).Msg(entry.Message)
	case model.EventProgress:
		p, ok := e.Payload.(model.Progress)
		if !ok {
			return
		}
		log.Info().
			Int("current", p.Current).
			Int("total", p.Total).
			Float64("pct", p.Percentage).
			Msg(p.Message)
	case model.EventHeartbeat:
		log.Debug().Msg("still running")
	}
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
