package exporter

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"invoice-export-service/internal/model"
	"invoice-export-service/internal/store"

	"github.com/rs/zerolog"
)

// partitionJob is one unit of pool work: a tenant-country group, with an
// optional incremental time window.
type partitionJob struct {
	partition model.Partition
	window    *model.TimeWindow
}

// Pool processes partitions with a bounded number of parallel workers.
// Each worker checks out its own source-store connection, so partitions
// neither contend on a session nor take each other down. Aggregate
// counters live behind a single shared mutex; partition results carry
// everything else.
type Pool struct {
	db        *store.DB
	relay     *Relay
	log       zerolog.Logger
	outputDir string
	workers   int
	compress  bool
	dryRun    bool

	mu            sync.Mutex
	totalInvoices int
	writtenFiles  int
	failedFiles   int
	skippedRows   int
}

// NewPool builds a pool writing under outputDir with the given worker
// count.
func NewPool(db *store.DB, relay *Relay, log zerolog.Logger, outputDir string, workers int, compress, dryRun bool) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		db:        db,
		relay:     relay,
		log:       log,
		outputDir: outputDir,
		workers:   workers,
		compress:  compress,
		dryRun:    dryRun,
	}
}

// Counters returns the run-wide aggregate counters.
func (p *Pool) Counters() (totalInvoices, writtenFiles, failedFiles, skippedRows int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalInvoices, p.writtenFiles, p.failedFiles, p.skippedRows
}

// Run processes all jobs with at most p.workers executing concurrently
// and returns one result per job. A failing partition is recorded and
// does not abort its siblings.
func (p *Pool) Run(ctx context.Context, jobs []partitionJob) []model.PartitionResult {
	jobCh := make(chan partitionJob)
	resultCh := make(chan model.PartitionResult)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.worker(ctx, workerID, jobCh, resultCh)
		}(i + 1)
	}

	go func() {
		defer close(jobCh)
		for _, j := range jobs {
			select {
			case <-ctx.Done():
				return
			case jobCh <- j:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]model.PartitionResult, 0, len(jobs))
	for r := range resultCh {
		results = append(results, r)
		p.relay.Progress(len(results), len(jobs),
			fmt.Sprintf("processed %s/%s (%s)", r.TenantID, r.Country, r.Status))
	}
	return results
}

// worker drains the job channel over one dedicated connection.
func (p *Pool) worker(ctx context.Context, workerID int, jobs <-chan partitionJob, results chan<- model.PartitionResult) {
	log := p.log.With().Int("worker", workerID).Logger()

	conn, err := p.db.Conn(ctx)
	if err != nil {
		// Without a connection every job this worker picks up fails;
		// siblings keep their own connections and continue.
		for j := range jobs {
			results <- model.PartitionResult{
				TenantID: j.partition.TenantID,
				Country:  j.partition.Country,
				Status:   model.StatusError,
				Error:    fmt.Sprintf("acquire connection: %v", err),
			}
		}
		return
	}
	defer conn.Close()

	for j := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		results <- p.processPartition(ctx, log, conn, j)
	}
}

// processPartition runs one group end-to-end: query, validate, write.
func (p *Pool) processPartition(ctx context.Context, log zerolog.Logger, conn *sql.Conn, j partitionJob) model.PartitionResult {
	start := time.Now()
	part := j.partition
	result := model.PartitionResult{TenantID: part.TenantID, Country: part.Country}

	log.Info().
		Str("tenant", part.TenantID).
		Str("country", part.Country).
		Int("expected", part.InvoiceCount).
		Msg("processing partition")

	invoices, err := p.db.InvoicesForPartition(ctx, conn, part, j.window)
	if err != nil {
		result.Status = model.StatusError
		result.Error = err.Error()
		result.Duration = time.Since(start)
		log.Error().Err(err).Str("tenant", part.TenantID).Str("country", part.Country).Msg("partition query failed")
		return result
	}

	valid, skipped := p.validateInvoices(log, part, invoices)
	result.Skipped = skipped
	result.Total = len(valid)

	if len(valid) == 0 {
		result.Status = model.StatusNoData
		result.Duration = time.Since(start)
		log.Warn().Str("tenant", part.TenantID).Str("country", part.Country).Msg("partition has no valid invoices")
		return result
	}

	written, err := p.writePartition(part, valid)
	result.Processed = written
	if err != nil {
		result.Status = model.StatusError
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}

	result.Status = model.StatusSuccess
	result.Duration = time.Since(start)

	p.mu.Lock()
	p.totalInvoices += len(valid)
	p.mu.Unlock()

	log.Info().
		Str("tenant", part.TenantID).
		Str("country", part.Country).
		Int("written", written).
		Int("total", len(valid)).
		Dur("took", result.Duration).
		Msg("partition complete")
	return result
}

// validateInvoices drops rows whose payload is not structured invoice
// JSON. Malformed rows are counted and logged, never fatal: one bad row
// must not sink its partition.
func (p *Pool) validateInvoices(log zerolog.Logger, part model.Partition, invoices []model.Invoice) ([]model.Invoice, int) {
	valid := invoices[:0]
	skipped := 0
	for _, inv := range invoices {
		if err := validatePayload(inv.Payload); err != nil {
			skipped++
			log.Warn().
				Str("tenant", part.TenantID).
				Str("invoice", inv.InvoiceNo).
				Err(err).
				Msg("skipping invoice with invalid payload")
			continue
		}
		valid = append(valid, inv)
	}
	if skipped > 0 {
		p.mu.Lock()
		p.skippedRows += skipped
		p.mu.Unlock()
	}
	return valid, skipped
}

// writePartition writes one file per invoice under
// {outputDir}/{tenant}/invoices/{country}. Rewriting an existing file
// for the same invoice and date is expected: last write wins.
func (p *Pool) writePartition(part model.Partition, invoices []model.Invoice) (int, error) {
	if p.dryRun {
		p.log.Info().
			Str("tenant", part.TenantID).
			Str("country", part.Country).
			Int("files", len(invoices)).
			Msg("[dry run] skipping file writes")
		return len(invoices), nil
	}

	dir, err := ensurePartitionDir(p.outputDir, part)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, inv := range invoices {
		if err := writeInvoiceFile(dir, inv, p.compress); err != nil {
			p.log.Error().Err(err).Str("invoice", inv.InvoiceNo).Msg("failed to write invoice file")
			p.mu.Lock()
			p.failedFiles++
			p.mu.Unlock()
			continue
		}
		written++
	}

	p.mu.Lock()
	p.writtenFiles += written
	p.mu.Unlock()
	return written, nil
}
