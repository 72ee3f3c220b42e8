package imports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kweber84/erpimport/internal/db"
	"github.com/kweber84/erpimport/internal/sources"
)

// CaptureBatchSize is how many raw records are staged per insert batch.
const CaptureBatchSize = 5000

// CaptureResult summarizes one capture run.
type CaptureResult struct {
	RunID    uint
	Source   string
	Captured int
}

// Capturer pulls raw records from a supplier source and stores them
// verbatim, one ImportRun per execution. Captured payloads are never
// interpreted here; normalization happens later against whatever
// mapping is current then.
type Capturer struct {
	log       zerolog.Logger
	store     *Store
	batchSize int
}

func NewCapturer(log zerolog.Logger, store *Store) *Capturer {
	return &Capturer{
		log:       log,
		store:     store,
		batchSize: CaptureBatchSize,
	}
}

// Run fetches everything the source emits into a new ImportRun. The run
// is finalized as failed if the source or the store errors mid-stream;
// records staged before the failure stay in place under that run.
func (c *Capturer) Run(ctx context.Context, src sources.Source, supplier *db.Supplier, sourceType *db.ImportSourceType, opts sources.FetchOptions) (*CaptureResult, error) {
	run, err := c.store.CreateRun(supplier, sourceType, src.Describe(opts))
	if err != nil {
		return nil, fmt.Errorf("create import run: %w", err)
	}
	c.log.Info().
		Uint("run_id", run.ID).
		Str("supplier", supplier.SupplierCode).
		Str("source", src.Name()).
		Msg("capture started")

	started := time.Now()
	total := 0
	batch := make([]db.ImportRawRecord, 0, c.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := c.store.AppendRawRecords(batch, c.batchSize); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	err = src.Fetch(ctx, opts, func(item sources.RawItem) error {
		payload, err := json.Marshal(item.Payload)
		if err != nil {
			return fmt.Errorf("line %d: encode payload: %w", item.LineNumber, err)
		}
		batch = append(batch, db.ImportRawRecord{
			ImportRunID:              run.ID,
			LineNumber:               item.LineNumber,
			Payload:                  string(payload),
			SupplierProductReference: item.Reference,
		})
		total++
		if len(batch) >= c.batchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}

	if err != nil {
		if ferr := c.store.FinalizeRun(run, db.RunStatusFailed, total); ferr != nil {
			c.log.Error().Err(ferr).Uint("run_id", run.ID).Msg("finalize failed run")
		}
		return nil, fmt.Errorf("run %d: %w", run.ID, err)
	}
	if err := c.store.FinalizeRun(run, db.RunStatusSuccess, total); err != nil {
		return nil, err
	}

	c.log.Info().
		Uint("run_id", run.ID).
		Int("records", total).
		Dur("took", time.Since(started)).
		Msg("capture finished")

	return &CaptureResult{RunID: run.ID, Source: src.Name(), Captured: total}, nil
}

var errPreviewFull = errors.New("preview full")

// Preview fetches up to limit records without touching the database,
// for dry runs.
func (c *Capturer) Preview(ctx context.Context, src sources.Source, opts sources.FetchOptions, limit int) ([]sources.RawItem, error) {
	if limit <= 0 {
		limit = 20
	}
	if opts.Limit == 0 || opts.Limit > limit {
		opts.Limit = limit
	}
	var items []sources.RawItem
	err := src.Fetch(ctx, opts, func(item sources.RawItem) error {
		items = append(items, item)
		if len(items) >= limit {
			return errPreviewFull
		}
		return nil
	})
	if err != nil && !errors.Is(err, errPreviewFull) {
		return nil, err
	}
	return items, nil
}
