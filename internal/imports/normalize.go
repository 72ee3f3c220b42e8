package imports

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kweber84/erpimport/internal/db"
)

// DefaultBatchSize bounds memory and transaction size when flushing
// normalized records.
const DefaultBatchSize = 1000

// RunResult is the per-run outcome the CLI prints.
type RunResult struct {
	RunID    uint
	MapSetID uint
	Success  int
	Errors   int
}

// Summary aggregates an entire normalization invocation.
type Summary struct {
	Runs       []RunResult
	TotalRuns  int
	Normalized int
	Errored    int
}

// Normalizer merges global defaults with supplier mapping output for
// every raw record that still lacks normalized data. Configuration
// problems (missing mapping, missing defaults) abort the invocation;
// record problems are isolated per record.
type Normalizer struct {
	log       zerolog.Logger
	store     *Store
	batchSize int
	now       func() time.Time
}

func NewNormalizer(log zerolog.Logger, store *Store) *Normalizer {
	return &Normalizer{
		log:       log,
		store:     store,
		batchSize: DefaultBatchSize,
		now:       time.Now,
	}
}

// NormalizeSupplier processes every run of the supplier that has no
// mapping bound yet. A supplier without any such run is not an error;
// the empty summary says so.
func (n *Normalizer) NormalizeSupplier(ctx context.Context, supplierCode string) (Summary, error) {
	var sum Summary

	supplier, err := n.store.SupplierByCode(supplierCode)
	if err != nil {
		return sum, err
	}

	runs, err := n.store.RunsWithoutMapSet(supplier.ID)
	if err != nil {
		return sum, err
	}
	if len(runs) == 0 {
		n.log.Info().Str("supplier", supplierCode).Msg("no import runs without map set")
		return sum, nil
	}

	for i := range runs {
		res, err := n.processRun(ctx, &runs[i])
		if err != nil {
			return sum, err
		}
		sum.add(res)
	}
	return sum, nil
}

// ReprocessRun is the operator-triggered retry entry point: clear
// normalized output plus the product-import error for the whole run,
// then redo it regardless of whether a mapping is already bound.
func (n *Normalizer) ReprocessRun(ctx context.Context, runID uint) (Summary, error) {
	var sum Summary

	run, err := n.store.RunByID(runID)
	if err != nil {
		return sum, err
	}
	if err := n.store.ResetRun(run.ID); err != nil {
		return sum, fmt.Errorf("reset run %d: %w", run.ID, err)
	}

	res, err := n.processRun(ctx, run)
	if err != nil {
		return sum, err
	}
	sum.add(res)
	return sum, nil
}

func (sum *Summary) add(res RunResult) {
	sum.Runs = append(sum.Runs, res)
	sum.TotalRuns++
	sum.Normalized += res.Success
	sum.Errored += res.Errors
}

// processRun binds the newest applicable mapping to the run, then merges
// defaults under the mapping output for each pending record. The mapping
// binding is saved immediately, independent of per-record outcomes.
func (n *Normalizer) processRun(ctx context.Context, run *db.ImportRun) (RunResult, error) {
	var res RunResult
	res.RunID = run.ID

	asOf := n.now()

	mapSet, err := n.store.ResolveMapSet(run.SupplierID, run.SourceTypeID, asOf)
	if err != nil {
		return res, fmt.Errorf("run %d: %w", run.ID, err)
	}
	if err := n.store.BindMapSet(run, mapSet.ID); err != nil {
		return res, fmt.Errorf("run %d: bind map set %d: %w", run.ID, mapSet.ID, err)
	}
	res.MapSetID = mapSet.ID

	rules, err := RulesFromDetails(mapSet.Details)
	if err != nil {
		return res, fmt.Errorf("run %d: map set %d: %w", run.ID, mapSet.ID, err)
	}

	// defaults are a pure function of (org, as-of); load once per run
	// and copy per record
	base, err := n.store.LoadDefaults(mapSet.OrganizationID, asOf)
	if err != nil {
		return res, fmt.Errorf("run %d: %w", run.ID, err)
	}

	buffer := make([]*db.ImportRawRecord, 0, n.batchSize)
	flush := func() error {
		if err := n.store.FlushNormalized(buffer); err != nil {
			return fmt.Errorf("run %d: flush batch of %d: %w", run.ID, len(buffer), err)
		}
		buffer = buffer[:0]
		return nil
	}

	err = n.store.ForEachPending(ctx, run.ID, n.batchSize, func(rec *db.ImportRawRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := n.normalizeRecord(rec, base, rules); err != nil {
			msg := fmt.Sprintf("Normalization error: %v", err)
			rec.NormalizedData = nil
			rec.ErrorMessageProductImport = &msg
			n.store.LogError(run.ID, rec.LineNumber, msg, rec.Payload)
			n.log.Error().Err(err).
				Uint("import_run_id", run.ID).
				Int("line_number", rec.LineNumber).
				Msg("normalization failed")
			res.Errors++
		} else {
			rec.ErrorMessageProductImport = nil
			res.Success++
		}

		buffer = append(buffer, rec)
		if len(buffer) >= n.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	if err := flush(); err != nil {
		return res, err
	}

	n.log.Info().
		Uint("import_run_id", run.ID).
		Uint("map_set_id", mapSet.ID).
		Int("success", res.Success).
		Int("errors", res.Errors).
		Msg("run normalized")
	return res, nil
}

// normalizeRecord computes the merged dict for one record. Field-level
// failures never surface here (the engine degrades them to nil); the
// errors that do are structural, e.g. a payload that is not an object.
func (n *Normalizer) normalizeRecord(rec *db.ImportRawRecord, base map[string]any, rules []Rule) error {
	payload, err := rec.PayloadMap()
	if err != nil {
		return fmt.Errorf("payload is not a JSON object: %w", err)
	}

	mapped := ApplyMapping(payload, rules)

	// defaults first, mapping overwrites on key collision
	merged := make(map[string]any, len(base)+len(mapped))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range mapped {
		merged[k] = v
	}

	return rec.SetNormalized(merged)
}
