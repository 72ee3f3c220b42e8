package imports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/kweber84/erpimport/internal/db"
)

// Configuration errors the orchestrator treats as fatal (they abort the
// whole invocation, not a single record).
var (
	ErrNoMapSet     = errors.New("no import map set found")
	ErrNoDefaultSet = errors.New("no global default set found")
)

// Store is the persistence surface of the import pipeline: registry
// lookups, raw capture, versioned config resolution and the batch update
// primitive the normalizer flushes through.
type Store struct {
	log zerolog.Logger
	gdb *gorm.DB
}

func NewStore(log zerolog.Logger, gdb *gorm.DB) *Store {
	return &Store{log: log, gdb: gdb}
}

// DB exposes the underlying handle for callers that need raw queries
// (seeding, tests).
func (s *Store) DB() *gorm.DB { return s.gdb }

// --- registry lookups (not-found is fatal, no silent fallback) ---

func (s *Store) OrganizationByCode(code string) (*db.Organization, error) {
	var org db.Organization
	if err := s.gdb.Where("code = ?", code).Take(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("organization %q not found", code)
		}
		return nil, err
	}
	return &org, nil
}

func (s *Store) SupplierByCode(code string) (*db.Supplier, error) {
	var sup db.Supplier
	if err := s.gdb.Where("supplier_code = ?", code).Take(&sup).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("supplier %q not found", code)
		}
		return nil, err
	}
	return &sup, nil
}

func (s *Store) SourceTypeByCode(code string) (*db.ImportSourceType, error) {
	var st db.ImportSourceType
	if err := s.gdb.Where("code = ?", code).Take(&st).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("import source type %q not found", code)
		}
		return nil, err
	}
	return &st, nil
}

// --- raw capture ---

func (s *Store) CreateRun(supplier *db.Supplier, sourceType *db.ImportSourceType, sourceFile string) (*db.ImportRun, error) {
	run := db.ImportRun{
		SupplierID:   supplier.ID,
		SourceTypeID: sourceType.ID,
		SourceFile:   sourceFile,
		StartedAt:    time.Now(),
		Status:       db.RunStatusRunning,
	}
	if err := s.gdb.Create(&run).Error; err != nil {
		return nil, fmt.Errorf("create import run: %w", err)
	}
	return &run, nil
}

// AppendRawRecords persists captured records in insert batches.
func (s *Store) AppendRawRecords(records []db.ImportRawRecord, batchSize int) error {
	if len(records) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return s.gdb.CreateInBatches(records, batchSize).Error
}

// FinalizeRun closes the header: status, finish time, record count.
func (s *Store) FinalizeRun(run *db.ImportRun, status string, total int) error {
	now := time.Now()
	run.FinishedAt = &now
	run.Status = status
	run.TotalRecords = &total
	return s.gdb.Model(run).
		Select("finished_at", "status", "total_records").
		Updates(map[string]any{"finished_at": now, "status": status, "total_records": total}).Error
}

// --- versioned configuration resolution ---

// ResolveMapSet returns the newest mapping set for supplier+source type
// with valid_from <= asOf, details preloaded. ErrNoMapSet when none
// applies.
func (s *Store) ResolveMapSet(supplierID, sourceTypeID uint, asOf time.Time) (*db.ImportMapSet, error) {
	var ms db.ImportMapSet
	err := s.gdb.Preload("Details").
		Where("supplier_id = ? AND source_type_id = ? AND valid_from <= ?", supplierID, sourceTypeID, asOf).
		Order("valid_from DESC").
		First(&ms).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("supplier_id=%d source_type_id=%d: %w", supplierID, sourceTypeID, ErrNoMapSet)
		}
		return nil, err
	}
	return &ms, nil
}

// ResolveDefaultSet returns the newest global default set for the
// organization with valid_from <= asOf, lines preloaded. ErrNoDefaultSet
// when none applies; once defaults are seeded there must always be one.
func (s *Store) ResolveDefaultSet(orgID uint, asOf time.Time) (*db.ImportGlobalDefaultSet, error) {
	var ds db.ImportGlobalDefaultSet
	err := s.gdb.Preload("Lines").
		Where("organization_id = ? AND valid_from <= ?", orgID, asOf).
		Order("valid_from DESC").
		First(&ds).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("organization_id=%d as of %s: %w", orgID, asOf.Format("2006-01-02"), ErrNoDefaultSet)
		}
		return nil, err
	}
	return &ds, nil
}

// LoadDefaults is the flat, merge-ready form: {target_path: value}.
func (s *Store) LoadDefaults(orgID uint, asOf time.Time) (map[string]any, error) {
	ds, err := s.ResolveDefaultSet(orgID, asOf)
	if err != nil {
		return nil, err
	}
	lines, err := LinesFromModels(ds.Lines)
	if err != nil {
		return nil, err
	}
	return FlattenDefaults(lines), nil
}

// BuildBaseDict is the nested inspection form, from the same rows as
// LoadDefaults.
func (s *Store) BuildBaseDict(orgID uint, asOf time.Time) (map[string]map[string]any, error) {
	ds, err := s.ResolveDefaultSet(orgID, asOf)
	if err != nil {
		return nil, err
	}
	lines, err := LinesFromModels(ds.Lines)
	if err != nil {
		return nil, err
	}
	return BuildBaseDict(lines), nil
}

// --- normalization support ---

// RunsWithoutMapSet lists a supplier's runs that still need normalization
// (map_set is bound lazily by the normalizer).
func (s *Store) RunsWithoutMapSet(supplierID uint) ([]db.ImportRun, error) {
	var runs []db.ImportRun
	if err := s.gdb.Where("supplier_id = ? AND map_set_id IS NULL", supplierID).
		Order("id").Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *Store) RunByID(id uint) (*db.ImportRun, error) {
	var run db.ImportRun
	if err := s.gdb.Take(&run, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("import run %d not found", id)
		}
		return nil, err
	}
	return &run, nil
}

// BindMapSet pins the resolved mapping on the run header. Binding the
// same resolved set twice is a no-op, so a racing re-invocation is safe.
func (s *Store) BindMapSet(run *db.ImportRun, mapSetID uint) error {
	run.MapSetID = &mapSetID
	return s.gdb.Model(run).Update("map_set_id", mapSetID).Error
}

// ResetRun clears normalized output and the product-import error for all
// records of a run, forcing a full redo on the next normalization pass.
func (s *Store) ResetRun(runID uint) error {
	return s.gdb.Model(&db.ImportRawRecord{}).
		Where("import_run_id = ?", runID).
		Updates(map[string]any{"normalized_data": nil, "error_message_product_import": nil}).Error
}

// ForEachPending streams the run's records with normalized_data IS NULL
// in primary-key order, batchSize at a time.
func (s *Store) ForEachPending(ctx context.Context, runID uint, batchSize int, fn func(*db.ImportRawRecord) error) error {
	var recs []db.ImportRawRecord
	res := s.gdb.WithContext(ctx).
		Where("import_run_id = ? AND normalized_data IS NULL", runID).
		FindInBatches(&recs, batchSize, func(_ *gorm.DB, _ int) error {
			for i := range recs {
				if err := fn(&recs[i]); err != nil {
					return err
				}
			}
			return nil
		})
	return res.Error
}

// FlushNormalized persists a batch of processed records in one
// transaction: normalized_data and the product-import error field, the
// two columns normalization owns.
func (s *Store) FlushNormalized(batch []*db.ImportRawRecord) error {
	if len(batch) == 0 {
		return nil
	}
	return s.gdb.Transaction(func(tx *gorm.DB) error {
		for _, rec := range batch {
			err := tx.Model(rec).
				Select("normalized_data", "error_message_product_import").
				Updates(map[string]any{
					"normalized_data":              rec.NormalizedData,
					"error_message_product_import": rec.ErrorMessageProductImport,
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// LogError appends an inspection row for a failed record.
func (s *Store) LogError(runID uint, lineNumber int, message, payload string) {
	entry := db.ImportErrorLog{
		ImportRunID:  runID,
		LineNumber:   &lineNumber,
		ErrorMessage: message,
		Payload:      payload,
	}
	if err := s.gdb.Create(&entry).Error; err != nil {
		s.log.Error().Err(err).Uint("import_run_id", runID).Msg("error log insert failed")
	}
}

// --- cleanup ---

// SupplierImportCounts reports how many runs and raw records a supplier
// has accumulated.
func (s *Store) SupplierImportCounts(supplierID uint) (runs int64, records int64, err error) {
	if err = s.gdb.Model(&db.ImportRun{}).Where("supplier_id = ?", supplierID).Count(&runs).Error; err != nil {
		return
	}
	err = s.gdb.Model(&db.ImportRawRecord{}).
		Where("import_run_id IN (?)", s.gdb.Model(&db.ImportRun{}).Select("id").Where("supplier_id = ?", supplierID)).
		Count(&records).Error
	return
}

// ClearSupplierImports deletes all runs, raw records and error logs of a
// supplier. Used for cleanup and re-import testing.
func (s *Store) ClearSupplierImports(supplierID uint) error {
	return s.gdb.Transaction(func(tx *gorm.DB) error {
		runIDs := tx.Model(&db.ImportRun{}).Select("id").Where("supplier_id = ?", supplierID)
		if err := tx.Where("import_run_id IN (?)", runIDs).Delete(&db.ImportRawRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("import_run_id IN (?)", runIDs).Delete(&db.ImportErrorLog{}).Error; err != nil {
			return err
		}
		return tx.Where("supplier_id = ?", supplierID).Delete(&db.ImportRun{}).Error
	})
}
