package db

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate creates or updates the schema. AutoMigrate handles the tagged
// composite unique indexes; Migrate is idempotent and safe to run on start.
func (h *Handle) Migrate() error {
	gdb := h.DB

	if err := gdb.AutoMigrate(
		&Organization{},
		&Supplier{},
		&ImportSourceType{},
		&ImportDataType{},
		&ImportTransformType{},
		&ImportRun{},
		&ImportRawRecord{},
		&ImportMapSet{},
		&ImportMapDetail{},
		&ImportGlobalDefaultSet{},
		&ImportGlobalDefaultLine{},
		&ImportErrorLog{},
	); err != nil {
		return fmt.Errorf("AutoMigrate error: %w", err)
	}

	// Older sqlite files may predate the tagged index on raw records;
	// make sure the (run, line_number) constraint exists either way.
	if !gdb.Migrator().HasIndex(&ImportRawRecord{}, "uq_import_run_line") {
		if err := gdb.Exec(`
			CREATE UNIQUE INDEX IF NOT EXISTS uq_import_run_line
			ON import_raw_records(import_run_id, line_number);
		`).Error; err != nil {
			return fmt.Errorf("create index uq_import_run_line: %w", err)
		}
	}

	return nil
}

// MigrateAll is the test helper variant operating on a bare gorm handle.
func MigrateAll(gdb *gorm.DB) error {
	h := &Handle{DB: gdb}
	return h.Migrate()
}
