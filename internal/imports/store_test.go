package imports

import (
	"encoding/json"
	"log"
	"os"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kweber84/erpimport/internal/db"
)

var testDB *gorm.DB

func TestMain(m *testing.M) {
	var err error
	testDB, err = gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := db.MigrateAll(testDB); err != nil {
		log.Fatalf("Failed to migrate test database schema: %v", err)
	}

	exitCode := m.Run()

	sqlDB, err := testDB.DB()
	if err == nil {
		sqlDB.Close()
	}
	os.Exit(exitCode)
}

func clearTables(t *testing.T) {
	t.Helper()
	for _, table := range []string{
		"import_error_logs", "import_raw_records", "import_runs",
		"import_map_details", "import_map_sets",
		"import_global_default_lines", "import_global_default_sets",
		"suppliers", "organizations",
		"import_source_types", "import_data_types", "import_transform_types",
	} {
		require.NoError(t, testDB.Exec("DELETE FROM "+table).Error)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	clearTables(t)
	return NewStore(zerolog.Nop(), testDB)
}

// fixture builds org + supplier + file source type.
func seedScope(t *testing.T, s *Store) (*db.Organization, *db.Supplier, *db.ImportSourceType) {
	t.Helper()
	org := &db.Organization{Code: "MAIN", Name: "Main Org"}
	require.NoError(t, s.DB().Create(org).Error)
	sup := &db.Supplier{OrganizationID: org.ID, SupplierCode: "KOMATSU", IsActive: true}
	require.NoError(t, s.DB().Create(sup).Error)
	st := &db.ImportSourceType{Code: "file", Description: "Flat file import"}
	require.NoError(t, s.DB().Create(st).Error)
	return org, sup, st
}

func createMapSet(t *testing.T, s *Store, org *db.Organization, sup *db.Supplier, st *db.ImportSourceType, validFrom time.Time, details []db.ImportMapDetail) *db.ImportMapSet {
	t.Helper()
	ms := &db.ImportMapSet{
		OrganizationID: org.ID,
		SupplierID:     sup.ID,
		SourceTypeID:   st.ID,
		ValidFrom:      validFrom,
		Details:        details,
	}
	require.NoError(t, s.DB().Create(ms).Error)
	return ms
}

func createDefaultSet(t *testing.T, s *Store, org *db.Organization, validFrom time.Time, lines []db.ImportGlobalDefaultLine) *db.ImportGlobalDefaultSet {
	t.Helper()
	ds := &db.ImportGlobalDefaultSet{
		OrganizationID: org.ID,
		ValidFrom:      validFrom,
		Lines:          lines,
	}
	require.NoError(t, s.DB().Create(ds).Error)
	return ds
}

func createRawRecord(t *testing.T, s *Store, runID uint, line int, payload map[string]any) *db.ImportRawRecord {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	rec := &db.ImportRawRecord{ImportRunID: runID, LineNumber: line, Payload: string(b)}
	require.NoError(t, s.DB().Create(rec).Error)
	return rec
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestLookupsByCode(t *testing.T) {
	s := newTestStore(t)
	org, sup, st := seedScope(t, s)

	got, err := s.OrganizationByCode("MAIN")
	require.NoError(t, err)
	assert.Equal(t, org.ID, got.ID)

	gotSup, err := s.SupplierByCode("KOMATSU")
	require.NoError(t, err)
	assert.Equal(t, sup.ID, gotSup.ID)

	gotSt, err := s.SourceTypeByCode("file")
	require.NoError(t, err)
	assert.Equal(t, st.ID, gotSt.ID)

	_, err = s.SupplierByCode("NOBODY")
	assert.ErrorContains(t, err, "not found")
}

func TestCreateAndFinalizeRun(t *testing.T) {
	s := newTestStore(t)
	_, sup, st := seedScope(t, s)

	run, err := s.CreateRun(sup, st, "data/test.xlsx")
	require.NoError(t, err)
	assert.Equal(t, db.RunStatusRunning, run.Status)
	assert.Nil(t, run.FinishedAt)

	require.NoError(t, s.AppendRawRecords([]db.ImportRawRecord{
		{ImportRunID: run.ID, LineNumber: 1, Payload: `{"A":"x"}`},
		{ImportRunID: run.ID, LineNumber: 2, Payload: `{"A":"y"}`},
	}, 500))

	require.NoError(t, s.FinalizeRun(run, db.RunStatusSuccess, 2))

	reloaded, err := s.RunByID(run.ID)
	require.NoError(t, err)
	assert.Equal(t, db.RunStatusSuccess, reloaded.Status)
	require.NotNil(t, reloaded.TotalRecords)
	assert.Equal(t, 2, *reloaded.TotalRecords)
	assert.NotNil(t, reloaded.FinishedAt)
}

func TestRawRecordLineUniquePerRun(t *testing.T) {
	s := newTestStore(t)
	_, sup, st := seedScope(t, s)
	run, err := s.CreateRun(sup, st, "")
	require.NoError(t, err)

	createRawRecord(t, s, run.ID, 1, map[string]any{"A": "x"})
	dup := &db.ImportRawRecord{ImportRunID: run.ID, LineNumber: 1, Payload: `{}`}
	assert.Error(t, s.DB().Create(dup).Error, "duplicate (run, line) must be rejected")

	// same line number in another run is fine
	run2, err := s.CreateRun(sup, st, "")
	require.NoError(t, err)
	createRawRecord(t, s, run2.ID, 1, map[string]any{"A": "x"})
}

func TestMapSetScopeUnique(t *testing.T) {
	s := newTestStore(t)
	org, sup, st := seedScope(t, s)
	from := date(2024, 1, 1)

	createMapSet(t, s, org, sup, st, from, nil)
	dup := &db.ImportMapSet{OrganizationID: org.ID, SupplierID: sup.ID, SourceTypeID: st.ID, ValidFrom: from}
	assert.Error(t, s.DB().Create(dup).Error, "same scope and valid_from must be rejected")
}

func TestResolveMapSetNewestWins(t *testing.T) {
	s := newTestStore(t)
	org, sup, st := seedScope(t, s)

	old := createMapSet(t, s, org, sup, st, date(2024, 1, 1), []db.ImportMapDetail{
		{SourcePath: "A", TargetPath: "product.name", DatatypeCode: "str"},
	})
	newer := createMapSet(t, s, org, sup, st, date(2025, 1, 1), []db.ImportMapDetail{
		{SourcePath: "B", TargetPath: "product.name", DatatypeCode: "str"},
	})
	// future set must not win yet
	createMapSet(t, s, org, sup, st, date(2030, 1, 1), nil)

	got, err := s.ResolveMapSet(sup.ID, st.ID, date(2025, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)
	require.Len(t, got.Details, 1)
	assert.Equal(t, "B", got.Details[0].SourcePath)

	got, err = s.ResolveMapSet(sup.ID, st.ID, date(2024, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, old.ID, got.ID)

	_, err = s.ResolveMapSet(sup.ID, st.ID, date(2023, 6, 1))
	assert.ErrorIs(t, err, ErrNoMapSet)
}

func TestResolveDefaultSetNewestWins(t *testing.T) {
	s := newTestStore(t)
	org, _, _ := seedScope(t, s)

	createDefaultSet(t, s, org, date(2024, 1, 1), []db.ImportGlobalDefaultLine{
		defaultLine(t, "price.currency_code", "PLN", "str"),
	})
	createDefaultSet(t, s, org, date(2025, 1, 1), []db.ImportGlobalDefaultLine{
		defaultLine(t, "price.currency_code", "EUR", "str"),
	})

	flat, err := s.LoadDefaults(org.ID, date(2025, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, "EUR", flat["price.currency_code"])

	flat, err = s.LoadDefaults(org.ID, date(2024, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, "PLN", flat["price.currency_code"])

	_, err = s.LoadDefaults(org.ID, date(2023, 6, 1))
	assert.ErrorIs(t, err, ErrNoDefaultSet)
}

func TestBuildBaseDictFromStore(t *testing.T) {
	s := newTestStore(t)
	org, _, _ := seedScope(t, s)
	createDefaultSet(t, s, org, date(2024, 1, 1), []db.ImportGlobalDefaultLine{
		defaultLine(t, "variant.origin_code", "E", "str"),
		defaultLine(t, "price.currency_code", "EUR", "str"),
	})

	base, err := s.BuildBaseDict(org.ID, date(2024, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, "E", base["variant"]["origin_code"])
	assert.Equal(t, "EUR", base["price"]["currency_code"])

	// flat and nested forms come from the same rows
	flat, err := s.LoadDefaults(org.ID, date(2024, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, flat["variant.origin_code"], base["variant"]["origin_code"])
}

func TestClearSupplierImports(t *testing.T) {
	s := newTestStore(t)
	_, sup, st := seedScope(t, s)

	run, err := s.CreateRun(sup, st, "")
	require.NoError(t, err)
	createRawRecord(t, s, run.ID, 1, map[string]any{"A": "x"})
	createRawRecord(t, s, run.ID, 2, map[string]any{"A": "y"})
	s.LogError(run.ID, 1, "boom", "{}")

	runs, records, err := s.SupplierImportCounts(sup.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), runs)
	assert.Equal(t, int64(2), records)

	require.NoError(t, s.ClearSupplierImports(sup.ID))

	runs, records, err = s.SupplierImportCounts(sup.ID)
	require.NoError(t, err)
	assert.Zero(t, runs)
	assert.Zero(t, records)

	var logCount int64
	require.NoError(t, s.DB().Model(&db.ImportErrorLog{}).Count(&logCount).Error)
	assert.Zero(t, logCount)
}
