package db

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, MigrateAll(gdb))
	return gdb
}

func TestMigrateCreatesAllTables(t *testing.T) {
	gdb := openTestDB(t)
	for _, table := range []string{
		"organizations", "suppliers",
		"import_source_types", "import_data_types", "import_transform_types",
		"import_runs", "import_raw_records",
		"import_map_sets", "import_map_details",
		"import_global_default_sets", "import_global_default_lines",
		"import_error_logs",
	} {
		assert.True(t, gdb.Migrator().HasTable(table), "missing table %s", table)
	}
}

func TestMigrateIsRepeatable(t *testing.T) {
	gdb := openTestDB(t)
	assert.NoError(t, MigrateAll(gdb))
}

func TestUniqueConstraints(t *testing.T) {
	gdb := openTestDB(t)

	require.NoError(t, gdb.Create(&Organization{Code: "MAIN"}).Error)
	assert.Error(t, gdb.Create(&Organization{Code: "MAIN"}).Error)

	require.NoError(t, gdb.Create(&Supplier{SupplierCode: "KOMATSU"}).Error)
	assert.Error(t, gdb.Create(&Supplier{SupplierCode: "KOMATSU"}).Error)

	require.NoError(t, gdb.Create(&ImportRawRecord{ImportRunID: 1, LineNumber: 1, Payload: "{}"}).Error)
	assert.Error(t, gdb.Create(&ImportRawRecord{ImportRunID: 1, LineNumber: 1, Payload: "{}"}).Error)
	assert.NoError(t, gdb.Create(&ImportRawRecord{ImportRunID: 1, LineNumber: 2, Payload: "{}"}).Error)
}

func TestRawRecordPayloadHelpers(t *testing.T) {
	rec := ImportRawRecord{Payload: `{"Material":"A1","Price":"12.50"}`}
	m, err := rec.PayloadMap()
	require.NoError(t, err)
	assert.Equal(t, "A1", m["Material"])

	require.NoError(t, rec.SetNormalized(map[string]any{"product.name": "x"}))
	require.NotNil(t, rec.NormalizedData)
	assert.JSONEq(t, `{"product.name":"x"}`, *rec.NormalizedData)

	rec.Payload = `not json`
	_, err = rec.PayloadMap()
	assert.Error(t, err)
}
