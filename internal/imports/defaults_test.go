package imports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kweber84/erpimport/internal/db"
)

func defaultLine(t *testing.T, target string, value any, datatype string) db.ImportGlobalDefaultLine {
	t.Helper()
	l := db.ImportGlobalDefaultLine{TargetPath: target, DatatypeCode: datatype}
	require.NoError(t, l.SetValue(value))
	return l
}

func TestLinesFromModelsRejectsUnknownCodes(t *testing.T) {
	_, err := LinesFromModels([]db.ImportGlobalDefaultLine{
		{TargetPath: "product.name", DatatypeCode: "varchar"},
	})
	assert.ErrorContains(t, err, "unknown datatype code")
}

func TestFlattenDefaults(t *testing.T) {
	lines, err := LinesFromModels([]db.ImportGlobalDefaultLine{
		defaultLine(t, "variant.origin_code", "E", "str"),
		defaultLine(t, "price.currency_code", "EUR", "str"),
		defaultLine(t, "product.is_active", true, "bool"),
	})
	require.NoError(t, err)

	flat := FlattenDefaults(lines)
	assert.Equal(t, map[string]any{
		"variant.origin_code": "E",
		"price.currency_code": "EUR",
		"product.is_active":   true,
	}, flat)
}

func TestBuildBaseDictSections(t *testing.T) {
	lines, err := LinesFromModels([]db.ImportGlobalDefaultLine{
		defaultLine(t, "variant.origin_code", "E", "str"),
		defaultLine(t, "price.currency_code", "EUR", "str"),
		defaultLine(t, "nodot", "x", "str"),
		defaultLine(t, "custom_section.key", 1.0, "decimal"),
	})
	require.NoError(t, err)

	base := BuildBaseDict(lines)

	// known sections always present, even when empty
	for _, s := range []string{"product", "variant", "price", "supplier", "supplier_product"} {
		assert.Contains(t, base, s)
	}

	assert.Equal(t, "E", base["variant"]["origin_code"])
	assert.Equal(t, "EUR", base["price"]["currency_code"])
	// no dot lands in product
	assert.Equal(t, "x", base["product"]["nodot"])
	// unknown sections are created on demand
	assert.Equal(t, 1.0, base["custom_section"]["key"])
	assert.Empty(t, base["supplier"])
}

func TestBuildBaseDictSplitsOnFirstDot(t *testing.T) {
	lines, err := LinesFromModels([]db.ImportGlobalDefaultLine{
		defaultLine(t, "supplier_product.nested.key", "v", "str"),
	})
	require.NoError(t, err)

	base := BuildBaseDict(lines)
	assert.Equal(t, "v", base["supplier_product"]["nested.key"])
}
