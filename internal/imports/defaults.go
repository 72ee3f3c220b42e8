package imports

import (
	"fmt"
	"strings"

	"github.com/kweber84/erpimport/internal/db"
)

// DefaultLine is a validated global default: a target path with its
// baseline value. Transform and datatype codes are checked at load time;
// the stored value itself is placed verbatim (mapping output decides the
// final shape on collision anyway).
type DefaultLine struct {
	TargetPath string
	Value      any
	Type       DataType
	Transform  *Transform
	Required   bool
}

// knownSections are pre-seeded in the nested base dict; unknown sections
// are created on demand.
var knownSections = []string{"product", "variant", "price", "supplier", "supplier_product"}

// LinesFromModels validates stored default lines into engine lines,
// rejecting unknown codes the same way mapping rules do.
func LinesFromModels(rows []db.ImportGlobalDefaultLine) ([]DefaultLine, error) {
	lines := make([]DefaultLine, 0, len(rows))
	for _, row := range rows {
		dt, err := ParseDataType(row.DatatypeCode)
		if err != nil {
			return nil, fmt.Errorf("default line %s: %w", row.TargetPath, err)
		}
		value, err := row.Value()
		if err != nil {
			return nil, fmt.Errorf("default line %s: bad default value: %w", row.TargetPath, err)
		}
		l := DefaultLine{
			TargetPath: row.TargetPath,
			Value:      value,
			Type:       dt,
			Required:   row.IsRequired,
		}
		if row.TransformCode != "" {
			tf, err := ParseTransform(row.TransformCode)
			if err != nil {
				return nil, fmt.Errorf("default line %s: %w", row.TargetPath, err)
			}
			l.Transform = &tf
		}
		lines = append(lines, l)
	}
	return lines, nil
}

// FlattenDefaults returns the merge-ready flat form {target_path: value}.
// This is what the normalizer lays under the mapping output.
func FlattenDefaults(lines []DefaultLine) map[string]any {
	out := make(map[string]any, len(lines))
	for _, l := range lines {
		out[l.TargetPath] = l.Value
	}
	return out
}

// BuildBaseDict expands default lines into the nested section form used
// for inspection: target_path splits on the first dot into section and
// key, paths without a dot land in "product".
func BuildBaseDict(lines []DefaultLine) map[string]map[string]any {
	base := make(map[string]map[string]any, len(knownSections))
	for _, s := range knownSections {
		base[s] = map[string]any{}
	}

	for _, l := range lines {
		section, key := "product", l.TargetPath
		if i := strings.Index(l.TargetPath, "."); i >= 0 {
			section, key = l.TargetPath[:i], l.TargetPath[i+1:]
		}
		if _, ok := base[section]; !ok {
			base[section] = map[string]any{}
		}
		base[section][key] = l.Value
	}

	return base
}
