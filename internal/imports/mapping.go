package imports

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kweber84/erpimport/internal/db"
)

// Rule is one validated mapping rule: read source_path from the raw
// payload, optionally transform, coerce to the target datatype and write
// under target_path. Rules are independent of each other.
type Rule struct {
	SourcePath string
	TargetPath string
	Type       DataType
	Transform  *Transform
	Required   bool
}

// RulesFromDetails validates the stored detail rows into engine rules.
// Any unknown datatype or transform code fails the whole set; this is the
// configuration-load-time check that keeps unknown codes out of
// per-record processing.
func RulesFromDetails(details []db.ImportMapDetail) ([]Rule, error) {
	rules := make([]Rule, 0, len(details))
	for _, d := range details {
		dt, err := ParseDataType(d.DatatypeCode)
		if err != nil {
			return nil, fmt.Errorf("map detail %s -> %s: %w", d.SourcePath, d.TargetPath, err)
		}
		r := Rule{
			SourcePath: d.SourcePath,
			TargetPath: d.TargetPath,
			Type:       dt,
			Required:   d.IsRequired,
		}
		if d.TransformCode != "" {
			tf, err := ParseTransform(d.TransformCode)
			if err != nil {
				return nil, fmt.Errorf("map detail %s -> %s: %w", d.SourcePath, d.TargetPath, err)
			}
			r.Transform = &tf
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// ApplyMapping transforms a raw payload into the flat normalized dict.
// Every rule writes its target key: a missing source path yields nil, a
// failed transform or coercion yields nil. The function never fails for
// individual fields and has no state, so applying it twice gives
// identical output.
func ApplyMapping(payload map[string]any, rules []Rule) map[string]any {
	normalized := make(map[string]any, len(rules))

	for _, r := range rules {
		value := lookupSource(payload, r.SourcePath)

		if r.Transform != nil {
			value = r.Transform.Apply(value)
		}

		value = r.Type.Coerce(value)

		// target_path stays a literal flat key ("product.name" is one
		// key); nesting is the defaults engine's concern only
		normalized[r.TargetPath] = value
	}

	return JSONSafe(normalized)
}

// lookupSource reads a source path from the payload. The literal key wins;
// a dotted path falls back to descending nested objects. Missing keys are
// nil, never an error.
func lookupSource(payload map[string]any, path string) any {
	if v, ok := payload[path]; ok {
		return v
	}
	if !strings.Contains(path, ".") {
		return nil
	}
	var cur any = payload
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

// JSONSafe recursively converts values so the dict can be persisted as
// JSON without loss of meaning: decimals become floats, everything else
// passes through (dicts and lists are recursed).
func JSONSafe(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = jsonSafeValue(v)
	}
	return out
}

func jsonSafeValue(v any) any {
	switch x := v.(type) {
	case decimal.Decimal:
		f, _ := x.Float64()
		return f
	case map[string]any:
		return JSONSafe(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = jsonSafeValue(e)
		}
		return out
	default:
		return v
	}
}
