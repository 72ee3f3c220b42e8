// Package imports holds the normalization pipeline: datatype and transform
// registries, the mapping engine, global defaults and the record normalizer.
package imports

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DataType is the closed set of target datatypes a mapping rule or default
// line may name. Codes are resolved once when configuration is loaded;
// record processing never sees an unknown code.
type DataType uint8

const (
	TypeStr DataType = iota
	TypeInt
	TypeDecimal
	TypeBool
	TypeDate
	TypeDateTime
)

var dataTypeCodes = map[string]DataType{
	"str":      TypeStr,
	"int":      TypeInt,
	"decimal":  TypeDecimal,
	"bool":     TypeBool,
	"date":     TypeDate,
	"datetime": TypeDateTime,
}

// ParseDataType resolves a datatype code. Unknown codes are a configuration
// error and must be rejected before any record is processed.
func ParseDataType(code string) (DataType, error) {
	t, ok := dataTypeCodes[code]
	if !ok {
		return TypeStr, fmt.Errorf("unknown datatype code %q", code)
	}
	return t, nil
}

func (t DataType) Code() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeDecimal:
		return "decimal"
	case TypeBool:
		return "bool"
	case TypeDate:
		return "date"
	case TypeDateTime:
		return "datetime"
	default:
		return "str"
	}
}

// Coerce converts v to the primitive shape of the datatype. It is total:
// the result is either a value of the expected kind or nil, never an error.
// nil input always stays nil.
func (t DataType) Coerce(v any) any {
	if v == nil {
		return nil
	}
	switch t {
	case TypeInt:
		return toInt(v)
	case TypeDecimal:
		return toDecimal(v)
	case TypeBool:
		return coerceBool(v)
	case TypeDate:
		return toDate(v, "2006-01-02")
	case TypeDateTime:
		return toDate(v, time.RFC3339)
	default: // str
		return stringify(v)
	}
}

// stringify renders a value the way it should appear in normalized output.
// Floats drop trailing zeros, decimals keep their scale.
func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case decimal.Decimal:
		if x.Exponent() < 0 {
			return x.StringFixed(-x.Exponent())
		}
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

// toInt parses to int64, truncating fractional input toward zero.
// Empty strings and parse failures degrade to nil.
func toInt(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		return int64(x)
	case float32:
		return int64(x)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case decimal.Decimal:
		return x.IntPart()
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil
		}
		return n
	default:
		return nil
	}
}

// toDecimal parses to an arbitrary-precision decimal. Same nil/empty/failure
// policy as toInt; note that a decimal comma ("12,50") is a parse failure.
func toDecimal(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case decimal.Decimal:
		return x
	case int:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	case float64:
		return decimal.NewFromFloat(x)
	case float32:
		return decimal.NewFromFloat32(x)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil
		}
		return d
	default:
		return nil
	}
}

// boolStrings is the truthy set for string input; everything else is false.
var boolStrings = map[string]bool{"1": true, "true": true, "yes": true, "y": true}

// coerceBool enforces the bool datatype: strings go through the truthy set
// (an empty string is false), other values through truthiness.
func coerceBool(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		return x
	case string:
		return boolStrings[strings.ToLower(strings.TrimSpace(x))]
	default:
		return truthy(v)
	}
}

// truthy mirrors loose truthiness for the odd non-bool, non-string value a
// payload may carry: zero numbers and empty containers are false.
func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case float32:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	case decimal.Decimal:
		return !x.IsZero()
	case nil:
		return false
	default:
		return true
	}
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02.01.2006",
}

// toDate parses date-ish input and re-renders it in the given layout so
// normalized output stays JSON-safe. Failure degrades to nil.
func toDate(v any, layout string) any {
	switch x := v.(type) {
	case time.Time:
		return x.Format(layout)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil
		}
		for _, l := range dateLayouts {
			if ts, err := time.Parse(l, s); err == nil {
				return ts.Format(layout)
			}
		}
		return nil
	default:
		return nil
	}
}
