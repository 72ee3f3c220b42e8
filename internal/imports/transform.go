package imports

import (
	"fmt"
	"strings"
)

// Transform is the closed set of pure value transforms applied to a raw
// value before datatype coercion.
type Transform uint8

const (
	TransformUppercase Transform = iota
	TransformLowercase
	TransformStrip
	TransformInt
	TransformDecimal
	TransformBool
)

var transformCodes = map[string]Transform{
	"uppercase": TransformUppercase,
	"lowercase": TransformLowercase,
	"strip":     TransformStrip,
	"int":       TransformInt,
	"decimal":   TransformDecimal,
	"bool":      TransformBool,
}

// ParseTransform resolves a transform code. Unknown codes are a
// configuration error, rejected at load time like datatype codes.
func ParseTransform(code string) (Transform, error) {
	t, ok := transformCodes[code]
	if !ok {
		return TransformStrip, fmt.Errorf("unknown transform code %q", code)
	}
	return t, nil
}

func (t Transform) Code() string {
	switch t {
	case TransformUppercase:
		return "uppercase"
	case TransformLowercase:
		return "lowercase"
	case TransformStrip:
		return "strip"
	case TransformInt:
		return "int"
	case TransformDecimal:
		return "decimal"
	default:
		return "bool"
	}
}

// Apply runs the transform. nil stays nil for every transform; conversion
// failures degrade to nil instead of raising (the pipeline favours
// completeness over per-field correctness).
func (t Transform) Apply(v any) any {
	if v == nil {
		return nil
	}
	switch t {
	case TransformUppercase:
		return strings.ToUpper(stringify(v))
	case TransformLowercase:
		return strings.ToLower(stringify(v))
	case TransformStrip:
		return strings.TrimSpace(stringify(v))
	case TransformInt:
		return toInt(v)
	case TransformDecimal:
		// bools fall through to nil here: there is no sane decimal
		// reading of true/false
		if _, ok := v.(bool); ok {
			return nil
		}
		return toDecimal(v)
	default: // bool
		if b, ok := v.(bool); ok {
			return b
		}
		if s, ok := v.(string); ok {
			if strings.TrimSpace(s) == "" {
				return nil
			}
			return boolStrings[strings.ToLower(strings.TrimSpace(s))]
		}
		return truthy(v)
	}
}
