package report

import (
	"fmt"
	"math"

	"github.com/goccy/go-json"
)

// Value is a derived statistic that may be undefined, e.g. a rate over an
// empty group. The zero Value is Undefined.
type Value struct {
	V       float64
	Defined bool
}

// Undefined marks a statistic whose denominator was zero.
var Undefined = Value{}

// Of wraps a finite number. NaN and infinities become Undefined.
func Of(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Undefined
	}
	return Value{V: v, Defined: true}
}

// Ratio returns num/den, or Undefined when den is zero.
func Ratio(num, den float64) Value {
	if den == 0 {
		return Undefined
	}
	return Of(num / den)
}

// Float returns the value, or fallback when undefined.
func (v Value) Float(fallback float64) float64 {
	if !v.Defined {
		return fallback
	}
	return v.V
}

// String renders the value with four significant digits or "undefined".
func (v Value) String() string {
	if !v.Defined {
		return "undefined"
	}
	return fmt.Sprintf("%.4g", v.V)
}

// Percent renders a ratio as a percentage with one decimal, or "n/a".
func (v Value) Percent() string {
	if !v.Defined {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", v.V*100)
}

// MarshalJSON encodes undefined values as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(v.V)
}
