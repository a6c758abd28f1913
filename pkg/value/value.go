package value

import (
	"math"
	"strconv"
	"strings"
)

type Kind int

const (
	Num Kind = iota
	Bool
	Str
)

// Value is a compile-time literal. The backend decides the runtime
// representation; this type only carries the source-level constant.
type Value struct {
	Kind Kind
	Num  float64
	Bool bool
	Str  string
}

func NewNum(n float64) Value { return Value{Kind: Num, Num: n} }
func NewBool(b bool) Value   { return Value{Kind: Bool, Bool: b} }
func NewStr(s string) Value  { return Value{Kind: Str, Str: s} }

// Text is the canonical textual form of a value, used when a literal is
// interned into the static string table.
func (v Value) Text() string {
	switch v.Kind {
	case Num:
		return FormatNum(v.Num)
	case Bool:
		if v.Bool {
			return "true"
		}
		return "false"
	default:
		return v.Str
	}
}

// ToNum follows the language's loose numeric conversion for constants.
func (v Value) ToNum() float64 {
	switch v.Kind {
	case Num:
		return v.Num
	case Bool:
		if v.Bool {
			return 1.0
		}
		return 0.0
	default:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return math.NaN()
		}
		return n
	}
}

// ToBool is the truthiness rule: zero and NaN are falsy numbers; the empty
// string and "false" are falsy strings.
func (v Value) ToBool() bool {
	switch v.Kind {
	case Num:
		return v.Num != 0 && !math.IsNaN(v.Num)
	case Bool:
		return v.Bool
	default:
		return v.Str != "" && v.Str != "false"
	}
}

// FormatNum renders a double the way the runtime does: integral values
// without a decimal point, everything else in shortest round-trip form.
func FormatNum(n float64) string {
	if math.IsNaN(n) {
		return "NaN"
	}
	if math.IsInf(n, 1) {
		return "Infinity"
	}
	if math.IsInf(n, -1) {
		return "-Infinity"
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e17 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}
