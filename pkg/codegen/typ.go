package codegen

// Typ is the physical representation a compiled expression's result
// occupies. Every code path through the expression generator yields exactly
// one of these shapes, in a fixed location per kind:
//
//	Double      xmm0
//	Bool        rax, canonically 0 or 1
//	StaticStr   rax = pointer, rdx = length; borrowed, never released
//	OwnedString rax = pointer, rdx = length; owned, released exactly once
//	Any         rax = discriminant/value, rdx = payload
type Typ int

const (
	Double Typ = iota
	Bool
	StaticStr
	OwnedString
	Any
)

func (t Typ) String() string {
	switch t {
	case Double:
		return "number"
	case Bool:
		return "boolean"
	case StaticStr, OwnedString:
		return "string"
	case Any:
		return "any"
	default:
		return "?"
	}
}

// Owned reports whether a value of this representation carries heap
// ownership that must be released.
func (t Typ) Owned() bool { return t == OwnedString }
