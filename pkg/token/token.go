package token

// Span locates a source construct for diagnostics. FileIndex refers to the
// source file registry kept by pkg/diag.
type Span struct {
	FileIndex int
	Line      int
	Column    int
	Len       int
}

// NoSpan marks diagnostics that have no source location, e.g. driver errors
// raised before any file has been read.
var NoSpan = Span{FileIndex: -1}

func (s Span) IsValid() bool { return s.FileIndex >= 0 && s.Line > 0 }

// Merge extends s to cover other on the same line. Spans from another file
// leave s unchanged.
func (s Span) Merge(other Span) Span {
	if !s.IsValid() {
		return other
	}
	if !other.IsValid() || other.FileIndex != s.FileIndex {
		return s
	}
	if other.Line == s.Line && other.Column+other.Len > s.Column+s.Len {
		s.Len = other.Column + other.Len - s.Column
	}
	return s
}
