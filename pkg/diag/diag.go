package diag

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/splash-lang/sbc/pkg/token"
)

// Kind classifies a compilation error. Every kind is fatal to the
// compilation unit being processed; there is no partial code emission.
type Kind int

const (
	ErrParse Kind = iota
	ErrUnknownFunction
	ErrUnknownVarOrList
	ErrUnknownProc
	ErrWrongArgCount
	ErrBadEntrySignature
	ErrMacro
	ErrUnsupported
)

// Error is a fatal diagnostic carrying the offending source span. Compiler
// passes return *Error values; only the driver prints and exits.
type Error struct {
	Kind Kind
	Span token.Span
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func Errorf(kind Kind, span token.Span, format string, args ...any) *Error {
	return &Error{Kind: kind, Span: span, Msg: fmt.Sprintf(format, args...)}
}

// SourceFileRecord tracks the name and content of a single source file.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

var sourceFiles []SourceFileRecord

// SetSourceFiles stores the source code for all input files so diagnostics
// can quote the offending line.
func SetSourceFiles(files []SourceFileRecord) {
	sourceFiles = files
}

var useColor = term.IsTerminal(int(os.Stderr.Fd()))

func colorize(code, s string) string {
	if !useColor {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

func location(span token.Span) string {
	if span.FileIndex < 0 || span.FileIndex >= len(sourceFiles) {
		return "sbc"
	}
	return fmt.Sprintf("%s:%d:%d", sourceFiles[span.FileIndex].Name, span.Line, span.Column)
}

// printSourceLine prints the source line and a caret underlining the span.
func printSourceLine(stream *os.File, span token.Span) {
	if span.FileIndex < 0 || span.FileIndex >= len(sourceFiles) || span.Line == 0 {
		return
	}

	content := sourceFiles[span.FileIndex].Content
	lineNum := span.Line
	lineStart := 0
	for i, r := range content {
		if lineNum <= 1 {
			break
		}
		if r == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}
	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(stream, "  %s\n", string(content[lineStart:lineEnd]))

	marker := "^"
	if span.Len > 1 {
		marker += strings.Repeat("~", span.Len-1)
	}
	fmt.Fprintf(stream, "  %s%s\n", strings.Repeat(" ", span.Column-1), colorize("32", marker))
}

// Print renders a fatal diagnostic to stderr.
func Print(err *Error) {
	fmt.Fprintf(os.Stderr, "%s: %s %s\n", location(err.Span), colorize("31", "error:"), err.Msg)
	printSourceLine(os.Stderr, err.Span)
}

// Warner gates warnings on a per-warning switch; pkg/config implements it.
type Warner interface {
	WarningEnabled(name string) bool
}

// Warn prints a warning if enabled in the given configuration.
func Warn(w Warner, name string, span token.Span, format string, args ...any) {
	if w != nil && !w.WarningEnabled(name) {
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %s ", location(span), colorize("33", "warning:"))
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintf(os.Stderr, " [-W%s]\n", name)
	printSourceLine(os.Stderr, span)
}
