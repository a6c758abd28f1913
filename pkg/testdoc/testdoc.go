// Package testdoc extracts compiler test cases from Markdown documents.
// A test is a "Test: name" heading followed by a splash code fence and
// one or more assertion fences; the docs/ directory holds the suites.
package testdoc

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const InputFence = "splash"

// AssertionType names one kind of assertion fence.
type AssertionType string

const (
	// AssertAsmContains requires each line of the fence to appear in the
	// generated assembly, in order.
	AssertAsmContains AssertionType = "asm-contains"
	// AssertAsmExcludes requires each line of the fence to be absent.
	AssertAsmExcludes AssertionType = "asm-excludes"
	// AssertCompileError requires compilation to fail with a message
	// containing the fence content.
	AssertCompileError AssertionType = "compile-error"
	// AssertIR requires the IR dump to equal the fence content.
	AssertIR AssertionType = "ir"
)

type Assertion struct {
	Type    AssertionType
	Content string
}

type TestCase struct {
	Name       string
	Input      string
	Assertions []Assertion
}

// ExtractTestCases walks a Markdown document and collects its test cases.
// Fences with unknown languages, tests without input, and tests without
// assertions are all reported as errors rather than skipped.
func ExtractTestCases(markdownContent string) ([]TestCase, error) {
	md := goldmark.New()
	source := []byte(markdownContent)
	doc := md.Parser().Parse(text.NewReader(source))

	var cases []TestCase
	var current *TestCase

	flush := func() error {
		if current == nil {
			return nil
		}
		if current.Input == "" {
			return fmt.Errorf("test '%s' has no %s fence", current.Name, InputFence)
		}
		if len(current.Assertions) == 0 {
			return fmt.Errorf("test '%s' has no assertion fences", current.Name)
		}
		cases = append(cases, *current)
		current = nil
		return nil
	}

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Heading:
			heading := nodeText(n, source)
			if name, ok := strings.CutPrefix(heading, "Test: "); ok {
				if err := flush(); err != nil {
					return ast.WalkStop, err
				}
				current = &TestCase{Name: name}
			}

		case *ast.FencedCodeBlock:
			language := string(n.Language(source))
			if language == "" {
				return ast.WalkContinue, nil
			}
			content := fenceContent(n, source)
			if current == nil {
				return ast.WalkStop, fmt.Errorf("%s fence found outside of a test case", language)
			}
			switch {
			case language == InputFence:
				if current.Input != "" {
					return ast.WalkStop, fmt.Errorf("multiple %s fences in test '%s'", InputFence, current.Name)
				}
				current.Input = strings.TrimRight(content, "\n")
			case isAssertionFence(language):
				current.Assertions = append(current.Assertions, Assertion{
					Type:    AssertionType(language),
					Content: strings.TrimRight(content, "\n"),
				})
			default:
				return ast.WalkStop, fmt.Errorf("unknown fence language '%s' in test '%s'", language, current.Name)
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return cases, nil
}

func isAssertionFence(language string) bool {
	switch AssertionType(language) {
	case AssertAsmContains, AssertAsmExcludes, AssertCompileError, AssertIR:
		return true
	}
	return false
}

func nodeText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if t, ok := n.(*ast.Text); ok {
				buf.Write(t.Segment.Value(source))
			}
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func fenceContent(fence *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	for i := 0; i < fence.Lines().Len(); i++ {
		line := fence.Lines().At(i)
		buf.Write(line.Value(source))
	}
	return buf.String()
}
