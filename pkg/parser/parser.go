package parser

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/splash-lang/sbc/pkg/ast"
	"github.com/splash-lang/sbc/pkg/diag"
	"github.com/splash-lang/sbc/pkg/token"
)

// Parser reads one source file of s-expressions into AST nodes.
type Parser struct {
	src       []rune
	pos       int
	line      int
	col       int
	fileIndex int
}

func NewParser(src []rune, fileIndex int) *Parser {
	return &Parser{src: src, line: 1, col: 1, fileIndex: fileIndex}
}

// Parse consumes the whole file and returns its top-level expressions.
func (p *Parser) Parse() ([]*ast.Ast, *diag.Error) {
	var program []*ast.Ast
	p.skipWs()
	for !p.atEOF() {
		expr, err := p.expr()
		if err != nil {
			return nil, err
		}
		program = append(program, expr)
		p.skipWs()
	}
	return program, nil
}

func (p *Parser) atEOF() bool { return p.pos >= len(p.src) }

func (p *Parser) peek() rune {
	if p.atEOF() {
		return 0
	}
	return p.src[p.pos]
}

func (p *Parser) next() rune {
	r := p.src[p.pos]
	p.pos++
	if r == '\n' {
		p.line++
		p.col = 1
	} else {
		p.col++
	}
	return r
}

func (p *Parser) here(length int) token.Span {
	return token.Span{FileIndex: p.fileIndex, Line: p.line, Column: p.col, Len: length}
}

func (p *Parser) skipWs() {
	for !p.atEOF() {
		r := p.peek()
		switch {
		case unicode.IsSpace(r):
			p.next()
		case r == ';':
			for !p.atEOF() && p.peek() != '\n' {
				p.next()
			}
		default:
			return
		}
	}
}

func (p *Parser) errorf(span token.Span, format string, args ...any) *diag.Error {
	return diag.Errorf(diag.ErrParse, span, format, args...)
}

func (p *Parser) expr() (*ast.Ast, *diag.Error) {
	switch r := p.peek(); {
	case r == '(':
		return p.node()
	case r == '"':
		return p.string()
	case r == ',':
		return p.unquote()
	case isSymFirstChar(r) || unicode.IsDigit(r):
		return p.atom()
	default:
		return nil, p.errorf(p.here(1), "unexpected character %q", r)
	}
}

func (p *Parser) node() (*ast.Ast, *diag.Error) {
	start := p.here(1)
	p.next() // '('
	p.skipWs()
	if p.peek() == ')' {
		end := p.here(1)
		return nil, p.errorf(start.Merge(end), "empty list")
	}
	head, err := p.expr()
	if err != nil {
		return nil, err
	}
	var args []*ast.Ast
	for {
		p.skipWs()
		if p.atEOF() {
			return nil, p.errorf(start, "unclosed list")
		}
		if p.peek() == ')' {
			end := p.here(1)
			p.next()
			return ast.NewNode(head, args, start.Merge(end)), nil
		}
		arg, err := p.expr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
}

func (p *Parser) unquote() (*ast.Ast, *diag.Error) {
	start := p.here(1)
	p.next() // ','
	p.skipWs()
	inner, err := p.expr()
	if err != nil {
		return nil, err
	}
	return &ast.Ast{Kind: ast.Unquote, Span: start.Merge(inner.Span), Head: inner}, nil
}

// atom scans a maximal run of symbol characters and classifies it as a
// number, a boolean, or a symbol.
func (p *Parser) atom() (*ast.Ast, *diag.Error) {
	start := p.here(0)
	var sb strings.Builder
	for !p.atEOF() && isSymChar(p.peek()) {
		sb.WriteRune(p.next())
	}
	text := sb.String()
	span := start
	span.Len = len([]rune(text))

	switch text {
	case "true":
		return ast.NewBool(true, span), nil
	case "false":
		return ast.NewBool(false, span), nil
	}

	if looksNumeric(text) {
		n, err := parseNumber(text)
		if err != nil {
			return nil, p.errorf(span, "malformed number %q", text)
		}
		return ast.NewNum(n, span), nil
	}
	return ast.NewSym(text, span), nil
}

// looksNumeric reports whether an atom must be a number: it starts with a
// digit, or a sign immediately followed by a digit. Bare "+" and "-" stay
// symbols.
func looksNumeric(s string) bool {
	r := []rune(s)
	if len(r) == 0 {
		return false
	}
	if unicode.IsDigit(r[0]) {
		return true
	}
	return (r[0] == '+' || r[0] == '-') && len(r) > 1 && unicode.IsDigit(r[1])
}

// parseNumber accepts decimal floats plus signed 0x/0b/0o based integers.
func parseNumber(s string) (float64, error) {
	if n, err := strconv.ParseInt(s, 0, 64); err == nil {
		return float64(n), nil
	}
	return strconv.ParseFloat(s, 64)
}

func (p *Parser) string() (*ast.Ast, *diag.Error) {
	start := p.here(1)
	p.next() // '"'
	var sb strings.Builder
	for {
		if p.atEOF() {
			return nil, p.errorf(start, "unterminated string")
		}
		r := p.next()
		switch r {
		case '"':
			end := token.Span{FileIndex: p.fileIndex, Line: p.line, Column: p.col - 1, Len: 1}
			return ast.NewString(sb.String(), start.Merge(end)), nil
		case '\n':
			return nil, p.errorf(start, "unterminated string")
		case '\\':
			if err := p.escape(&sb, start); err != nil {
				return nil, err
			}
		default:
			sb.WriteRune(r)
		}
	}
}

func (p *Parser) escape(sb *strings.Builder, start token.Span) *diag.Error {
	if p.atEOF() {
		return p.errorf(start, "unterminated string")
	}
	at := p.here(2)
	r := p.next()
	switch r {
	case '"', '\'', '\\':
		sb.WriteRune(r)
	case 'n':
		sb.WriteByte('\n')
	case 't':
		sb.WriteByte('\t')
	case 'r':
		sb.WriteByte('\r')
	case 'b':
		sb.WriteByte('\x08')
	case 'f':
		sb.WriteByte('\x0c')
	case 'v':
		sb.WriteByte('\x0b')
	case '0':
		if unicode.IsDigit(p.peek()) {
			return p.errorf(at, "invalid escape sequence")
		}
		sb.WriteByte(0)
	case 'x':
		return p.hexEscape(sb, at, 2, 2)
	case 'u':
		if p.peek() == '{' {
			p.next()
			if err := p.hexEscape(sb, at, 1, 6); err != nil {
				return err
			}
			if p.peek() != '}' {
				return p.errorf(at, "unterminated \\u{...} escape")
			}
			p.next()
			return nil
		}
		return p.hexEscape(sb, at, 4, 4)
	default:
		return p.errorf(at, "unknown escape sequence '\\%c'", r)
	}
	return nil
}

func (p *Parser) hexEscape(sb *strings.Builder, at token.Span, minDigits, maxDigits int) *diag.Error {
	var digits strings.Builder
	for digits.Len() < maxDigits && isHexDigit(p.peek()) {
		digits.WriteRune(p.next())
	}
	if digits.Len() < minDigits {
		return p.errorf(at, "invalid hex escape")
	}
	code, err := strconv.ParseUint(digits.String(), 16, 32)
	if err != nil || !utf8Valid(rune(code)) {
		return p.errorf(at, "escape is not a valid character")
	}
	sb.WriteRune(rune(code))
	return nil
}

func utf8Valid(r rune) bool {
	return r >= 0 && r <= unicode.MaxRune && !(r >= 0xD800 && r <= 0xDFFF)
}

func isHexDigit(r rune) bool {
	return unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isSymFirstChar(r rune) bool {
	return unicode.IsLetter(r) || strings.ContainsRune("!$%&*+-./:<=>?@^_~[]", r)
}

func isSymChar(r rune) bool {
	return isSymFirstChar(r) || unicode.IsDigit(r)
}
