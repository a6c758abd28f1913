package ast

import (
	"strconv"
	"strings"

	"github.com/splash-lang/sbc/pkg/token"
)

type Kind int

const (
	Num Kind = iota
	Bool
	String
	Sym
	Node    // parenthesized form: head followed by arguments
	Unquote // ,expr inside a macro body
)

// Ast is one s-expression. Which fields are meaningful depends on Kind:
// NumVal for Num, BoolVal for Bool, StrVal for String and Sym, Head/Args
// for Node, and Head alone for Unquote.
type Ast struct {
	Kind    Kind
	Span    token.Span
	NumVal  float64
	BoolVal bool
	StrVal  string
	Head    *Ast
	Args    []*Ast
}

func NewNum(n float64, span token.Span) *Ast  { return &Ast{Kind: Num, Span: span, NumVal: n} }
func NewBool(b bool, span token.Span) *Ast    { return &Ast{Kind: Bool, Span: span, BoolVal: b} }
func NewString(s string, span token.Span) *Ast { return &Ast{Kind: String, Span: span, StrVal: s} }
func NewSym(s string, span token.Span) *Ast   { return &Ast{Kind: Sym, Span: span, StrVal: s} }

func NewNode(head *Ast, args []*Ast, span token.Span) *Ast {
	return &Ast{Kind: Node, Span: span, Head: head, Args: args}
}

// IsSym reports whether a is the symbol name.
func (a *Ast) IsSym(name string) bool {
	return a != nil && a.Kind == Sym && a.StrVal == name
}

// IsCallTo reports whether a is a node whose head is the symbol name.
func (a *Ast) IsCallTo(name string) bool {
	return a != nil && a.Kind == Node && a.Head.IsSym(name)
}

// Clone deep-copies an AST; macro expansion substitutes into copies so a
// macro body can be instantiated more than once.
func (a *Ast) Clone() *Ast {
	if a == nil {
		return nil
	}
	c := *a
	c.Head = a.Head.Clone()
	if a.Args != nil {
		c.Args = make([]*Ast, len(a.Args))
		for i, arg := range a.Args {
			c.Args[i] = arg.Clone()
		}
	}
	return &c
}

// String renders the expression back to source-ish form for debug output.
func (a *Ast) String() string {
	var sb strings.Builder
	a.write(&sb)
	return sb.String()
}

func (a *Ast) write(sb *strings.Builder) {
	if a == nil {
		sb.WriteString("()")
		return
	}
	switch a.Kind {
	case Num:
		sb.WriteString(strconv.FormatFloat(a.NumVal, 'g', -1, 64))
	case Bool:
		if a.BoolVal {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case String:
		sb.WriteByte('"')
		sb.WriteString(a.StrVal)
		sb.WriteByte('"')
	case Sym:
		sb.WriteString(a.StrVal)
	case Node:
		sb.WriteByte('(')
		a.Head.write(sb)
		for _, arg := range a.Args {
			sb.WriteByte(' ')
			arg.write(sb)
		}
		sb.WriteByte(')')
	case Unquote:
		sb.WriteByte(',')
		a.Head.write(sb)
	}
}
