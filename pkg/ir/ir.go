package ir

import (
	"github.com/splash-lang/sbc/pkg/token"
	"github.com/splash-lang/sbc/pkg/value"
)

// FuncOp is the closed set of built-in functions. Names are resolved to
// tags once while the IR is built, so code generation never re-checks
// function-name strings.
type FuncOp int

const (
	OpListGet FuncOp = iota // !!
	OpConcat                // ++
	OpAnd
	OpOr
	OpNot
	OpLess
	OpEqual
	OpGreater
	OpLength
	OpStrLength
	OpCharAt
	OpMod
	OpAbs
	OpFloor
	OpCeil
	OpSqrt
	OpLn
	OpLog
	OpExpE
	OpExp10
	OpSin
	OpCos
	OpTan
	OpAsin
	OpAcos
	OpAtan
	OpToNum
)

var funcOpNames = map[string]FuncOp{
	"!!":         OpListGet,
	"++":         OpConcat,
	"and":        OpAnd,
	"or":         OpOr,
	"not":        OpNot,
	"<":          OpLess,
	"=":          OpEqual,
	">":          OpGreater,
	"length":     OpLength,
	"str-length": OpStrLength,
	"char-at":    OpCharAt,
	"mod":        OpMod,
	"abs":        OpAbs,
	"floor":      OpFloor,
	"ceil":       OpCeil,
	"sqrt":       OpSqrt,
	"ln":         OpLn,
	"log":        OpLog,
	"e^":         OpExpE,
	"ten^":       OpExp10,
	"sin":        OpSin,
	"cos":        OpCos,
	"tan":        OpTan,
	"asin":       OpAsin,
	"acos":       OpAcos,
	"atan":       OpAtan,
	"to-num":     OpToNum,
}

// LookupFuncOp resolves a source-level function name.
func LookupFuncOp(name string) (FuncOp, bool) {
	op, ok := funcOpNames[name]
	return op, ok
}

func (op FuncOp) String() string {
	for name, o := range funcOpNames {
		if o == op {
			return name
		}
	}
	return "?"
}

type ExprKind int

const (
	ExprLit ExprKind = iota
	ExprSym
	ExprFuncCall
	ExprAddSub
	ExprMulDiv
)

// Expr is one typed-IR expression. Positives/Negatives hold the operand
// partition for ExprAddSub (terms added vs. subtracted) and ExprMulDiv
// (numerators vs. denominators).
type Expr struct {
	Kind ExprKind
	Span token.Span

	Lit       value.Value
	Sym       string
	Op        FuncOp
	Args      []*Expr
	Positives []*Expr
	Negatives []*Expr
}

type StmtKind int

const (
	StmtProcCall StmtKind = iota
	StmtDo
	StmtIfElse
	StmtRepeat
	StmtForever
	StmtUntil
	StmtWhile
	StmtFor
)

type Statement struct {
	Kind StmtKind
	Span token.Span

	ProcName string       // StmtProcCall
	Args     []*Expr      // StmtProcCall
	Stmts    []*Statement // StmtDo
	Cond     *Expr        // StmtIfElse, StmtUntil, StmtWhile
	Times    *Expr        // StmtRepeat, StmtFor
	Var      string       // StmtFor
	Body     *Statement   // loop/branch body
	Else     *Statement   // StmtIfElse, may be nil
}

type Procedure struct {
	Name   string
	Span   token.Span
	Params []string
	Body   *Statement
}

type Sprite struct {
	Name       string
	Variables  []string
	Lists      []string
	Procedures []*Procedure
}

// Program is the compilation unit handed to the backend: the stage plus
// sprites in source declaration order.
type Program struct {
	Stage   *Sprite
	Sprites []*Sprite
}

// AllSprites yields the stage first, then the sprites in declaration order.
// Backends rely on this ordering for deterministic output.
func (p *Program) AllSprites() []*Sprite {
	all := make([]*Sprite, 0, len(p.Sprites)+1)
	if p.Stage != nil {
		all = append(all, p.Stage)
	}
	return append(all, p.Sprites...)
}
