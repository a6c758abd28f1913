package ir_test

import (
	"strings"
	"testing"

	"github.com/nalgeon/be"

	"github.com/splash-lang/sbc/pkg/ir"
	"github.com/splash-lang/sbc/pkg/value"
)

func firstArg(t *testing.T, prog *ir.Program) *ir.Expr {
	t.Helper()
	return prog.Stage.Procedures[0].Body.Stmts[0].Args[0]
}

func TestFoldArithmetic(t *testing.T) {
	for src, want := range map[string]float64{
		`(+ 1 2 3)`:     6,
		`(+ 5)`:         5,
		`(- 10 3 2)`:    5,
		`(- 5)`:         -5,
		`(* 2 3 4)`:     24,
		`(/ 12 3 2)`:    2,
		`(/ 4)`:         0.25,
		`(+)`:           0,
		`(*)`:           1,
		`(+ 1 (* 2 3))`: 7,
	} {
		prog := build(t, `(stage (when-flag-clicked (print `+src+`)))`)
		prog.Optimize()
		expr := firstArg(t, prog)
		be.Equal(t, expr.Kind, ir.ExprLit)
		be.Equal(t, expr.Lit.Num, want)
	}
}

func TestFoldNot(t *testing.T) {
	prog := build(t, `(stage (when-flag-clicked (print (not false))))`)
	prog.Optimize()
	expr := firstArg(t, prog)
	be.Equal(t, expr.Kind, ir.ExprLit)
	be.Equal(t, expr.Lit.Kind, value.Bool)
	be.Equal(t, expr.Lit.Bool, true)
}

func TestNonLiteralOperandDisablesFolding(t *testing.T) {
	prog := build(t, `
		(stage
			(variables n)
			(when-flag-clicked (print (+ 1 n 2))))`)
	prog.Optimize()
	expr := firstArg(t, prog)
	be.Equal(t, expr.Kind, ir.ExprAddSub)
}

func TestFoldInsideLoopCounts(t *testing.T) {
	prog := build(t, `(stage (when-flag-clicked (repeat (* 2 5) (print "x"))))`)
	prog.Optimize()
	times := prog.Stage.Procedures[0].Body.Stmts[0].Times
	be.Equal(t, times.Kind, ir.ExprLit)
	be.Equal(t, times.Lit.Num, 10.0)
}

func TestDumpRoundTrip(t *testing.T) {
	prog := build(t, `
		(stage
			(variables score)
			(when-flag-clicked
				(for i 3 (print i))))`)
	dump := prog.Dump()
	be.True(t, len(dump) > 0)
	// the dump names every construct it contains
	for _, needle := range []string{"stage", "variables score", "when-flag-clicked", "(for i 3", "(print i)"} {
		be.True(t, strings.Contains(dump, needle))
	}
}
