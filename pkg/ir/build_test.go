package ir_test

import (
	"testing"

	"github.com/nalgeon/be"

	"github.com/splash-lang/sbc/pkg/diag"
	"github.com/splash-lang/sbc/pkg/ir"
	"github.com/splash-lang/sbc/pkg/parser"
)

func build(t *testing.T, src string) *ir.Program {
	t.Helper()
	forms, perr := parser.NewParser([]rune(src), 0).Parse()
	if perr != nil {
		t.Fatalf("parse: %v", perr)
	}
	prog, berr := ir.FromAsts(forms)
	if berr != nil {
		t.Fatalf("build: %v", berr)
	}
	return prog
}

func buildFail(t *testing.T, src string) *diag.Error {
	t.Helper()
	forms, perr := parser.NewParser([]rune(src), 0).Parse()
	if perr != nil {
		t.Fatalf("parse: %v", perr)
	}
	_, berr := ir.FromAsts(forms)
	be.True(t, berr != nil)
	return berr
}

func TestStageAndSprites(t *testing.T) {
	prog := build(t, `
		(stage (when-flag-clicked (print "hi")))
		(sprite "Cat" (when-flag-clicked (print "meow")))`)
	be.Equal(t, prog.Stage.Name, "Stage")
	be.Equal(t, len(prog.Sprites), 1)
	be.Equal(t, prog.Sprites[0].Name, "Cat")
	all := prog.AllSprites()
	be.Equal(t, len(all), 2)
	be.Equal(t, all[0], prog.Stage)
}

func TestVariablesAndLists(t *testing.T) {
	prog := build(t, `(stage (variables a b) (lists xs))`)
	be.Equal(t, prog.Stage.Variables, []string{"a", "b"})
	be.Equal(t, prog.Stage.Lists, []string{"xs"})
}

func TestProcForms(t *testing.T) {
	prog := build(t, `
		(stage
			(proc greet (print "hi"))
			(proc (shout msg) (print msg)))`)
	procs := prog.Stage.Procedures
	be.Equal(t, len(procs), 2)
	be.Equal(t, procs[0].Name, "greet")
	be.Equal(t, len(procs[0].Params), 0)
	be.Equal(t, procs[1].Name, "shout")
	be.Equal(t, procs[1].Params, []string{"msg"})
}

func TestEntryHatBlock(t *testing.T) {
	prog := build(t, `(stage (when-flag-clicked (print "go")))`)
	proc := prog.Stage.Procedures[0]
	be.Equal(t, proc.Name, "when-flag-clicked")
	be.Equal(t, proc.Body.Kind, ir.StmtDo)
	be.Equal(t, len(proc.Body.Stmts), 1)
	be.Equal(t, proc.Body.Stmts[0].Kind, ir.StmtProcCall)
	be.Equal(t, proc.Body.Stmts[0].ProcName, "print")
}

func TestOperandPartitioning(t *testing.T) {
	prog := build(t, `(stage (when-flag-clicked (print (- 10 3 2))))`)
	expr := prog.Stage.Procedures[0].Body.Stmts[0].Args[0]
	be.Equal(t, expr.Kind, ir.ExprAddSub)
	be.Equal(t, len(expr.Positives), 1)
	be.Equal(t, len(expr.Negatives), 2)

	prog = build(t, `(stage (when-flag-clicked (print (- 5))))`)
	expr = prog.Stage.Procedures[0].Body.Stmts[0].Args[0]
	be.Equal(t, len(expr.Positives), 0)
	be.Equal(t, len(expr.Negatives), 1)

	prog = build(t, `(stage (when-flag-clicked (print (/ 4))))`)
	expr = prog.Stage.Procedures[0].Body.Stmts[0].Args[0]
	be.Equal(t, expr.Kind, ir.ExprMulDiv)
	be.Equal(t, len(expr.Positives), 0)
	be.Equal(t, len(expr.Negatives), 1)

	prog = build(t, `(stage (when-flag-clicked (print (/ 12 3 2))))`)
	expr = prog.Stage.Procedures[0].Body.Stmts[0].Args[0]
	be.Equal(t, len(expr.Positives), 1)
	be.Equal(t, len(expr.Negatives), 2)
}

func TestFuncOpResolution(t *testing.T) {
	prog := build(t, `(stage (when-flag-clicked (print (str-length "abc"))))`)
	expr := prog.Stage.Procedures[0].Body.Stmts[0].Args[0]
	be.Equal(t, expr.Kind, ir.ExprFuncCall)
	be.Equal(t, expr.Op, ir.OpStrLength)

	err := buildFail(t, `(stage (when-flag-clicked (print (warp-speed 9))))`)
	be.Equal(t, err.Kind, diag.ErrUnknownFunction)
}

func TestStatementKinds(t *testing.T) {
	prog := build(t, `
		(stage (when-flag-clicked
			(if true (print "y") (print "n"))
			(repeat 3 (print "x"))
			(forever (print "spin"))
			(until false (print "u"))
			(while true (print "w"))
			(for i 10 (print i))))`)
	stmts := prog.Stage.Procedures[0].Body.Stmts
	kinds := make([]ir.StmtKind, len(stmts))
	for i, s := range stmts {
		kinds[i] = s.Kind
	}
	be.Equal(t, kinds, []ir.StmtKind{
		ir.StmtIfElse, ir.StmtRepeat, ir.StmtForever,
		ir.StmtUntil, ir.StmtWhile, ir.StmtFor,
	})
	be.Equal(t, stmts[5].Var, "i")
}

func TestTopLevelMustBeSpriteOrStage(t *testing.T) {
	err := buildFail(t, `(print "loose")`)
	be.Equal(t, err.Kind, diag.ErrParse)
}

func TestUnquoteOutsideMacroIsFatal(t *testing.T) {
	err := buildFail(t, `(stage (when-flag-clicked (print ,x)))`)
	be.Equal(t, err.Kind, diag.ErrMacro)
}
