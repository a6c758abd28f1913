package codegen

import (
	"github.com/splash-lang/sbc/pkg/diag"
	"github.com/splash-lang/sbc/pkg/ir"
)

func (g *AsmProgram) emitStatement(stmt *ir.Statement) *diag.Error {
	switch stmt.Kind {
	case ir.StmtProcCall:
		return g.emitProcCall(stmt)

	case ir.StmtDo:
		for i, sub := range stmt.Stmts {
			if err := g.emitStatement(sub); err != nil {
				return err
			}
			if sub.Kind == ir.StmtForever && i+1 < len(stmt.Stmts) {
				diag.Warn(g.cfg, "unreachable-code", stmt.Stmts[i+1].Span,
					"statement is unreachable after an unbounded loop")
				break
			}
		}
		return nil

	case ir.StmtIfElse:
		return g.emitIfElse(stmt)

	case ir.StmtRepeat:
		return g.emitRepeat(stmt)

	case ir.StmtForever:
		loop := g.newLabel()
		if isEmptyBody(stmt.Body) {
			diag.Warn(g.cfg, "empty-body", stmt.Span, "unbounded loop with an empty body")
		}
		g.placeLabel(loop)
		if err := g.emitStatement(stmt.Body); err != nil {
			return err
		}
		g.emit("    jmp " + loop)
		return nil

	case ir.StmtUntil, ir.StmtWhile:
		return g.emitCondLoop(stmt)

	case ir.StmtFor:
		return g.emitFor(stmt)
	}
	return diag.Errorf(diag.ErrUnsupported, stmt.Span, "cannot compile statement")
}

func isEmptyBody(body *ir.Statement) bool {
	return body == nil || (body.Kind == ir.StmtDo && len(body.Stmts) == 0)
}

func (g *AsmProgram) emitIfElse(stmt *ir.Statement) *diag.Error {
	if err := g.emitBoolExpr(stmt.Cond); err != nil {
		return err
	}
	elseLabel := g.newLabel()
	g.emit("    test rax, rax\n    jz " + elseLabel)
	if err := g.emitStatement(stmt.Body); err != nil {
		return err
	}
	if stmt.Else == nil {
		g.placeLabel(elseLabel)
		return nil
	}
	endLabel := g.newLabel()
	g.emit("    jmp " + endLabel)
	g.placeLabel(elseLabel)
	if err := g.emitStatement(stmt.Else); err != nil {
		return err
	}
	g.placeLabel(endLabel)
	return nil
}

// emitRepeat runs the body a fixed number of times. The counter lives in
// a stack slot and counts down to zero.
func (g *AsmProgram) emitRepeat(stmt *ir.Statement) *diag.Error {
	if err := g.emitDoubleExpr(stmt.Times); err != nil {
		return err
	}
	g.aligningCall(helperDoubleToInt)
	g.emit("    push rax")
	g.stackAligned = !g.stackAligned
	loop, end := g.newLabel(), g.newLabel()
	g.placeLabel(loop)
	g.emitf("    mov rax, [rsp]\n    test rax, rax\n    jz %s", end)
	if err := g.emitStatement(stmt.Body); err != nil {
		return err
	}
	g.emitf("    sub qword [rsp], 1\n    jmp %s", loop)
	g.placeLabel(end)
	g.emit("    add rsp, 8")
	g.stackAligned = !g.stackAligned
	return nil
}

// emitCondLoop compiles while and until, which share one skeleton and
// differ only in the polarity of the exit jump.
func (g *AsmProgram) emitCondLoop(stmt *ir.Statement) *diag.Error {
	exit := "jz"
	if stmt.Kind == ir.StmtUntil {
		exit = "jnz"
	}
	loop, end := g.newLabel(), g.newLabel()
	g.placeLabel(loop)
	if err := g.emitBoolExpr(stmt.Cond); err != nil {
		return err
	}
	g.emitf("    test rax, rax\n    %s %s", exit, end)
	if err := g.emitStatement(stmt.Body); err != nil {
		return err
	}
	g.emit("    jmp " + loop)
	g.placeLabel(end)
	return nil
}

// emitFor binds the loop variable to 1..count. The limit and the running
// index live in two stack slots; the variable's old value is dropped
// before each store.
func (g *AsmProgram) emitFor(stmt *ir.Statement) *diag.Error {
	varLabel, ok := g.scope.lookupVar(stmt.Var)
	if !ok {
		return diag.Errorf(diag.ErrUnknownVarOrList, stmt.Span, "unknown variable '%s'", stmt.Var)
	}
	if err := g.emitDoubleExpr(stmt.Times); err != nil {
		return err
	}
	g.aligningCall(helperDoubleToInt)
	g.emit("    push rax\n    push 0")
	loop, end := g.newLabel(), g.newLabel()
	g.placeLabel(loop)
	g.emitf("    mov rax, [rsp]\n    cmp rax, [rsp+8]\n    jae %s", end)
	g.emit("    add rax, 1\n    mov [rsp], rax")
	g.emitf("    mov rdi, [%s]\n    mov rsi, [%s+8]", varLabel, varLabel)
	g.aligningCall(helperDropAny)
	g.emit("    mov rdi, [rsp]")
	g.aligningCall(helperIntToDouble)
	g.emitf("    mov qword [%s], 2\n    movq [%s+8], xmm0", varLabel, varLabel)
	if err := g.emitStatement(stmt.Body); err != nil {
		return err
	}
	g.emit("    jmp " + loop)
	g.placeLabel(end)
	g.emit("    add rsp, 16")
	return nil
}

func (g *AsmProgram) emitProcCall(stmt *ir.Statement) *diag.Error {
	if stmt.ProcName == "print" {
		return g.emitPrint(stmt)
	}

	info, ok := g.scope.lookupProc(stmt.ProcName)
	if !ok {
		return diag.Errorf(diag.ErrUnknownProc, stmt.Span, "unknown procedure '%s'", stmt.ProcName)
	}
	if len(stmt.Args) != len(info.params) {
		return diag.Errorf(diag.ErrWrongArgCount, stmt.Span,
			"'%s' expects %d argument(s), got %d", stmt.ProcName, len(info.params), len(stmt.Args))
	}

	wasAligned := g.stackAligned
	if !wasAligned {
		g.emit("    sub rsp, 8")
	}
	g.stackAligned = true
	for _, arg := range stmt.Args {
		if err := g.emitAnyExpr(arg); err != nil {
			return err
		}
		g.emit("    push rdx\n    push rax")
	}
	g.emit("    call " + info.label)
	// the callee borrows its arguments; ownership stays with the caller
	for range stmt.Args {
		g.emit("    call " + helperDropPop)
	}
	if !wasAligned {
		g.emit("    add rsp, 8")
	}
	g.stackAligned = wasAligned
	return nil
}

// emitPrint writes the message to stdout. Literal messages go straight
// from the static string table; anything else is coerced to a cow string
// and dropped after the write.
func (g *AsmProgram) emitPrint(stmt *ir.Statement) *diag.Error {
	if len(stmt.Args) != 1 {
		return diag.Errorf(diag.ErrWrongArgCount, stmt.Span,
			"'print' expects 1 argument, got %d", len(stmt.Args))
	}
	msg := stmt.Args[0]

	if msg.Kind == ir.ExprLit {
		text := msg.Lit.Text()
		label := g.internString(text)
		g.emitf("    mov rax, 1\n    mov rdi, 1\n    lea rsi, [%s]\n    mov rdx, %d\n    syscall",
			label, len(text))
		return nil
	}

	if err := g.emitCowExpr(msg); err != nil {
		return err
	}
	wasAligned := g.stackAligned
	if !wasAligned {
		g.emit("    sub rsp, 8")
	}
	g.stackAligned = true
	g.emit(`    push rdx
    push rax
    mov rsi, [rsp]
    mov rdx, [rsp+8]
    mov rax, 1
    mov rdi, 1
    syscall
    call drop_pop_cow`)
	if !wasAligned {
		g.emit("    add rsp, 8")
	}
	g.stackAligned = wasAligned
	return nil
}
