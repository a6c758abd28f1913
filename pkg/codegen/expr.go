package codegen

import (
	"math"

	"github.com/splash-lang/sbc/pkg/diag"
	"github.com/splash-lang/sbc/pkg/ir"
	"github.com/splash-lang/sbc/pkg/token"
	"github.com/splash-lang/sbc/pkg/value"
)

// emitExpr compiles one expression and reports the representation its
// result now occupies. Doubles land in xmm0, everything else in rax or
// the rax/rdx pair. The stack-alignment parity after the emitted code is
// always the parity before it.
func (g *AsmProgram) emitExpr(expr *ir.Expr) (Typ, *diag.Error) {
	switch expr.Kind {
	case ir.ExprLit:
		return g.emitLit(expr.Lit), nil
	case ir.ExprSym:
		return g.emitSymbol(expr)
	case ir.ExprFuncCall:
		return g.emitFuncCall(expr)
	case ir.ExprAddSub:
		return g.emitAddSub(expr.Positives, expr.Negatives)
	case ir.ExprMulDiv:
		return g.emitMulDiv(expr.Positives, expr.Negatives)
	}
	return 0, diag.Errorf(diag.ErrUnsupported, expr.Span, "cannot compile expression")
}

func (g *AsmProgram) emitLit(lit value.Value) Typ {
	switch lit.Kind {
	case value.Num:
		g.emitf("    mov rax, %d\n    movq xmm0, rax", math.Float64bits(lit.Num))
		return Double
	case value.Str:
		label := g.internString(lit.Str)
		g.emitf("    lea rax, [%s]\n    mov rdx, %d", label, len(lit.Str))
		return StaticStr
	}
	if lit.Bool {
		g.emit("    mov eax, 1")
	} else {
		g.emit("    xor eax, eax")
	}
	return Bool
}

// emitSymbol reads a parameter or variable. Reads always clone: the
// stored value must survive the read.
func (g *AsmProgram) emitSymbol(expr *ir.Expr) (Typ, *diag.Error) {
	if g.proc != nil {
		for i, param := range g.proc.Params {
			if param != expr.Sym {
				continue
			}
			offset := (len(g.proc.Params) - i) * 16
			g.emitf("    mov rdi, [rbp+%d]\n    mov rsi, [rbp+%d]", offset, offset+8)
			g.aligningCall(helperCloneAny)
			return Any, nil
		}
	}
	if label, ok := g.scope.lookupVar(expr.Sym); ok {
		g.emitf("    mov rdi, [%s]\n    mov rsi, [%s+8]", label, label)
		g.aligningCall(helperCloneAny)
		return Any, nil
	}
	return 0, diag.Errorf(diag.ErrUnknownVarOrList, expr.Span, "unknown variable or list '%s'", expr.Sym)
}

// emitAddSub folds an n-ary sum. The accumulator lives in a stack slot so
// arbitrarily long chains need no extra registers. With no positive terms
// the accumulated sum is negated by flipping its sign bit.
func (g *AsmProgram) emitAddSub(positives, negatives []*ir.Expr) (Typ, *diag.Error) {
	if len(positives) == 0 && len(negatives) == 0 {
		g.emit("    xorpd xmm0, xmm0")
		return Double, nil
	}

	var initial *ir.Expr
	allNegative := len(positives) == 0
	if allNegative {
		initial, negatives = negatives[0], negatives[1:]
	} else {
		initial, positives = positives[0], positives[1:]
	}
	if err := g.emitDoubleExpr(initial); err != nil {
		return 0, err
	}
	g.emit("    sub rsp, 8\n    movsd [rsp], xmm0")
	g.stackAligned = !g.stackAligned

	if allNegative {
		for _, term := range negatives {
			if err := g.emitDoubleExpr(term); err != nil {
				return 0, err
			}
			g.emit("    addsd xmm0, [rsp]\n    movsd [rsp], xmm0")
		}
		g.emit("    mov rax, (1 << 63)\n    xor [rsp], rax\n    movsd xmm0, [rsp]\n    add rsp, 8")
		g.stackAligned = !g.stackAligned
		return Double, nil
	}

	for _, term := range positives {
		if err := g.emitDoubleExpr(term); err != nil {
			return 0, err
		}
		g.emit("    addsd xmm0, [rsp]\n    movsd [rsp], xmm0")
	}
	for _, term := range negatives {
		if err := g.emitDoubleExpr(term); err != nil {
			return 0, err
		}
		g.emit("    movsd xmm1, [rsp]\n    subsd xmm1, xmm0\n    movsd [rsp], xmm1")
	}
	g.emit("    movsd xmm0, [rsp]\n    add rsp, 8")
	g.stackAligned = !g.stackAligned
	return Double, nil
}

// emitMulDiv mirrors emitAddSub for products. With no numerators the
// result is the reciprocal of the accumulated product.
func (g *AsmProgram) emitMulDiv(numerators, denominators []*ir.Expr) (Typ, *diag.Error) {
	if len(numerators) == 0 && len(denominators) == 0 {
		return g.emitLit(value.NewNum(1)), nil
	}

	var initial *ir.Expr
	allDivisor := len(numerators) == 0
	if allDivisor {
		initial, denominators = denominators[0], denominators[1:]
	} else {
		initial, numerators = numerators[0], numerators[1:]
	}
	if err := g.emitDoubleExpr(initial); err != nil {
		return 0, err
	}
	g.emit("    sub rsp, 8\n    movsd [rsp], xmm0")
	g.stackAligned = !g.stackAligned

	if allDivisor {
		for _, term := range denominators {
			if err := g.emitDoubleExpr(term); err != nil {
				return 0, err
			}
			g.emit("    mulsd xmm0, [rsp]\n    movsd [rsp], xmm0")
		}
		g.emit("    mov rax, __?float64?__(1.0)\n    movq xmm0, rax\n    divsd xmm0, [rsp]\n    add rsp, 8")
		g.stackAligned = !g.stackAligned
		return Double, nil
	}

	for _, term := range numerators {
		if err := g.emitDoubleExpr(term); err != nil {
			return 0, err
		}
		g.emit("    mulsd xmm0, [rsp]\n    movsd [rsp], xmm0")
	}
	for _, term := range denominators {
		if err := g.emitDoubleExpr(term); err != nil {
			return 0, err
		}
		g.emit("    movsd xmm1, [rsp]\n    divsd xmm1, xmm0\n    movsd [rsp], xmm1")
	}
	g.emit("    movsd xmm0, [rsp]\n    add rsp, 8")
	g.stackAligned = !g.stackAligned
	return Double, nil
}

func (g *AsmProgram) emitFuncCall(expr *ir.Expr) (Typ, *diag.Error) {
	args := expr.Args
	wrongArgCount := func(expected int) (Typ, *diag.Error) {
		return 0, diag.Errorf(diag.ErrWrongArgCount, expr.Span,
			"'%s' expects %d argument(s), got %d", expr.Op, expected, len(args))
	}

	mathop := func(code string) (Typ, *diag.Error) {
		if len(args) != 1 {
			return wrongArgCount(1)
		}
		if err := g.emitDoubleExpr(args[0]); err != nil {
			return 0, err
		}
		g.emit(code)
		return Double, nil
	}

	libcMathop := func(symbol string) (Typ, *diag.Error) {
		if len(args) != 1 {
			return wrongArgCount(1)
		}
		if err := g.emitDoubleExpr(args[0]); err != nil {
			return 0, err
		}
		g.callLibc(symbol)
		return Double, nil
	}

	switch expr.Op {
	case ir.OpListGet:
		if len(args) != 2 || args[0].Kind != ir.ExprSym {
			return wrongArgCount(2)
		}
		label, ok := g.scope.lookupList(args[0].Sym)
		if !ok {
			return 0, diag.Errorf(diag.ErrUnknownVarOrList, args[0].Span, "unknown list '%s'", args[0].Sym)
		}
		if err := g.emitAnyExpr(args[1]); err != nil {
			return 0, err
		}
		g.emitf("    mov rdi, rax\n    mov rsi, rdx\n    lea rdx, [%s]", label)
		g.aligningCall(helperListGet)
		return Any, nil

	case ir.OpConcat:
		return g.emitConcat(args)

	case ir.OpAnd, ir.OpOr:
		identity := value.NewBool(expr.Op == ir.OpAnd)
		switch len(args) {
		case 0:
			return g.emitLit(identity), nil
		case 1:
			return g.emitExpr(args[0])
		}
		shortCircuit := g.newLabel()
		jump := "jz"
		if expr.Op == ir.OpOr {
			jump = "jnz"
		}
		for _, arg := range args[:len(args)-1] {
			if err := g.emitBoolExpr(arg); err != nil {
				return 0, err
			}
			g.emitf("    test rax, rax\n    %s %s", jump, shortCircuit)
		}
		if err := g.emitBoolExpr(args[len(args)-1]); err != nil {
			return 0, err
		}
		g.placeLabel(shortCircuit)
		return Bool, nil

	case ir.OpNot:
		if len(args) != 1 {
			return wrongArgCount(1)
		}
		if err := g.emitBoolExpr(args[0]); err != nil {
			return 0, err
		}
		g.emit("    xor rax, 1")
		return Bool, nil

	case ir.OpLess, ir.OpEqual, ir.OpGreater:
		if len(args) != 2 {
			return wrongArgCount(2)
		}
		return g.emitComparison(expr.Op, args[0], args[1], expr.Span)

	case ir.OpLength:
		if len(args) != 1 || args[0].Kind != ir.ExprSym {
			return wrongArgCount(1)
		}
		label, ok := g.scope.lookupList(args[0].Sym)
		if !ok {
			return 0, diag.Errorf(diag.ErrUnknownVarOrList, args[0].Span, "unknown list '%s'", args[0].Sym)
		}
		g.emitf("    mov rdi, [%s+8]", label)
		g.aligningCall(helperIntToDouble)
		return Double, nil

	case ir.OpStrLength:
		if len(args) != 1 {
			return wrongArgCount(1)
		}
		return g.emitStrLength(args[0])

	case ir.OpCharAt:
		if len(args) != 2 {
			return wrongArgCount(2)
		}
		return g.emitCharAt(args[0], args[1])

	case ir.OpMod:
		if len(args) != 2 {
			return wrongArgCount(2)
		}
		return g.emitMod(args[0], args[1])

	case ir.OpAbs:
		return mathop("    mov rax, (1 << 63) - 1\n    movq xmm1, rax\n    andpd xmm0, xmm1")
	case ir.OpFloor:
		return mathop("    roundsd xmm0, xmm0, 1")
	case ir.OpCeil:
		return mathop("    roundsd xmm0, xmm0, 2")
	case ir.OpSqrt:
		return mathop("    sqrtsd xmm0, xmm0")

	case ir.OpLn:
		return libcMathop("log")
	case ir.OpLog:
		return libcMathop("log10")
	case ir.OpExpE:
		return libcMathop("exp")
	case ir.OpExp10:
		return libcMathop("exp10")
	case ir.OpSin:
		return libcMathop("sin")
	case ir.OpCos:
		return libcMathop("cos")
	case ir.OpTan:
		return libcMathop("tan")
	case ir.OpAsin:
		return libcMathop("asin")
	case ir.OpAcos:
		return libcMathop("acos")
	case ir.OpAtan:
		return libcMathop("atan")

	case ir.OpToNum:
		if len(args) != 1 {
			return wrongArgCount(1)
		}
		if err := g.emitDoubleExpr(args[0]); err != nil {
			return 0, err
		}
		return Double, nil
	}
	return 0, diag.Errorf(diag.ErrUnknownFunction, expr.Span, "unknown function '%s'", expr.Op)
}

// emitConcat folds string concatenation right to left. Each step mallocs
// a buffer sized to the running total, copies both halves in and drops
// both inputs, so exactly one owned buffer remains at the end.
func (g *AsmProgram) emitConcat(args []*ir.Expr) (Typ, *diag.Error) {
	switch len(args) {
	case 0:
		g.emit("    lea rax, [str_empty]\n    xor edx, edx")
		return StaticStr, nil
	case 1:
		return g.emitExpr(args[0])
	}

	if err := g.emitCowExpr(args[len(args)-1]); err != nil {
		return 0, err
	}
	wasAligned := g.stackAligned
	if !wasAligned {
		g.emit("    sub rsp, 8")
	}
	g.stackAligned = true
	for i := len(args) - 2; i >= 0; i-- {
		// pair on top, hole for the result pointer, running length above
		g.emit("    push rdx\n    sub rsp, 8\n    push rdx\n    push rax")
		if err := g.emitCowExpr(args[i]); err != nil {
			return 0, err
		}
		g.emitf(`    add [rsp+24], rdx
    push rdx
    push rax
    mov rdi, [rsp+40]
    call %[1]s wrt ..plt
    mov [rsp+32], rax
    mov rdi, rax
    mov rsi, [rsp]
    mov rdx, [rsp+8]
    call %[2]s wrt ..plt
    mov rdi, rax
    add rdi, [rsp+8]
    mov rsi, [rsp+16]
    mov rdx, [rsp+24]
    call %[2]s wrt ..plt
    call %[3]s
    call %[3]s
    pop rax
    pop rdx`, libcMalloc, libcMemcpy, helperDropPopCow)
	}
	if !wasAligned {
		g.emit("    add rsp, 8")
	}
	g.stackAligned = wasAligned
	return OwnedString, nil
}

// emitStrLength measures a cow string, stashes the converted length while
// the string is dropped, and leaves the result in xmm0. The pad comes
// before the choreography so [rsp]-relative slots stay where the helpers
// expect them.
func (g *AsmProgram) emitStrLength(s *ir.Expr) (Typ, *diag.Error) {
	if err := g.emitCowExpr(s); err != nil {
		return 0, err
	}
	wasAligned := g.stackAligned
	if wasAligned {
		g.emit("    sub rsp, 16")
	} else {
		g.emit("    sub rsp, 24")
	}
	g.stackAligned = true
	g.emit(`    push rdx
    push rax
    call str_length
    mov rdi, rax
    call usize_to_double
    movsd [rsp+16], xmm0
    call drop_pop_cow
    movsd xmm0, [rsp]`)
	if wasAligned {
		g.emit("    add rsp, 16")
	} else {
		g.emit("    add rsp, 24")
	}
	g.stackAligned = wasAligned
	return Double, nil
}

// emitCharAt extracts one character as a fresh owned string. The source
// pair sits below a two-slot scratch area that receives the result before
// the source is dropped.
func (g *AsmProgram) emitCharAt(s, index *ir.Expr) (Typ, *diag.Error) {
	if err := g.emitCowExpr(s); err != nil {
		return 0, err
	}
	wasAligned := g.stackAligned
	if !wasAligned {
		g.emit("    sub rsp, 8")
	}
	g.stackAligned = true
	g.emit("    sub rsp, 16\n    push rdx\n    push rax")
	if err := g.emitDoubleExpr(index); err != nil {
		return 0, err
	}
	g.emit(`    call double_to_usize
    mov rdx, rax
    mov rdi, [rsp]
    mov rsi, [rsp+8]
    call char_at
    mov [rsp+16], rax
    mov [rsp+24], rdx
    call drop_pop_cow
    pop rax
    pop rdx`)
	if !wasAligned {
		g.emit("    add rsp, 8")
	}
	g.stackAligned = wasAligned
	return OwnedString, nil
}

func (g *AsmProgram) emitMod(lhs, rhs *ir.Expr) (Typ, *diag.Error) {
	if err := g.emitDoubleExpr(rhs); err != nil {
		return 0, err
	}
	wasAligned := g.stackAligned
	if wasAligned {
		g.emit("    sub rsp, 16")
	} else {
		g.emit("    sub rsp, 24")
	}
	g.stackAligned = true
	g.emit("    movsd [rsp], xmm0")
	if err := g.emitDoubleExpr(lhs); err != nil {
		return 0, err
	}
	g.emit("    movsd xmm1, [rsp]")
	g.callLibc(libcFmod)
	if wasAligned {
		g.emit("    add rsp, 16")
	} else {
		g.emit("    add rsp, 24")
	}
	g.stackAligned = wasAligned
	return Double, nil
}

// emitComparison compiles < and =. A > request swaps its operands and
// compiles as <, so only two orderings exist downstream. Kind
// combinations beyond Double-vs-Double and Double=Bool are reserved.
func (g *AsmProgram) emitComparison(op ir.FuncOp, lhs, rhs *ir.Expr, span token.Span) (Typ, *diag.Error) {
	if op == ir.OpGreater {
		op = ir.OpLess
		lhs, rhs = rhs, lhs
	}

	lhsTyp, err := g.emitExpr(lhs)
	if err != nil {
		return 0, err
	}
	if lhsTyp != Double {
		return 0, diag.Errorf(diag.ErrUnsupported, span,
			"cannot compare %s values", lhsTyp)
	}
	g.emit("    sub rsp, 8\n    movsd [rsp], xmm0")
	g.stackAligned = !g.stackAligned
	rhsTyp, err := g.emitExpr(rhs)
	if err != nil {
		return 0, err
	}
	switch rhsTyp {
	case Double:
		condition := "e"
		if op == ir.OpLess {
			condition = "b"
		}
		g.emitf("    movsd xmm1, [rsp]\n    xor eax, eax\n    ucomisd xmm1, xmm0\n    set%s al", condition)
	case Bool:
		if op != ir.OpEqual {
			return 0, diag.Errorf(diag.ErrUnsupported, span,
				"cannot order a number against a boolean")
		}
		// a double never equals a boolean
		g.emit("    xor eax, eax")
	default:
		return 0, diag.Errorf(diag.ErrUnsupported, span,
			"cannot compare a number against a %s value", rhsTyp)
	}
	g.emit("    add rsp, 8")
	g.stackAligned = !g.stackAligned
	return Bool, nil
}

// emitBoolExpr compiles expr and coerces the result to Bool in rax.
func (g *AsmProgram) emitBoolExpr(expr *ir.Expr) *diag.Error {
	typ, err := g.emitExpr(expr)
	if err != nil {
		return err
	}
	switch typ {
	case Double:
		g.aligningCall(helperDoubleToBool)
	case Bool:
	case StaticStr:
		g.aligningCall(helperStaticToBool)
	case OwnedString:
		g.aligningCall(helperOwnedToBool)
	case Any:
		g.aligningCall(helperAnyToBool)
	}
	return nil
}

// emitDoubleExpr compiles expr and coerces the result to Double in xmm0.
func (g *AsmProgram) emitDoubleExpr(expr *ir.Expr) *diag.Error {
	typ, err := g.emitExpr(expr)
	if err != nil {
		return err
	}
	switch typ {
	case Double:
	case Bool:
		g.aligningCall(helperBoolToDouble)
	case StaticStr:
		g.aligningCall(helperStaticToNum)
	case OwnedString:
		g.aligningCall(helperOwnedToNum)
	case Any:
		g.emit("    mov rdi, rax\n    mov rsi, rdx")
		g.aligningCall(helperAnyToDouble)
	}
	return nil
}

// emitCowExpr compiles expr and coerces the result to a borrowed-or-owned
// string pair in rax/rdx. Strings of either ownership pass through.
func (g *AsmProgram) emitCowExpr(expr *ir.Expr) *diag.Error {
	typ, err := g.emitExpr(expr)
	if err != nil {
		return err
	}
	switch typ {
	case Double:
		g.aligningCall(helperDoubleToCow)
	case Bool:
		g.aligningCall(helperBoolToStr)
	case StaticStr, OwnedString:
	case Any:
		g.emit("    mov rdi, rax\n    mov rsi, rdx")
		g.aligningCall(helperAnyToCow)
	}
	return nil
}

// emitAnyExpr compiles expr into the tagged rax/rdx pair. Only Double
// needs packing; the other kinds already occupy a valid pair.
func (g *AsmProgram) emitAnyExpr(expr *ir.Expr) *diag.Error {
	typ, err := g.emitExpr(expr)
	if err != nil {
		return err
	}
	if typ == Double {
		g.emit("    movq rdx, xmm0\n    mov rax, 2")
	}
	return nil
}
