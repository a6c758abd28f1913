package codegen

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/splash-lang/sbc/pkg/config"
	"github.com/splash-lang/sbc/pkg/diag"
	"github.com/splash-lang/sbc/pkg/ir"
	"github.com/splash-lang/sbc/pkg/value"
)

func num(n float64) *ir.Expr {
	return &ir.Expr{Kind: ir.ExprLit, Lit: value.NewNum(n)}
}

func str(s string) *ir.Expr {
	return &ir.Expr{Kind: ir.ExprLit, Lit: value.NewStr(s)}
}

func boolean(b bool) *ir.Expr {
	return &ir.Expr{Kind: ir.ExprLit, Lit: value.NewBool(b)}
}

func call(op ir.FuncOp, args ...*ir.Expr) *ir.Expr {
	return &ir.Expr{Kind: ir.ExprFuncCall, Op: op, Args: args}
}

func newTestProgram() *AsmProgram {
	g := newAsmProgram(config.NewConfig())
	g.scope = newScope(nil)
	g.stackAligned = true
	return g
}

func TestPreludeDeclaresEveryRuntimeHelper(t *testing.T) {
	for _, helper := range RuntimeHelpers() {
		if !strings.Contains(prelude, "extern "+helper+"\n") {
			t.Errorf("prelude does not declare %q", helper)
		}
	}
	for symbol := range libmFuncs {
		if !strings.Contains(prelude, "extern "+symbol+"\n") {
			t.Errorf("prelude does not declare libm symbol %q", symbol)
		}
	}
}

func TestComparisonCanonicalization(t *testing.T) {
	gt := newTestProgram()
	if _, err := gt.emitExpr(call(ir.OpGreater, num(1), num(2))); err != nil {
		t.Fatal(err)
	}
	lt := newTestProgram()
	if _, err := lt.emitExpr(call(ir.OpLess, num(2), num(1))); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(lt.text.String(), gt.text.String()); diff != "" {
		t.Errorf("(> 1 2) and (< 2 1) compile differently (-lt +gt):\n%s", diff)
	}
}

func TestArithmeticIdentities(t *testing.T) {
	t.Run("empty sum", func(t *testing.T) {
		g := newTestProgram()
		typ, err := g.emitExpr(&ir.Expr{Kind: ir.ExprAddSub})
		if err != nil {
			t.Fatal(err)
		}
		if typ != Double {
			t.Errorf("got %v, want Double", typ)
		}
		if !strings.Contains(g.text.String(), "xorpd xmm0, xmm0") {
			t.Errorf("empty sum should zero xmm0:\n%s", g.text.String())
		}
	})

	t.Run("empty product", func(t *testing.T) {
		g := newTestProgram()
		typ, err := g.emitExpr(&ir.Expr{Kind: ir.ExprMulDiv})
		if err != nil {
			t.Fatal(err)
		}
		if typ != Double {
			t.Errorf("got %v, want Double", typ)
		}
		// 1.0 as IEEE-754 bits
		if !strings.Contains(g.text.String(), "mov rax, 4607182418800017408") {
			t.Errorf("empty product should load 1.0:\n%s", g.text.String())
		}
	})

	t.Run("all-subtractive sum flips the sign bit", func(t *testing.T) {
		g := newTestProgram()
		expr := &ir.Expr{Kind: ir.ExprAddSub, Negatives: []*ir.Expr{num(5)}}
		if _, err := g.emitExpr(expr); err != nil {
			t.Fatal(err)
		}
		got := g.text.String()
		if !strings.Contains(got, "mov rax, (1 << 63)") || !strings.Contains(got, "xor [rsp], rax") {
			t.Errorf("(- 5) should negate via the sign bit:\n%s", got)
		}
		if strings.Contains(got, "subsd") {
			t.Errorf("(- 5) should not subtract:\n%s", got)
		}
	})

	t.Run("all-divisor product takes the reciprocal", func(t *testing.T) {
		g := newTestProgram()
		expr := &ir.Expr{Kind: ir.ExprMulDiv, Negatives: []*ir.Expr{num(4)}}
		if _, err := g.emitExpr(expr); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(g.text.String(), "mov rax, __?float64?__(1.0)") {
			t.Errorf("(/ 4) should divide 1.0 by the product:\n%s", g.text.String())
		}
	})
}

// Every expression must leave the alignment parity exactly where it
// found it, from either starting parity.
func TestAlignmentParityRestored(t *testing.T) {
	exprs := map[string]*ir.Expr{
		"sum":        {Kind: ir.ExprAddSub, Positives: []*ir.Expr{num(1), num(2), num(3)}},
		"difference": {Kind: ir.ExprAddSub, Positives: []*ir.Expr{num(1)}, Negatives: []*ir.Expr{num(2)}},
		"product":    {Kind: ir.ExprMulDiv, Positives: []*ir.Expr{num(2), num(3)}},
		"comparison": call(ir.OpLess, num(1), num(2)),
		"concat":     call(ir.OpConcat, str("a"), str("b"), str("c")),
		"str-length": call(ir.OpStrLength, str("abc")),
		"char-at":    call(ir.OpCharAt, str("abc"), num(2)),
		"mod":        call(ir.OpMod, num(7), num(3)),
		"and":        call(ir.OpAnd, boolean(true), boolean(false)),
		"nested": call(ir.OpMod,
			&ir.Expr{Kind: ir.ExprAddSub, Positives: []*ir.Expr{num(1), call(ir.OpStrLength, str("xy"))}},
			call(ir.OpSqrt, num(9))),
	}
	for name, expr := range exprs {
		for _, initial := range []bool{true, false} {
			g := newTestProgram()
			g.stackAligned = initial
			if _, err := g.emitExpr(expr); err != nil {
				t.Fatalf("%s: %v", name, err)
			}
			if g.stackAligned != initial {
				t.Errorf("%s: alignment parity not restored (started %v)", name, initial)
			}
		}
	}
}

// Every source representation must convert into every requested one
// through a fixed helper sequence, and the conversion itself never
// disturbs the alignment parity. An empty want list means the value
// already has the requested shape and passes through untouched.
func TestCoercionMatrix(t *testing.T) {
	sources := []struct {
		name string
		typ  Typ
		expr func(g *AsmProgram) *ir.Expr
	}{
		{"double", Double, func(*AsmProgram) *ir.Expr { return num(3) }},
		{"bool", Bool, func(*AsmProgram) *ir.Expr { return boolean(true) }},
		{"static-str", StaticStr, func(*AsmProgram) *ir.Expr { return str("s") }},
		{"owned-string", OwnedString, func(*AsmProgram) *ir.Expr {
			return call(ir.OpConcat, str("a"), str("b"))
		}},
		{"any", Any, func(g *AsmProgram) *ir.Expr {
			g.scope.vars["v"] = g.newSlot("var")
			return &ir.Expr{Kind: ir.ExprSym, Sym: "v"}
		}},
	}
	coercers := []struct {
		name string
		fn   func(*AsmProgram, *ir.Expr) *diag.Error
		want map[Typ][]string
	}{
		{"bool", (*AsmProgram).emitBoolExpr, map[Typ][]string{
			Double:      {"call double_to_bool"},
			StaticStr:   {"call static_str_to_bool"},
			OwnedString: {"call owned_string_to_bool"},
			Any:         {"call any_to_bool"},
		}},
		{"double", (*AsmProgram).emitDoubleExpr, map[Typ][]string{
			Bool:        {"call bool_to_double"},
			StaticStr:   {"call static_str_to_double"},
			OwnedString: {"call owned_string_to_double"},
			Any:         {"    mov rdi, rax\n    mov rsi, rdx\n", "call any_to_double"},
		}},
		{"cow", (*AsmProgram).emitCowExpr, map[Typ][]string{
			Double: {"call double_to_cow"},
			Bool:   {"call bool_to_static_str"},
			Any:    {"    mov rdi, rax\n    mov rsi, rdx\n", "call any_to_cow"},
		}},
		{"any", (*AsmProgram).emitAnyExpr, map[Typ][]string{
			Double: {"    movq rdx, xmm0\n    mov rax, 2\n"},
		}},
	}
	for _, co := range coercers {
		for _, src := range sources {
			t.Run("to-"+co.name+"/from-"+src.name, func(t *testing.T) {
				for _, initial := range []bool{true, false} {
					g := newTestProgram()
					g.stackAligned = initial
					if err := co.fn(g, src.expr(g)); err != nil {
						t.Fatal(err)
					}
					if g.stackAligned != initial {
						t.Errorf("alignment parity not restored (started %v)", initial)
					}

					base := newTestProgram()
					base.stackAligned = initial
					if _, err := base.emitExpr(src.expr(base)); err != nil {
						t.Fatal(err)
					}
					got, tail := g.text.String(), co.want[src.typ]
					if len(tail) == 0 {
						if diff := cmp.Diff(base.text.String(), got); diff != "" {
							t.Errorf("expected a pass-through (-bare +coerced):\n%s", diff)
						}
						continue
					}
					rest := strings.TrimPrefix(got, base.text.String())
					if rest == got {
						t.Fatalf("coerced output does not start with the bare expression:\n%s", got)
					}
					for _, step := range tail {
						i := strings.Index(rest, step)
						if i < 0 {
							t.Fatalf("conversion tail is missing %q:\n%s", step, got)
						}
						rest = rest[i+len(step):]
					}
				}
			})
		}
	}
}

// Concatenating n strings performs n-1 allocation steps, each dropping
// its two inputs, so exactly 2(n-1) cow drops and no plain drops.
func TestConcatOwnershipBalance(t *testing.T) {
	g := newTestProgram()
	typ, err := g.emitExpr(call(ir.OpConcat, str("a"), str("b"), str("c")))
	if err != nil {
		t.Fatal(err)
	}
	if typ != OwnedString {
		t.Errorf("got %v, want OwnedString", typ)
	}
	got := g.text.String()
	if n := strings.Count(got, "call drop_pop_cow"); n != 4 {
		t.Errorf("got %d cow drops, want 4:\n%s", n, got)
	}
	if n := strings.Count(got, "call malloc wrt ..plt"); n != 2 {
		t.Errorf("got %d allocations, want 2:\n%s", n, got)
	}
}

func TestConcatIdentities(t *testing.T) {
	g := newTestProgram()
	typ, err := g.emitExpr(call(ir.OpConcat))
	if err != nil {
		t.Fatal(err)
	}
	if typ != StaticStr {
		t.Errorf("empty concat: got %v, want StaticStr", typ)
	}
	if !strings.Contains(g.text.String(), "lea rax, [str_empty]") {
		t.Errorf("empty concat should borrow str_empty:\n%s", g.text.String())
	}

	g = newTestProgram()
	typ, err = g.emitExpr(call(ir.OpConcat, str("solo")))
	if err != nil {
		t.Fatal(err)
	}
	if typ != StaticStr {
		t.Errorf("single concat passes through: got %v, want StaticStr", typ)
	}
	if strings.Contains(g.text.String(), "malloc") {
		t.Errorf("single concat should not allocate:\n%s", g.text.String())
	}
}

func TestShortCircuitIdentities(t *testing.T) {
	for _, tc := range []struct {
		op   ir.FuncOp
		want string
	}{
		{ir.OpAnd, "    mov eax, 1\n"},
		{ir.OpOr, "    xor eax, eax\n"},
	} {
		g := newTestProgram()
		typ, err := g.emitExpr(call(tc.op))
		if err != nil {
			t.Fatal(err)
		}
		if typ != Bool {
			t.Errorf("%v: got %v, want Bool", tc.op, typ)
		}
		if diff := cmp.Diff(tc.want, g.text.String()); diff != "" {
			t.Errorf("%v identity (-want +got):\n%s", tc.op, diff)
		}
	}
}

func TestStringInterning(t *testing.T) {
	g := newTestProgram()
	a := g.internString("hello")
	b := g.internString("hello")
	c := g.internString("world")
	if a != b {
		t.Errorf("same content got different labels: %q vs %q", a, b)
	}
	if a == c {
		t.Errorf("different content shares a label: %q", a)
	}
	if len(g.strOrder) != 2 {
		t.Errorf("got %d interned strings, want 2", len(g.strOrder))
	}
}

func TestReservedComparisonsFail(t *testing.T) {
	for name, expr := range map[string]*ir.Expr{
		"string lhs":       call(ir.OpLess, str("a"), num(1)),
		"bool lhs":         call(ir.OpEqual, boolean(true), num(1)),
		"string rhs":       call(ir.OpLess, num(1), str("a")),
		"ordered bool rhs": call(ir.OpLess, num(1), boolean(true)),
	} {
		g := newTestProgram()
		if _, err := g.emitExpr(expr); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestDoubleEqualsBoolIsFalse(t *testing.T) {
	g := newTestProgram()
	typ, err := g.emitExpr(call(ir.OpEqual, num(1), boolean(true)))
	if err != nil {
		t.Fatal(err)
	}
	if typ != Bool {
		t.Errorf("got %v, want Bool", typ)
	}
	if !strings.HasSuffix(strings.TrimRight(g.text.String(), "\n"), "add rsp, 8") {
		t.Errorf("comparison should unwind its stack slot:\n%s", g.text.String())
	}
	if strings.Contains(g.text.String(), "ucomisd") {
		t.Errorf("double = bool should not compare numerically:\n%s", g.text.String())
	}
}

func TestEntryArityIsChecked(t *testing.T) {
	prog := &ir.Program{Stage: &ir.Sprite{
		Name: "Stage",
		Procedures: []*ir.Procedure{{
			Name:   EntryProcName,
			Params: []string{"x"},
			Body:   &ir.Statement{Kind: ir.StmtDo},
		}},
	}}
	if _, err := NewX64Backend().Generate(prog, config.NewConfig()); err == nil {
		t.Fatal("expected an error for an entry procedure with parameters")
	}
}

func TestWrongArgCounts(t *testing.T) {
	for name, expr := range map[string]*ir.Expr{
		"not":        call(ir.OpNot),
		"sqrt":       call(ir.OpSqrt, num(1), num(2)),
		"mod":        call(ir.OpMod, num(1)),
		"char-at":    call(ir.OpCharAt, str("a")),
		"str-length": call(ir.OpStrLength),
		"to-num":     call(ir.OpToNum),
	} {
		g := newTestProgram()
		if _, err := g.emitExpr(expr); err == nil {
			t.Errorf("%s: expected a wrong-argument-count error", name)
		}
	}
}
