package ir

import (
	"github.com/splash-lang/sbc/pkg/value"
)

// Optimize folds constant numeric and boolean subexpressions in place.
// Folding follows the same left-to-right accumulation the backend emits,
// so a folded expression is observationally identical to the compiled one.
func (p *Program) Optimize() {
	for _, sprite := range p.AllSprites() {
		for _, proc := range sprite.Procedures {
			optimizeStmt(proc.Body)
		}
	}
}

func optimizeStmt(stmt *Statement) {
	if stmt == nil {
		return
	}
	for i, arg := range stmt.Args {
		stmt.Args[i] = foldExpr(arg)
	}
	if stmt.Cond != nil {
		stmt.Cond = foldExpr(stmt.Cond)
	}
	if stmt.Times != nil {
		stmt.Times = foldExpr(stmt.Times)
	}
	for _, sub := range stmt.Stmts {
		optimizeStmt(sub)
	}
	optimizeStmt(stmt.Body)
	optimizeStmt(stmt.Else)
}

func foldExpr(e *Expr) *Expr {
	if e == nil {
		return nil
	}
	for i, arg := range e.Args {
		e.Args[i] = foldExpr(arg)
	}
	for i, arg := range e.Positives {
		e.Positives[i] = foldExpr(arg)
	}
	for i, arg := range e.Negatives {
		e.Negatives[i] = foldExpr(arg)
	}

	switch e.Kind {
	case ExprAddSub:
		if nums, ok := litNums(e.Positives, e.Negatives); ok {
			acc := 0.0
			for _, n := range nums[:len(e.Positives)] {
				acc += n
			}
			for _, n := range nums[len(e.Positives):] {
				acc -= n
			}
			return &Expr{Kind: ExprLit, Span: e.Span, Lit: value.NewNum(acc)}
		}
	case ExprMulDiv:
		if nums, ok := litNums(e.Positives, e.Negatives); ok {
			acc := 1.0
			for _, n := range nums[:len(e.Positives)] {
				acc *= n
			}
			for _, n := range nums[len(e.Positives):] {
				acc /= n
			}
			return &Expr{Kind: ExprLit, Span: e.Span, Lit: value.NewNum(acc)}
		}
	case ExprFuncCall:
		if e.Op == OpNot && len(e.Args) == 1 && isLit(e.Args[0], value.Bool) {
			return &Expr{Kind: ExprLit, Span: e.Span, Lit: value.NewBool(!e.Args[0].Lit.Bool)}
		}
	}
	return e
}

func isLit(e *Expr, kind value.Kind) bool {
	return e.Kind == ExprLit && e.Lit.Kind == kind
}

// litNums collects all operands as numbers if every operand is a numeric
// literal; one non-literal operand disables folding for the whole node.
func litNums(groups ...[]*Expr) ([]float64, bool) {
	var nums []float64
	for _, group := range groups {
		for _, e := range group {
			if !isLit(e, value.Num) {
				return nil, false
			}
			nums = append(nums, e.Lit.Num)
		}
	}
	return nums, true
}
