package ir

import (
	"fmt"
	"strings"
)

// Dump renders the program as indented S-expressions for -dump-ir.
func (p *Program) Dump() string {
	var sb strings.Builder
	for _, sprite := range p.AllSprites() {
		kind := "sprite"
		if sprite == p.Stage {
			kind = "stage"
		}
		fmt.Fprintf(&sb, "(%s %q\n", kind, sprite.Name)
		if len(sprite.Variables) > 0 {
			fmt.Fprintf(&sb, "  (variables %s)\n", strings.Join(sprite.Variables, " "))
		}
		if len(sprite.Lists) > 0 {
			fmt.Fprintf(&sb, "  (lists %s)\n", strings.Join(sprite.Lists, " "))
		}
		for _, proc := range sprite.Procedures {
			fmt.Fprintf(&sb, "  (proc (%s%s)\n", proc.Name, dumpParams(proc.Params))
			dumpStmt(&sb, proc.Body, 2)
			sb.WriteString("  )\n")
		}
		sb.WriteString(")\n")
	}
	return sb.String()
}

func dumpParams(params []string) string {
	if len(params) == 0 {
		return ""
	}
	return " " + strings.Join(params, " ")
}

func indent(sb *strings.Builder, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
}

func dumpStmt(sb *strings.Builder, stmt *Statement, depth int) {
	indent(sb, depth)
	switch stmt.Kind {
	case StmtProcCall:
		fmt.Fprintf(sb, "(%s", stmt.ProcName)
		for _, arg := range stmt.Args {
			sb.WriteString(" " + dumpExpr(arg))
		}
		sb.WriteString(")\n")
	case StmtDo:
		sb.WriteString("(do\n")
		for _, sub := range stmt.Stmts {
			dumpStmt(sb, sub, depth+1)
		}
		indent(sb, depth)
		sb.WriteString(")\n")
	case StmtIfElse:
		fmt.Fprintf(sb, "(if %s\n", dumpExpr(stmt.Cond))
		dumpStmt(sb, stmt.Body, depth+1)
		if stmt.Else != nil {
			dumpStmt(sb, stmt.Else, depth+1)
		}
		indent(sb, depth)
		sb.WriteString(")\n")
	case StmtRepeat:
		fmt.Fprintf(sb, "(repeat %s\n", dumpExpr(stmt.Times))
		dumpStmt(sb, stmt.Body, depth+1)
		indent(sb, depth)
		sb.WriteString(")\n")
	case StmtForever:
		sb.WriteString("(forever\n")
		dumpStmt(sb, stmt.Body, depth+1)
		indent(sb, depth)
		sb.WriteString(")\n")
	case StmtUntil, StmtWhile:
		name := "while"
		if stmt.Kind == StmtUntil {
			name = "until"
		}
		fmt.Fprintf(sb, "(%s %s\n", name, dumpExpr(stmt.Cond))
		dumpStmt(sb, stmt.Body, depth+1)
		indent(sb, depth)
		sb.WriteString(")\n")
	case StmtFor:
		fmt.Fprintf(sb, "(for %s %s\n", stmt.Var, dumpExpr(stmt.Times))
		dumpStmt(sb, stmt.Body, depth+1)
		indent(sb, depth)
		sb.WriteString(")\n")
	}
}

func dumpExpr(e *Expr) string {
	switch e.Kind {
	case ExprLit:
		return e.Lit.Text()
	case ExprSym:
		return e.Sym
	case ExprFuncCall:
		parts := []string{e.Op.String()}
		for _, arg := range e.Args {
			parts = append(parts, dumpExpr(arg))
		}
		return "(" + strings.Join(parts, " ") + ")"
	case ExprAddSub:
		return dumpPartition("+", "-", e)
	case ExprMulDiv:
		return dumpPartition("*", "/", e)
	}
	return "?"
}

func dumpPartition(pos, neg string, e *Expr) string {
	parts := []string{pos}
	for _, term := range e.Positives {
		parts = append(parts, dumpExpr(term))
	}
	if len(e.Negatives) > 0 {
		negParts := []string{neg}
		for _, term := range e.Negatives {
			negParts = append(negParts, dumpExpr(term))
		}
		parts = append(parts, "("+strings.Join(negParts, " ")+")")
	}
	return "(" + strings.Join(parts, " ") + ")"
}
