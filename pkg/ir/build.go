package ir

import (
	"github.com/splash-lang/sbc/pkg/ast"
	"github.com/splash-lang/sbc/pkg/diag"
	"github.com/splash-lang/sbc/pkg/token"
	"github.com/splash-lang/sbc/pkg/value"
)

// FromAsts builds the typed IR from macro-expanded top-level forms. All
// function and statement names are resolved here; unknown names are fatal
// with the offending span.
func FromAsts(forms []*ast.Ast) (*Program, *diag.Error) {
	prog := &Program{Stage: &Sprite{Name: "Stage"}}
	for _, form := range forms {
		switch {
		case form.IsCallTo("sprite"):
			sprite, err := buildSprite(form)
			if err != nil {
				return nil, err
			}
			prog.Sprites = append(prog.Sprites, sprite)
		case form.IsCallTo("stage"):
			if err := buildProcs(prog.Stage, form.Args); err != nil {
				return nil, err
			}
		default:
			return nil, diag.Errorf(diag.ErrParse, form.Span, "expected a 'sprite' or 'stage' form at the top level")
		}
	}
	return prog, nil
}

func buildSprite(form *ast.Ast) (*Sprite, *diag.Error) {
	if len(form.Args) == 0 || form.Args[0].Kind != ast.String {
		return nil, diag.Errorf(diag.ErrParse, form.Span, "'sprite' needs a name string")
	}
	sprite := &Sprite{Name: form.Args[0].StrVal}
	if err := buildProcs(sprite, form.Args[1:]); err != nil {
		return nil, err
	}
	return sprite, nil
}

func buildProcs(sprite *Sprite, forms []*ast.Ast) *diag.Error {
	for _, form := range forms {
		if form.Kind != ast.Node || form.Head.Kind != ast.Sym {
			return diag.Errorf(diag.ErrParse, form.Span, "expected a procedure definition")
		}
		switch form.Head.StrVal {
		case "variables":
			names, err := symNames(form.Args)
			if err != nil {
				return err
			}
			sprite.Variables = append(sprite.Variables, names...)
		case "lists":
			names, err := symNames(form.Args)
			if err != nil {
				return err
			}
			sprite.Lists = append(sprite.Lists, names...)
		default:
			proc, err := buildProc(form)
			if err != nil {
				return err
			}
			sprite.Procedures = append(sprite.Procedures, proc)
		}
	}
	return nil
}

func symNames(forms []*ast.Ast) ([]string, *diag.Error) {
	names := make([]string, len(forms))
	for i, form := range forms {
		if form.Kind != ast.Sym {
			return nil, diag.Errorf(diag.ErrParse, form.Span, "expected a symbol")
		}
		names[i] = form.StrVal
	}
	return names, nil
}

func buildProc(form *ast.Ast) (*Procedure, *diag.Error) {
	switch form.Head.StrVal {
	case "proc":
		if len(form.Args) == 0 {
			return nil, diag.Errorf(diag.ErrParse, form.Span, "'proc' needs a signature")
		}
		signature := form.Args[0]
		proc := &Procedure{Span: form.Span}
		switch {
		case signature.Kind == ast.Sym:
			proc.Name = signature.StrVal
		case signature.Kind == ast.Node && signature.Head.Kind == ast.Sym:
			proc.Name = signature.Head.StrVal
			for _, param := range signature.Args {
				if param.Kind != ast.Sym {
					return nil, diag.Errorf(diag.ErrParse, param.Span, "procedure parameter must be a symbol")
				}
				proc.Params = append(proc.Params, param.StrVal)
			}
		default:
			return nil, diag.Errorf(diag.ErrParse, signature.Span, "invalid procedure signature")
		}
		body, err := buildDo(form.Args[1:], form.Span)
		if err != nil {
			return nil, err
		}
		proc.Body = body
		return proc, nil
	default:
		// Entry-point hat blocks: (when-flag-clicked stmts...).
		body, err := buildDo(form.Args, form.Span)
		if err != nil {
			return nil, err
		}
		return &Procedure{Name: form.Head.StrVal, Span: form.Span, Body: body}, nil
	}
}

func buildDo(forms []*ast.Ast, span token.Span) (*Statement, *diag.Error) {
	stmts := make([]*Statement, 0, len(forms))
	for _, form := range forms {
		stmt, err := buildStatement(form)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return &Statement{Kind: StmtDo, Span: span, Stmts: stmts}, nil
}

func buildStatement(form *ast.Ast) (*Statement, *diag.Error) {
	if form.Kind != ast.Node || form.Head.Kind != ast.Sym {
		return nil, diag.Errorf(diag.ErrParse, form.Span, "expected a statement")
	}
	head := form.Head.StrVal
	args := form.Args

	switch head {
	case "do":
		return buildDo(args, form.Span)

	case "if":
		if len(args) < 2 || len(args) > 3 {
			return nil, diag.Errorf(diag.ErrWrongArgCount, form.Span, "'if' expects a condition, a consequent and an optional alternative")
		}
		cond, err := buildExpr(args[0])
		if err != nil {
			return nil, err
		}
		then, err := buildStatement(args[1])
		if err != nil {
			return nil, err
		}
		stmt := &Statement{Kind: StmtIfElse, Span: form.Span, Cond: cond, Body: then}
		if len(args) == 3 {
			alt, err := buildStatement(args[2])
			if err != nil {
				return nil, err
			}
			stmt.Else = alt
		}
		return stmt, nil

	case "repeat":
		return buildCountedLoop(StmtRepeat, form)

	case "forever":
		body, err := buildDo(args, form.Span)
		if err != nil {
			return nil, err
		}
		return &Statement{Kind: StmtForever, Span: form.Span, Body: body}, nil

	case "until", "while":
		if len(args) == 0 {
			return nil, diag.Errorf(diag.ErrWrongArgCount, form.Span, "'%s' needs a condition", head)
		}
		cond, err := buildExpr(args[0])
		if err != nil {
			return nil, err
		}
		body, err := buildDo(args[1:], form.Span)
		if err != nil {
			return nil, err
		}
		kind := StmtUntil
		if head == "while" {
			kind = StmtWhile
		}
		return &Statement{Kind: kind, Span: form.Span, Cond: cond, Body: body}, nil

	case "for":
		if len(args) < 2 {
			return nil, diag.Errorf(diag.ErrWrongArgCount, form.Span, "'for' needs a loop variable and a count")
		}
		if args[0].Kind != ast.Sym {
			return nil, diag.Errorf(diag.ErrParse, args[0].Span, "loop variable must be a symbol")
		}
		times, err := buildExpr(args[1])
		if err != nil {
			return nil, err
		}
		body, err := buildDo(args[2:], form.Span)
		if err != nil {
			return nil, err
		}
		return &Statement{Kind: StmtFor, Span: form.Span, Var: args[0].StrVal, Times: times, Body: body}, nil

	default:
		// Anything else is a procedure call, resolved against compiled
		// procedures at code-generation time.
		callArgs := make([]*Expr, len(args))
		for i, arg := range args {
			expr, err := buildExpr(arg)
			if err != nil {
				return nil, err
			}
			callArgs[i] = expr
		}
		return &Statement{Kind: StmtProcCall, Span: form.Span, ProcName: head, Args: callArgs}, nil
	}
}

func buildCountedLoop(kind StmtKind, form *ast.Ast) (*Statement, *diag.Error) {
	if len(form.Args) == 0 {
		return nil, diag.Errorf(diag.ErrWrongArgCount, form.Span, "'repeat' needs an iteration count")
	}
	times, err := buildExpr(form.Args[0])
	if err != nil {
		return nil, err
	}
	body, err := buildDo(form.Args[1:], form.Span)
	if err != nil {
		return nil, err
	}
	return &Statement{Kind: kind, Span: form.Span, Times: times, Body: body}, nil
}

func buildExpr(form *ast.Ast) (*Expr, *diag.Error) {
	switch form.Kind {
	case ast.Num:
		return &Expr{Kind: ExprLit, Span: form.Span, Lit: value.NewNum(form.NumVal)}, nil
	case ast.Bool:
		return &Expr{Kind: ExprLit, Span: form.Span, Lit: value.NewBool(form.BoolVal)}, nil
	case ast.String:
		return &Expr{Kind: ExprLit, Span: form.Span, Lit: value.NewStr(form.StrVal)}, nil
	case ast.Sym:
		return &Expr{Kind: ExprSym, Span: form.Span, Sym: form.StrVal}, nil
	case ast.Unquote:
		return nil, diag.Errorf(diag.ErrMacro, form.Span, "unquote outside of a macro body")
	case ast.Node:
		return buildCallExpr(form)
	}
	return nil, diag.Errorf(diag.ErrParse, form.Span, "expected an expression")
}

func buildCallExpr(form *ast.Ast) (*Expr, *diag.Error) {
	if form.Head.Kind != ast.Sym {
		return nil, diag.Errorf(diag.ErrParse, form.Head.Span, "function name must be a symbol")
	}
	name := form.Head.StrVal

	args := make([]*Expr, len(form.Args))
	for i, arg := range form.Args {
		expr, err := buildExpr(arg)
		if err != nil {
			return nil, err
		}
		args[i] = expr
	}

	switch name {
	case "+":
		return &Expr{Kind: ExprAddSub, Span: form.Span, Positives: args}, nil
	case "-":
		// (- x) negates; (- x y z) subtracts y and z from x.
		if len(args) <= 1 {
			return &Expr{Kind: ExprAddSub, Span: form.Span, Negatives: args}, nil
		}
		return &Expr{Kind: ExprAddSub, Span: form.Span, Positives: args[:1], Negatives: args[1:]}, nil
	case "*":
		return &Expr{Kind: ExprMulDiv, Span: form.Span, Positives: args}, nil
	case "/":
		if len(args) == 1 {
			return &Expr{Kind: ExprMulDiv, Span: form.Span, Negatives: args}, nil
		}
		if len(args) == 0 {
			return &Expr{Kind: ExprMulDiv, Span: form.Span}, nil
		}
		return &Expr{Kind: ExprMulDiv, Span: form.Span, Positives: args[:1], Negatives: args[1:]}, nil
	}

	op, ok := LookupFuncOp(name)
	if !ok {
		return nil, diag.Errorf(diag.ErrUnknownFunction, form.Span, "unknown function '%s'", name)
	}
	return &Expr{Kind: ExprFuncCall, Span: form.Span, Op: op, Args: args}, nil
}
