package macro

import (
	"os"
	"path/filepath"

	"github.com/splash-lang/sbc/pkg/ast"
	"github.com/splash-lang/sbc/pkg/config"
	"github.com/splash-lang/sbc/pkg/diag"
	"github.com/splash-lang/sbc/pkg/parser"
	"github.com/splash-lang/sbc/pkg/token"
)

// expansion stops after this many rewrites of a single form, so a macro
// that expands to itself reports an error instead of hanging the compiler.
const maxExpansions = 1000

type funcMacro struct {
	params []string
	body   *ast.Ast
}

// Expander rewrites top-level forms, collecting macro definitions and
// substituting their uses until no rewrite applies.
type Expander struct {
	cfg       *config.Config
	symbols   map[string]*ast.Ast
	functions map[string]*funcMacro
	program   []*ast.Ast

	// files is shared with the driver so (include "...") can register new
	// sources for diagnostics.
	files *[]diag.SourceFileRecord
}

func NewExpander(cfg *config.Config, files *[]diag.SourceFileRecord) *Expander {
	return &Expander{
		cfg:       cfg,
		symbols:   make(map[string]*ast.Ast),
		functions: make(map[string]*funcMacro),
		files:     files,
	}
}

// Program returns the expanded top-level forms accumulated so far.
func (e *Expander) Program() []*ast.Ast { return e.program }

// ExpandTopLevel processes a file's worth of top-level forms in order.
func (e *Expander) ExpandTopLevel(forms []*ast.Ast) *diag.Error {
	for _, form := range forms {
		if err := e.topLevel(form); err != nil {
			return err
		}
	}
	return nil
}

func (e *Expander) topLevel(form *ast.Ast) *diag.Error {
	// A macro definition's body must not be expanded early, but macros may
	// still define other macros, so only non-definitions get the deep pass.
	if !form.IsCallTo("macro") {
		expanded, err := e.expandDeep(form)
		if err != nil {
			return err
		}
		form = expanded
	}

	switch {
	case form.IsCallTo("macro"):
		return e.define(form.Args, form.Span)
	case form.IsCallTo("include"):
		if !e.cfg.IsFeatureEnabled(config.FeatInclude) {
			return diag.Errorf(diag.ErrMacro, form.Span, "'include' is disabled")
		}
		return e.include(form.Args, form.Span)
	default:
		e.program = append(e.program, form)
		return nil
	}
}

func (e *Expander) define(args []*ast.Ast, span token.Span) *diag.Error {
	if len(args) == 0 {
		return diag.Errorf(diag.ErrMacro, span, "macro definition is missing its signature")
	}
	signature := args[0]
	if len(args) < 2 {
		return diag.Errorf(diag.ErrMacro, span, "macro definition is missing its body")
	}
	if len(args) > 2 {
		return diag.Errorf(diag.ErrMacro, args[2].Span, "macro definition has more than one body")
	}
	body := args[1]

	switch {
	case signature.Kind == ast.Sym:
		if _, exists := e.symbols[signature.StrVal]; exists {
			diag.Warn(e.cfg, "shadowed-macro", span, "redefinition of macro '%s'", signature.StrVal)
		}
		e.symbols[signature.StrVal] = body
		return nil
	case signature.Kind == ast.Node && signature.Head.Kind == ast.Sym:
		name := signature.Head.StrVal
		params := make([]string, len(signature.Args))
		for i, param := range signature.Args {
			if param.Kind != ast.Sym {
				return diag.Errorf(diag.ErrMacro, param.Span, "macro parameter must be a symbol")
			}
			params[i] = param.StrVal
		}
		if _, exists := e.functions[name]; exists {
			diag.Warn(e.cfg, "shadowed-macro", span, "redefinition of macro '%s'", name)
		}
		e.functions[name] = &funcMacro{params: params, body: body}
		return nil
	default:
		return diag.Errorf(diag.ErrMacro, signature.Span, "invalid macro signature")
	}
}

func (e *Expander) include(args []*ast.Ast, span token.Span) *diag.Error {
	if len(args) != 1 || args[0].Kind != ast.String {
		return diag.Errorf(diag.ErrMacro, span, "'include' expects one string argument")
	}
	path := args[0].StrVal

	content, found := e.readInclude(path)
	if !found {
		return diag.Errorf(diag.ErrMacro, args[0].Span, "could not read included file '%s'", path)
	}

	fileIndex := len(*e.files)
	*e.files = append(*e.files, diag.SourceFileRecord{Name: path, Content: content})
	diag.SetSourceFiles(*e.files)

	forms, err := parser.NewParser(content, fileIndex).Parse()
	if err != nil {
		return err
	}
	return e.ExpandTopLevel(forms)
}

func (e *Expander) readInclude(path string) ([]rune, bool) {
	candidates := []string{path}
	for _, dir := range e.cfg.IncludePaths {
		candidates = append(candidates, filepath.Join(dir, path))
	}
	for _, candidate := range candidates {
		if content, err := os.ReadFile(candidate); err == nil {
			return []rune(string(content)), true
		}
	}
	return nil, false
}

// expandDeep rewrites bottom-up until a full pass changes nothing.
func (e *Expander) expandDeep(form *ast.Ast) (*ast.Ast, *diag.Error) {
	for range maxExpansions {
		rewritten, changed, err := e.bottomUp(form)
		if err != nil {
			return nil, err
		}
		if !changed {
			return rewritten, nil
		}
		form = rewritten
	}
	return nil, diag.Errorf(diag.ErrMacro, form.Span, "macro expansion did not terminate")
}

func (e *Expander) bottomUp(form *ast.Ast) (*ast.Ast, bool, *diag.Error) {
	changed := false
	if form.Kind == ast.Node {
		head, headChanged, err := e.bottomUp(form.Head)
		if err != nil {
			return nil, false, err
		}
		args := form.Args
		argsChanged := false
		for i, arg := range form.Args {
			newArg, argChanged, err := e.bottomUp(arg)
			if err != nil {
				return nil, false, err
			}
			if argChanged {
				if !argsChanged {
					args = append([]*ast.Ast(nil), form.Args...)
					argsChanged = true
				}
				args[i] = newArg
			}
		}
		if headChanged || argsChanged {
			form = ast.NewNode(head, args, form.Span)
			changed = true
		}
	}

	rewritten, rewriteChanged, err := e.expandShallow(form)
	if err != nil {
		return nil, false, err
	}
	return rewritten, changed || rewriteChanged, nil
}

func (e *Expander) expandShallow(form *ast.Ast) (*ast.Ast, bool, *diag.Error) {
	switch form.Kind {
	case ast.Sym:
		if body, ok := e.symbols[form.StrVal]; ok {
			return body.Clone(), true, nil
		}
	case ast.Node:
		if form.Head.Kind != ast.Sym {
			break
		}
		mac, ok := e.functions[form.Head.StrVal]
		if !ok {
			break
		}
		if len(form.Args) != len(mac.params) {
			return nil, false, diag.Errorf(diag.ErrWrongArgCount, form.Span,
				"macro '%s' expects %d argument(s), got %d",
				form.Head.StrVal, len(mac.params), len(form.Args))
		}
		bindings := make(map[string]*ast.Ast, len(mac.params))
		for i, param := range mac.params {
			bindings[param] = form.Args[i]
		}
		return substitute(mac.body, bindings), true, nil
	}
	return form, false, nil
}

// substitute replaces ,param unquotes in a macro body with the bound
// argument expressions.
func substitute(body *ast.Ast, bindings map[string]*ast.Ast) *ast.Ast {
	if body == nil {
		return nil
	}
	if body.Kind == ast.Unquote && body.Head.Kind == ast.Sym {
		if arg, ok := bindings[body.Head.StrVal]; ok {
			return arg.Clone()
		}
	}
	c := *body
	c.Head = substitute(body.Head, bindings)
	if body.Args != nil {
		c.Args = make([]*ast.Ast, len(body.Args))
		for i, arg := range body.Args {
			c.Args[i] = substitute(arg, bindings)
		}
	}
	return &c
}
