package macro_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"

	"github.com/splash-lang/sbc/pkg/ast"
	"github.com/splash-lang/sbc/pkg/config"
	"github.com/splash-lang/sbc/pkg/diag"
	"github.com/splash-lang/sbc/pkg/macro"
	"github.com/splash-lang/sbc/pkg/parser"
)

func parse(t *testing.T, src string) []*ast.Ast {
	t.Helper()
	forms, err := parser.NewParser([]rune(src), 0).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return forms
}

func expand(t *testing.T, src string) []*ast.Ast {
	t.Helper()
	forms := parse(t, src)
	files := []diag.SourceFileRecord{{Name: "test", Content: []rune(src)}}
	exp := macro.NewExpander(config.NewConfig(), &files)
	if err := exp.ExpandTopLevel(forms); err != nil {
		t.Fatalf("expand: %v", err)
	}
	return exp.Program()
}

func expandFail(t *testing.T, src string) *diag.Error {
	t.Helper()
	forms := parse(t, src)
	files := []diag.SourceFileRecord{{Name: "test", Content: []rune(src)}}
	exp := macro.NewExpander(config.NewConfig(), &files)
	err := exp.ExpandTopLevel(forms)
	be.True(t, err != nil)
	return err
}

func TestSymbolMacro(t *testing.T) {
	program := expand(t, `
		(macro answer 42)
		(stage (when-flag-clicked (print answer)))`)
	be.Equal(t, len(program), 1)
	print := program[0].Args[0].Args[0]
	be.Equal(t, print.Args[0].Kind, ast.Num)
	be.Equal(t, print.Args[0].NumVal, 42.0)
}

func TestFunctionMacro(t *testing.T) {
	program := expand(t, `
		(macro (double x) (* 2 ,x))
		(stage (when-flag-clicked (print (double 21))))`)
	print := program[0].Args[0].Args[0]
	mul := print.Args[0]
	be.Equal(t, mul.Kind, ast.Node)
	be.Equal(t, mul.Head.StrVal, "*")
	be.Equal(t, mul.Args[0].NumVal, 2.0)
	be.Equal(t, mul.Args[1].NumVal, 21.0)
}

func TestMacrosExpandInsideMacroUses(t *testing.T) {
	program := expand(t, `
		(macro two 2)
		(macro (double x) (* two ,x))
		(stage (when-flag-clicked (print (double 3))))`)
	mul := program[0].Args[0].Args[0].Args[0]
	be.Equal(t, mul.Args[0].NumVal, 2.0)
}

func TestMacroArityError(t *testing.T) {
	err := expandFail(t, `
		(macro (double x) (* 2 ,x))
		(stage (when-flag-clicked (print (double 1 2))))`)
	be.Equal(t, err.Kind, diag.ErrWrongArgCount)
}

func TestSelfExpandingMacroTerminates(t *testing.T) {
	err := expandFail(t, `
		(macro loop (loop2))
		(macro (loop2) loop)
		(stage (when-flag-clicked (print loop)))`)
	be.Equal(t, err.Kind, diag.ErrMacro)
}

func TestMalformedDefinitions(t *testing.T) {
	for _, src := range []string{
		`(macro)`,
		`(macro name)`,
		`(macro name 1 2)`,
		`(macro (f "bad") 1)`,
		`(macro "bad" 1)`,
	} {
		err := expandFail(t, src)
		be.Equal(t, err.Kind, diag.ErrMacro)
	}
}

func TestInclude(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lib.scr")
	be.Err(t, os.WriteFile(path, []byte(`(macro greeting "hello")`), 0o644), nil)

	src := `
		(include "lib.scr")
		(stage (when-flag-clicked (print greeting)))`
	forms := parse(t, src)
	files := []diag.SourceFileRecord{{Name: "test", Content: []rune(src)}}
	cfg := config.NewConfig()
	cfg.IncludePaths = []string{dir}
	exp := macro.NewExpander(cfg, &files)
	if err := exp.ExpandTopLevel(forms); err != nil {
		t.Fatalf("expand: %v", err)
	}

	print := exp.Program()[0].Args[0].Args[0]
	be.Equal(t, print.Args[0].Kind, ast.String)
	be.Equal(t, print.Args[0].StrVal, "hello")
	be.Equal(t, len(files), 2)
}

func TestIncludeDisabled(t *testing.T) {
	src := `(include "anything.scr")`
	forms := parse(t, src)
	files := []diag.SourceFileRecord{{Name: "test", Content: []rune(src)}}
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatInclude, false)
	exp := macro.NewExpander(cfg, &files)
	err := exp.ExpandTopLevel(forms)
	be.True(t, err != nil)
}

func TestMissingIncludeIsFatal(t *testing.T) {
	err := expandFail(t, `(include "no-such-file.scr")`)
	be.Equal(t, err.Kind, diag.ErrMacro)
}
