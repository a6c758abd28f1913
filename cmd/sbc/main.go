package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/splash-lang/sbc/pkg/cli"
	"github.com/splash-lang/sbc/pkg/codegen"
	"github.com/splash-lang/sbc/pkg/config"
	"github.com/splash-lang/sbc/pkg/diag"
	"github.com/splash-lang/sbc/pkg/ir"
	"github.com/splash-lang/sbc/pkg/macro"
	"github.com/splash-lang/sbc/pkg/parser"
	"github.com/splash-lang/sbc/pkg/token"
)

func main() {
	app := cli.NewApp("sbc")
	app.Synopsis = "[options] <input.scr> ..."
	app.Description = "An ahead-of-time compiler for a small block-style scripting language, targeting x86-64 Linux."

	var (
		outFile      string
		runtimeLib   string
		includePaths []string
		asmOnly      bool
		dumpIR       bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "a.out", "Place the output into <file>.", "file")
	fs.Bool(&asmOnly, "asm", "S", false, "Stop after code generation and write the assembly text.")
	fs.Bool(&dumpIR, "dump-ir", "d", false, "Dump the intermediate representation and exit.")
	fs.List(&includePaths, "include", "I", "Add a directory to the include search path.", "path")
	fs.String(&runtimeLib, "runtime", "", "libruntime.a", "Runtime archive to link against.", "file")

	cfg := config.NewConfig()

	warnToggles := make([]bool, config.WarnCount)
	var warnEntries []cli.GroupEntry
	for w := config.Warning(0); w < config.WarnCount; w++ {
		info := cfg.Warnings[w]
		warnToggles[w] = info.Enabled
		warnEntries = append(warnEntries, cli.GroupEntry{Name: info.Name, Usage: info.Description, Enabled: &warnToggles[w]})
	}
	fs.Group("Warnings", "W", warnEntries)

	featToggles := make([]bool, config.FeatCount)
	var featEntries []cli.GroupEntry
	for ft := config.Feature(0); ft < config.FeatCount; ft++ {
		info := cfg.Features[ft]
		featToggles[ft] = info.Enabled
		featEntries = append(featEntries, cli.GroupEntry{Name: info.Name, Usage: info.Description, Enabled: &featToggles[ft]})
	}
	fs.Group("Features", "f", featEntries)

	app.Action = func(inputFiles []string) error {
		for w := config.Warning(0); w < config.WarnCount; w++ {
			cfg.SetWarning(w, warnToggles[w])
		}
		for ft := config.Feature(0); ft < config.FeatCount; ft++ {
			cfg.SetFeature(ft, featToggles[ft])
		}
		cfg.IncludePaths = append(cfg.IncludePaths, includePaths...)

		if len(inputFiles) == 0 {
			fail("no input files specified")
		}

		records := make([]diag.SourceFileRecord, 0, len(inputFiles))
		for _, name := range inputFiles {
			data, err := os.ReadFile(name)
			if err != nil {
				fail("cannot read '%s': %v", name, err)
			}
			records = append(records, diag.SourceFileRecord{Name: name, Content: []rune(string(data))})
		}
		diag.SetSourceFiles(records)

		exp := macro.NewExpander(cfg, &records)
		for i := range inputFiles {
			forms, err := parser.NewParser(records[i].Content, i).Parse()
			if err != nil {
				abort(err)
			}
			if err := exp.ExpandTopLevel(forms); err != nil {
				abort(err)
			}
		}
		// includes may have grown the file list
		diag.SetSourceFiles(records)

		prog, err := ir.FromAsts(exp.Program())
		if err != nil {
			abort(err)
		}
		if cfg.IsFeatureEnabled(config.FeatFold) {
			prog.Optimize()
		}
		if dumpIR {
			fmt.Print(prog.Dump())
			return nil
		}

		asm, genErr := codegen.NewX64Backend().Generate(prog, cfg)
		if genErr != nil {
			if de, ok := genErr.(*diag.Error); ok {
				abort(de)
			}
			fail("code generation failed: %v", genErr)
		}

		if asmOnly {
			asmFile := outFile
			if asmFile == "a.out" {
				asmFile = replaceExt(inputFiles[0], ".s")
			}
			if err := os.WriteFile(asmFile, asm.Bytes(), 0o644); err != nil {
				fail("cannot write '%s': %v", asmFile, err)
			}
			return nil
		}
		return assembleAndLink(cfg, outFile, runtimeLib, asm.Bytes())
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func fail(format string, args ...any) {
	abort(diag.Errorf(diag.ErrParse, token.NoSpan, format, args...))
}

func abort(err *diag.Error) {
	diag.Print(err)
	os.Exit(1)
}

func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// assembleAndLink runs the assembler and linker named in the
// configuration. The entry label is main, so ld gets -e main; libc is
// linked dynamically for malloc and the math bindings.
func assembleAndLink(cfg *config.Config, outFile, runtimeLib string, asm []byte) error {
	asmFile, err := os.CreateTemp("", "sbc-*.s")
	if err != nil {
		return fmt.Errorf("failed to create temp asm file: %w", err)
	}
	defer os.Remove(asmFile.Name())
	if _, err := asmFile.Write(asm); err != nil {
		return fmt.Errorf("failed to write temp asm file: %w", err)
	}
	asmFile.Close()

	objFile := asmFile.Name() + ".o"
	defer os.Remove(objFile)

	assemble := exec.Command(cfg.Assembler, "-felf64", "-o", objFile, asmFile.Name())
	assemble.Stderr = os.Stderr
	if err := assemble.Run(); err != nil {
		return fmt.Errorf("%s failed: %w", cfg.Assembler, err)
	}

	link := exec.Command(cfg.Linker,
		"-o", outFile,
		"-e", "main",
		"--dynamic-linker", "/lib64/ld-linux-x86-64.so.2",
		objFile, runtimeLib, "-lc", "-lm")
	link.Stderr = os.Stderr
	if err := link.Run(); err != nil {
		return fmt.Errorf("%s failed: %w", cfg.Linker, err)
	}
	return nil
}
