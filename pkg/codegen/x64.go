package codegen

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/splash-lang/sbc/pkg/config"
	"github.com/splash-lang/sbc/pkg/diag"
	"github.com/splash-lang/sbc/pkg/ir"
)

// The .asm extension keeps the Go toolchain from treating the NASM
// source as Go assembler input.
//
//go:embed prelude.asm
var prelude string

// EntryProcName is the well-known hat procedure invoked from the startup
// dispatcher. It takes no parameters.
const EntryProcName = "when-flag-clicked"

type x64Backend struct{}

// NewX64Backend returns the x86-64 SysV assembly backend. Its output is
// NASM source, later assembled and linked against the runtime archive.
func NewX64Backend() Backend { return &x64Backend{} }

func (b *x64Backend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	g := newAsmProgram(cfg)
	if err := g.declare(prog); err != nil {
		return nil, err
	}

	for i, sprite := range prog.AllSprites() {
		g.scope = g.scopes[i]
		for _, proc := range sprite.Procedures {
			if err := g.emitProc(proc); err != nil {
				return nil, err
			}
		}
	}
	return g.render(), nil
}

type procInfo struct {
	label  string
	params []string
}

// scope holds the storage labels of one sprite. Lookups fall back to the
// stage, which acts as the global namespace.
type scope struct {
	vars  map[string]string
	lists map[string]string
	procs map[string]*procInfo
	stage *scope
}

func newScope(stage *scope) *scope {
	return &scope{
		vars:  make(map[string]string),
		lists: make(map[string]string),
		procs: make(map[string]*procInfo),
		stage: stage,
	}
}

func (s *scope) lookupVar(name string) (string, bool) {
	if label, ok := s.vars[name]; ok {
		return label, true
	}
	if s.stage != nil {
		return s.stage.lookupVar(name)
	}
	return "", false
}

func (s *scope) lookupList(name string) (string, bool) {
	if label, ok := s.lists[name]; ok {
		return label, true
	}
	if s.stage != nil {
		return s.stage.lookupList(name)
	}
	return "", false
}

func (s *scope) lookupProc(name string) (*procInfo, bool) {
	if info, ok := s.procs[name]; ok {
		return info, true
	}
	if s.stage != nil {
		return s.stage.lookupProc(name)
	}
	return nil, false
}

// AsmProgram accumulates the compiled procedures and the program-lifetime
// tables (static strings, storage slots, entry points), and renders the
// final assembly text.
type AsmProgram struct {
	cfg  *config.Config
	text strings.Builder

	labelCount int
	slotCount  int

	entryPoints []string

	strs     map[string]string // literal content -> data label
	strOrder []string          // insertion order of contents

	scopes []*scope
	scope  *scope
	bss    []string // slot labels in allocation order

	proc *ir.Procedure

	// stackAligned tracks the parity of 8-byte words pushed since the
	// procedure prologue. It must be true immediately before any call and
	// must return to its starting value at every expression's end.
	stackAligned bool
}

func newAsmProgram(cfg *config.Config) *AsmProgram {
	return &AsmProgram{cfg: cfg, strs: make(map[string]string)}
}

// declare assigns labels to every storage slot and procedure up front so
// cross-procedure calls and forward references resolve.
func (g *AsmProgram) declare(prog *ir.Program) *diag.Error {
	var stage *scope
	for _, sprite := range prog.AllSprites() {
		s := newScope(stage)
		if stage == nil {
			stage = s
			s.stage = nil
		}
		for _, name := range sprite.Variables {
			s.vars[name] = g.newSlot("var")
		}
		for _, name := range sprite.Lists {
			s.lists[name] = g.newSlot("list")
		}
		for _, proc := range sprite.Procedures {
			if proc.Name == EntryProcName {
				if len(proc.Params) != 0 {
					return diag.Errorf(diag.ErrBadEntrySignature, proc.Span,
						"'%s' takes no parameters, got %d", proc.Name, len(proc.Params))
				}
				continue
			}
			if _, exists := s.procs[proc.Name]; exists {
				return diag.Errorf(diag.ErrParse, proc.Span, "redefinition of procedure '%s'", proc.Name)
			}
			s.procs[proc.Name] = &procInfo{label: g.newLabel(), params: proc.Params}
		}
		g.scopes = append(g.scopes, s)
	}
	return nil
}

func (g *AsmProgram) newLabel() string {
	l := fmt.Sprintf("L%d", g.labelCount)
	g.labelCount++
	return l
}

// newSlot allocates a 16-byte zero-initialized storage slot in bss.
func (g *AsmProgram) newSlot(kind string) string {
	l := fmt.Sprintf("%s_%d", kind, g.slotCount)
	g.slotCount++
	g.bss = append(g.bss, l)
	return l
}

// internString interns literal content into the static string table. Labels
// are content-addressed so identical literals share one buffer.
func (g *AsmProgram) internString(s string) string {
	if label, ok := g.strs[s]; ok {
		return label
	}
	label := fmt.Sprintf("str_%016x", xxhash.Sum64String(s))
	g.strs[s] = label
	g.strOrder = append(g.strOrder, s)
	return label
}

func (g *AsmProgram) emit(code string) {
	g.text.WriteString(code)
	g.text.WriteByte('\n')
}

func (g *AsmProgram) emitf(format string, args ...any) {
	fmt.Fprintf(&g.text, format, args...)
	g.text.WriteByte('\n')
}

func (g *AsmProgram) placeLabel(label string) {
	g.text.WriteString(label)
	g.text.WriteString(":\n")
}

// aligningCall emits a call, padding the stack by one word when an odd
// number of words are outstanding, as the SysV ABI requires rsp to be
// 16-byte aligned at every call instruction.
func (g *AsmProgram) aligningCall(symbol string) {
	if g.stackAligned {
		g.emit("    call " + symbol)
		return
	}
	g.emit("    sub rsp, 8\n    call " + symbol + "\n    add rsp, 8")
}

// callLibc is aligningCall through the PLT.
func (g *AsmProgram) callLibc(symbol string) {
	g.aligningCall(symbol + " wrt ..plt")
}

func (g *AsmProgram) emitProc(proc *ir.Procedure) *diag.Error {
	var label string
	if proc.Name == EntryProcName {
		label = g.newLabel()
		g.entryPoints = append(g.entryPoints, label)
	} else {
		info, ok := g.scope.lookupProc(proc.Name)
		if !ok {
			return diag.Errorf(diag.ErrUnknownProc, proc.Span, "undeclared procedure '%s'", proc.Name)
		}
		label = info.label
	}

	g.proc = proc
	g.placeLabel(label)
	g.emit("    push rbp\n    mov rbp, rsp")
	g.stackAligned = true
	if err := g.emitStatement(proc.Body); err != nil {
		return err
	}
	g.emit("    pop rbp\n    ret")
	g.proc = nil
	return nil
}

// render assembles the final output: prelude, startup dispatcher, compiled
// procedure bodies, static string data and the slot bss.
func (g *AsmProgram) render() *bytes.Buffer {
	var out bytes.Buffer
	out.WriteString(prelude)
	out.WriteString("\nmain:\n")
	for _, entry := range g.entryPoints {
		fmt.Fprintf(&out, "    call %s\n", entry)
	}
	out.WriteString("    mov rax, 60\n    mov rdi, 0\n    syscall\n\n")
	out.WriteString(g.text.String())

	if len(g.strOrder) > 0 {
		out.WriteString("\nsection .rodata\n")
		for _, s := range g.strOrder {
			label := g.strs[s]
			if len(s) == 0 {
				fmt.Fprintf(&out, "%s:\n", label)
				continue
			}
			fmt.Fprintf(&out, "%s: db ", label)
			for i := 0; i < len(s); i++ {
				if i > 0 {
					out.WriteByte(',')
				}
				fmt.Fprintf(&out, "%d", s[i])
			}
			out.WriteByte('\n')
		}
	}

	if len(g.bss) > 0 {
		out.WriteString("\nsection .bss\n")
		for _, label := range g.bss {
			fmt.Fprintf(&out, "%s: resq 2\n", label)
		}
	}
	return &out
}
