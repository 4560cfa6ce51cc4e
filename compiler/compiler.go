// Package compiler wires the pipeline end to end: source text ->
// lexer -> parser -> semantic analyzer -> CFG -> IR (spec.md §2). Each
// call to Compile runs synchronously to completion and returns either
// an IR program or the accumulated diagnostics (spec.md §5, §6.6).
package compiler

import (
	"github.com/albanread/FasterBASICT/cfg"
	"github.com/albanread/FasterBASICT/constants"
	"github.com/albanread/FasterBASICT/diag"
	"github.com/albanread/FasterBASICT/emit"
	"github.com/albanread/FasterBASICT/ir"
	"github.com/albanread/FasterBASICT/parser"
	"github.com/albanread/FasterBASICT/registry"
	"github.com/albanread/FasterBASICT/sema"
)

// Result carries everything one compilation produced. IR and Graph are
// nil when earlier stages reported errors (spec.md §7: CFG and IR run
// only on an error-free front half). The constants manager stays valid
// until the caller finishes emitting (spec.md §3.8).
type Result struct {
	IR          *ir.Program
	Graph       *cfg.Graph
	Symbols     *sema.SymbolTable
	Constants   *constants.Manager
	Diagnostics diag.List
}

// OK reports whether compilation succeeded: no Error-severity
// diagnostic from any stage.
func (r *Result) OK() bool { return r.IR != nil && !r.Diagnostics.HasErrors() }

// Compiler compiles BASIC source against one command registry. The
// registry is read-only during compilation (spec.md §4.3), so one
// Compiler may serve many sequential compiles.
type Compiler struct {
	reg        *registry.Table
	warnUnused bool
}

// New returns a Compiler over the given registry.
func New(reg *registry.Table) *Compiler {
	return &Compiler{reg: reg, warnUnused: true}
}

// SetWarnUnused toggles unused-variable warnings in the analyzer.
func (c *Compiler) SetWarnUnused(on bool) { c.warnUnused = on }

// Compile runs the pipeline over src. The returned Result always
// carries every diagnostic accumulated with recovery; check OK before
// using the IR.
func (c *Compiler) Compile(file, src string) *Result {
	res := &Result{}

	prog, lexErrs, parseErrs := parser.ParseString(file, src)
	for _, e := range lexErrs {
		res.Diagnostics.Add(diag.Error, diag.Lexical, "LEX_ERROR", e.Loc, "%s", e.Msg)
	}
	for _, e := range parseErrs {
		res.Diagnostics.Add(diag.Error, diag.Syntax, "SYNTAX_ERROR", e.Loc, "%s", e.Msg)
	}

	analyzer := sema.New(c.reg)
	analyzer.SetWarnUnused(c.warnUnused)
	analyzer.Analyze(prog)
	res.Diagnostics = append(res.Diagnostics, analyzer.Diagnostics()...)
	res.Symbols = analyzer.Symbols()
	res.Constants = analyzer.Constants()

	// Later stages only run on an error-free front half; warnings
	// alone do not stop the pipeline (spec.md §7).
	if res.Diagnostics.HasErrors() {
		return res
	}

	builder := cfg.NewBuilder(analyzer.Symbols())
	graph := builder.Build(prog)
	res.Diagnostics = append(res.Diagnostics, builder.Diagnostics()...)
	if res.Diagnostics.HasErrors() {
		return res
	}
	res.Graph = graph

	res.IR = ir.NewGenerator(analyzer.Symbols(), analyzer.Constants()).Generate(graph)
	return res
}

// CompileToScript compiles src and renders target-runtime script text
// with the given emitter options. On failure the Result carries the
// diagnostics and the script is empty.
func (c *Compiler) CompileToScript(file, src string, opts emit.Options) (string, *Result, error) {
	res := c.Compile(file, src)
	if !res.OK() {
		return "", res, nil
	}
	script, err := emit.New(opts).Emit(res.IR)
	return script, res, err
}
