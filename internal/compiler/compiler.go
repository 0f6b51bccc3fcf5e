// Package compiler implements the AST-to-Instruction Compiler (spec §4.2):
// it walks a parsed syntax tree and emits, for each file, a root module Code
// Object plus a tree of child Code Objects using the closed instruction set
// in package instr. Grounded on the teacher's internal/analyzer visitor
// style (structural.go's recursive walkStmt/walkExpr split per node kind)
// generalized from "detect a finding" to "emit a deterministic instruction".
package compiler

import (
	"fmt"

	"github.com/scanforge/sourceguard/internal/classify"
	"github.com/scanforge/sourceguard/internal/instr"
	"github.com/scanforge/sourceguard/internal/lang"
	"github.com/scanforge/sourceguard/internal/parseadapter"
	"github.com/scanforge/sourceguard/internal/scanerr"
)

// Config tunes the compiler's configurable knobs (spec §9 Open Questions).
type Config struct {
	Classify         classify.Config
	MaxRecursionDepth int // default 300; exceeding it truncates the subtree to NOP (spec §4.2 "Failure semantics")
}

func DefaultConfig() Config {
	return Config{Classify: classify.DefaultConfig(), MaxRecursionDepth: 300}
}

// dispatch is a total function from node kind to an emission handler,
// closed over one language's grammar (Design Notes §9: "a single central
// table"). Handlers are free to recurse via e.emitNode/e.emitAll.
type dispatch map[string]func(e *emitter, n parseadapter.Node)

// emitter carries the mutable state threaded through one file's compilation:
// the arena every Code Object is allocated into, the builder for whichever
// Code Object is currently being written, the active lexical scope, and the
// language-specific dispatch table.
type emitter struct {
	arena    *instr.Arena
	path     string
	language string
	cfg      Config
	table    dispatch
	fallback func(e *emitter, n parseadapter.Node) // used when table has no entry

	b        *builder
	co       *instr.CodeObject
	sc       *scope
	astDepth int // AST recursion depth, bounded by cfg.MaxRecursionDepth
	defDepth int // function/class nesting depth, for the depth-0 separate-object rule

	loopStack []loopLabels
}

type loopLabels struct {
	start, end int
}

func (e *emitter) pushLoop(start, end int) {
	e.loopStack = append(e.loopStack, loopLabels{start: start, end: end})
}

func (e *emitter) popLoop() {
	if len(e.loopStack) > 0 {
		e.loopStack = e.loopStack[:len(e.loopStack)-1]
	}
}

func (e *emitter) currentLoop() (start, end int, ok bool) {
	if len(e.loopStack) == 0 {
		return 0, 0, false
	}
	top := e.loopStack[len(e.loopStack)-1]
	return top.start, top.end, true
}

// Compile walks the already-parsed tree's root under language and returns an arena containing
// the module Code Object and every child it produced.
func Compile(path string, language lang.Language, tree *parseadapter.Tree, cfg Config) (*instr.Arena, error) {
	arena := instr.NewArena()
	e := &emitter{arena: arena, path: path, language: string(language), cfg: cfg}

	switch language {
	case lang.ScriptDynamic:
		e.table = pythonDispatch
		e.fallback = pythonFallback
	case lang.ScriptCurly:
		e.table = jstsDispatch
		e.fallback = jstsFallback
	default:
		return nil, scanerr.New(scanerr.UnsupportedExtension, path, "no grammar for language", nil)
	}

	root := tree.Root()
	e.compileModule(root)
	return arena, nil
}

func (e *emitter) compileModule(root parseadapter.Node) {
	e.co = e.arena.New("<module>", e.path, e.language, 0)
	e.b = newBuilder(e.co)
	e.sc = newModuleScope()
	preDeclareBindings(e.sc, root, e.language)

	e.b.emit(instr.TARGETED_FILE, instr.NoArg(), root.StartLine())
	e.emitAll(root.NamedChildren())
	if len(e.co.Instructions) == 1 {
		// An entirely empty (comments/whitespace only) file (spec §8, property 10).
		e.b.emit(instr.RETURN_CONST, instr.NoArg(), root.EndLine())
	}
	e.co.Warnings = append(e.co.Warnings, e.b.finish()...)
	e.co.StartLine = root.StartLine()
	e.co.EndLine = root.EndLine()
}

// newChildObject allocates and switches emission into a fresh Code Object
// for a depth-0 function, class, lambda, or comprehension (spec §4.2, rules
// 2-4), returning a resume closure that restores the caller's builder/scope.
func (e *emitter) newChildObject(name string, fresh *scope) (id instr.CodeObjectID, resume func()) {
	parentCO, parentB, parentSc := e.co, e.b, e.sc
	child := e.arena.New(name, e.path, e.language, e.defDepth)
	e.co = child
	e.b = newBuilder(child)
	e.sc = fresh
	return child.ID, func() {
		e.co.Warnings = append(e.co.Warnings, e.b.finish()...)
		parentCO.Children = append(parentCO.Children, child.ID)
		e.co, e.b, e.sc = parentCO, parentB, parentSc
	}
}

// emitNode dispatches n to its handler, enforcing the recursion-depth bound
// (spec §4.2 "Failure semantics"; Design Notes §9's explicit-stack guidance
// is realized here as an explicit depth counter rather than Go's own call
// stack, so overflow degrades to a warning instead of a runtime panic risk).
func (e *emitter) emitNode(n parseadapter.Node) {
	if n == nil {
		return
	}
	if n.HasError() {
		e.warn(scanerr.ParseError, fmt.Sprintf("skipped error subtree at line %d", n.StartLine()), n.StartLine())
		return
	}
	e.astDepth++
	defer func() { e.astDepth-- }()
	if e.astDepth > e.cfg.MaxRecursionDepth {
		e.warn(scanerr.CompileTruncation, "recursion depth exceeded; subtree truncated", n.StartLine())
		e.b.emit(instr.NOP, instr.CategoryArg("TRUNCATED"), n.StartLine())
		return
	}

	if handler, ok := e.table[n.Kind()]; ok {
		handler(e, n)
		return
	}
	e.fallback(e, n)
}

// emitAll emits each node in order (spec §4.2, rule 10: source order, never
// map/set iteration order).
func (e *emitter) emitAll(nodes []parseadapter.Node) {
	for _, n := range nodes {
		e.emitNode(n)
	}
}

func (e *emitter) warn(kind scanerr.Kind, msg string, line int) {
	e.co.Warnings = append(e.co.Warnings, scanerr.Warning{Kind: kind, Message: msg, Line: line})
}

func (e *emitter) literalString(n parseadapter.Node, raw string) instr.Arg {
	return classify.String(e.cfg.Classify, raw)
}
