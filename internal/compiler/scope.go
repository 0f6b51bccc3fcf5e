package compiler

import "github.com/scanforge/sourceguard/internal/instr"

// scope resolves a name to the Load/Store opcode pair the spec's lexical
// rule assigns it (spec §4.2, rule 7). It is rebuilt once per function (or
// once for the module) by a shallow pre-pass that does not descend into
// nested function/class bodies, since those get their own scope.
//
// Rule 7 names exactly four buckets: LOAD_PARAM/STORE_FAST for parameters,
// LOAD_FAST/STORE_FAST for names assigned in the current scope and not
// declared global, LOAD_GLOBAL/STORE_GLOBAL for names declared global, and
// LOAD_NAME/STORE_NAME "otherwise". The "otherwise" bucket is where a true
// free variable falls: an explicit `nonlocal` declaration, or any reference
// that resolves to a local of an *enclosing function* rather than to module
// scope. `outer` links a function scope to whatever scope was active when
// it was entered, so that chain can be walked to tell a real closure (free
// variable over an enclosing function, LOAD_NAME) apart from a plain
// reference to a module-level name (LOAD_GLOBAL, matching S2's
// `subprocess.run` inside a top-level function with no enclosing function).
type scope struct {
	isModule  bool
	outer     *scope
	params    map[string]bool
	locals    map[string]bool
	globals   map[string]bool
	nonlocals map[string]bool
}

func newModuleScope() *scope {
	return &scope{isModule: true, params: map[string]bool{}, locals: map[string]bool{}, globals: map[string]bool{}, nonlocals: map[string]bool{}}
}

func newFunctionScope() *scope {
	return &scope{params: map[string]bool{}, locals: map[string]bool{}, globals: map[string]bool{}, nonlocals: map[string]bool{}}
}

func (s *scope) declareParam(name string)    { s.params[name] = true }
func (s *scope) declareLocal(name string)    { s.locals[name] = true }
func (s *scope) declareGlobal(name string)   { s.globals[name] = true }
func (s *scope) declareNonlocal(name string) { s.nonlocals[name] = true }

// isFreeOverEnclosingFunction walks the outer chain, stopping at the module
// scope, to decide whether name is bound in some enclosing *function*
// scope — a real closure — as opposed to only being reachable at module
// scope (or not bound at all, i.e. a builtin).
func (s *scope) isFreeOverEnclosingFunction(name string) bool {
	for o := s.outer; o != nil && !o.isModule; o = o.outer {
		if o.params[name] || (o.locals[name] && !o.globals[name]) {
			return true
		}
	}
	return false
}

// loadOp and storeOp implement rule 7's lexical classification. Module-level
// code always resolves through the direct NAME opcodes, matching the
// reference bytecode's own top-level convention (S1); a function body
// resolves its params to FAST, its own non-global, non-nonlocal locals to
// FAST, an explicit `global` declaration (or a plain reference to a
// module-level name) to GLOBAL (S2), and a `nonlocal` declaration or a free
// reference to an enclosing function's local to the "otherwise" NAME bucket
// rule 7 specifies.
func (s *scope) loadOp(name string) instr.Opcode {
	if s.isModule {
		return instr.LOAD_NAME
	}
	switch {
	case s.params[name]:
		return instr.LOAD_PARAM
	case s.nonlocals[name]:
		return instr.LOAD_NAME
	case s.locals[name] && !s.globals[name]:
		return instr.LOAD_FAST
	case s.globals[name]:
		return instr.LOAD_GLOBAL
	case s.isFreeOverEnclosingFunction(name):
		return instr.LOAD_NAME
	default:
		return instr.LOAD_GLOBAL
	}
}

func (s *scope) storeOp(name string) instr.Opcode {
	if s.isModule {
		return instr.STORE_NAME
	}
	switch {
	case s.params[name]:
		return instr.STORE_FAST
	case s.nonlocals[name]:
		return instr.STORE_NAME
	case s.globals[name]:
		return instr.STORE_GLOBAL
	default:
		return instr.STORE_FAST
	}
}
