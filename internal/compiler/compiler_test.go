package compiler

import (
	"context"
	"testing"

	"github.com/scanforge/sourceguard/internal/instr"
	"github.com/scanforge/sourceguard/internal/lang"
	"github.com/scanforge/sourceguard/internal/parseadapter"
)

func compilePython(t *testing.T, src string) (*instr.Arena, *instr.CodeObject) {
	t.Helper()
	tree, err := parseadapter.Parse(context.Background(), "t.py", lang.ScriptDynamic, []byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	defer tree.Close()
	arena, err := Compile("t.py", lang.ScriptDynamic, tree, DefaultConfig())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	module := arena.Get(0)
	if module == nil {
		t.Fatalf("no module code object")
	}
	return arena, module
}

func opSeq(co *instr.CodeObject) []instr.Opcode {
	ops := make([]instr.Opcode, len(co.Instructions))
	for i, in := range co.Instructions {
		ops[i] = in.Op
	}
	return ops
}

// S1 (spec §8): `x = 5` -> module stream is targeted_file, load_const,
// store_name, pop_top.
func TestCompile_SimpleAssignment(t *testing.T) {
	_, module := compilePython(t, "x = 5\n")

	got := opSeq(module)
	want := []instr.Opcode{
		instr.TARGETED_FILE,
		instr.LOAD_CONST,
		instr.STORE_NAME,
		instr.POP_TOP,
	}
	if len(got) != len(want) {
		t.Fatalf("opcode sequence length: got %v want %v", got, want)
	}
	for i, op := range want {
		if got[i] != op {
			t.Fatalf("opcode[%d] = %s, want %s (full: %v)", i, got[i], op, got)
		}
	}

	load := module.Instructions[1]
	if load.Arg.Kind != instr.ArgCategory || load.Arg.Str != "INTEGER" {
		t.Fatalf("expected LOAD_CONST(INTEGER), got %+v", load.Arg)
	}
}

// Boundary property 10: a file with only a comment yields a single module
// Code Object whose stream is TARGETED_FILE, RETURN_CONST.
func TestCompile_EmptyFileYieldsTargetedFileAndReturnConst(t *testing.T) {
	_, module := compilePython(t, "# just a comment\n")

	got := opSeq(module)
	want := []instr.Opcode{instr.TARGETED_FILE, instr.RETURN_CONST}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("opcodes = %v, want %v", got, want)
	}
}

// S3-shaped: `import os` then `os.system("rm -rf /")` must resolve os to a
// global name, and "rm -rf /" must classify as STRING_BASH, not verbatim.
func TestCompile_ImportAndSystemCall(t *testing.T) {
	_, module := compilePython(t, "import os\nos.system(\"rm -rf /\")\n")

	got := opSeq(module)
	mustContainInOrder(t, got, []instr.Opcode{
		instr.IMPORT_NAME,
		instr.STORE_NAME,
		instr.LOAD_NAME,
		instr.LOAD_ATTR,
		instr.LOAD_CONST,
		instr.CALL,
	})

	var sawBash bool
	for _, in := range module.Instructions {
		if in.Op == instr.LOAD_CONST && in.Arg.Kind == instr.ArgCategory && in.Arg.Str == "STRING_BASH" {
			sawBash = true
		}
		if in.Op == instr.LOAD_CONST && in.Arg.Kind == instr.ArgString && in.Arg.Str == "rm -rf /" {
			t.Fatalf("shell command leaked verbatim into the instruction stream instead of being classified")
		}
	}
	if !sawBash {
		t.Fatalf("expected a STRING_BASH category token among %v", module.Instructions)
	}
}

// spec §4.2 rule 2: a depth-0 function def becomes a separate Code Object,
// referenced from the enclosing stream via MAKE_FUNCTION + STORE_*.
func TestCompile_TopLevelFunctionBecomesSeparateCodeObject(t *testing.T) {
	arena, module := compilePython(t, "def f():\n    return 1\n")

	if len(arena.All()) != 2 {
		t.Fatalf("expected exactly 2 code objects (module + f), got %d", len(arena.All()))
	}

	var sawMakeFunction bool
	for _, in := range module.Instructions {
		if in.Op == instr.MAKE_FUNCTION {
			sawMakeFunction = true
			child := arena.Get(in.Arg.Ref)
			if child == nil || child.Name != "f" {
				t.Fatalf("MAKE_FUNCTION did not reference the child code object named f")
			}
		}
	}
	if !sawMakeFunction {
		t.Fatalf("expected a MAKE_FUNCTION instruction in the module stream")
	}

	if len(module.Children) != 1 {
		t.Fatalf("expected module to list exactly 1 child code object reference, got %d", len(module.Children))
	}
}

// spec §4.2 rule 2: a nested function (depth > 0) is inlined, not split out.
func TestCompile_NestedFunctionIsInlined(t *testing.T) {
	arena, _ := compilePython(t, "def outer():\n    def inner():\n        return 1\n    return inner\n")

	if len(arena.All()) != 2 {
		t.Fatalf("expected exactly 2 code objects (module + outer only), got %d", len(arena.All()))
	}
	outer := arena.Get(1)
	var sawMakeFunction bool
	for _, in := range outer.Instructions {
		if in.Op == instr.MAKE_FUNCTION {
			sawMakeFunction = true
		}
	}
	if sawMakeFunction {
		t.Fatalf("nested function must be inlined, not emitted as a separate code object")
	}
}

// spec §4.2 rule 3: class bodies compile to one Code Object; methods inline.
func TestCompile_ClassBodyIsSingleCodeObjectWithInlinedMethods(t *testing.T) {
	arena, module := compilePython(t, "class C:\n    def m(self):\n        return 1\n")

	if len(arena.All()) != 2 {
		t.Fatalf("expected exactly 2 code objects (module + class C), got %d", len(arena.All()))
	}

	var sawMakeClass bool
	for _, in := range module.Instructions {
		if in.Op == instr.MAKE_CLASS {
			sawMakeClass = true
		}
	}
	if !sawMakeClass {
		t.Fatalf("expected MAKE_CLASS in the module stream")
	}
}

// spec §4.2 rule 5 / §8 property 5: KW_NAMES carries the ordered keyword
// list and always immediately precedes CALL, whose argument is the
// positional count.
func TestCompile_KeywordArgumentOrdering(t *testing.T) {
	_, module := compilePython(t, "f(1, 2, shell=True, cwd=\"/tmp\")\n")

	var kwIdx, callIdx = -1, -1
	var kwNames []string
	var positional int64 = -1
	for i, in := range module.Instructions {
		if in.Op == instr.KW_NAMES {
			kwIdx = i
			kwNames = in.Arg.KWNames
		}
		if in.Op == instr.CALL {
			callIdx = i
			positional = in.Arg.Int
		}
	}

	if kwIdx == -1 || callIdx == -1 {
		t.Fatalf("expected both KW_NAMES and CALL, got %v", opSeq(module))
	}
	if callIdx != kwIdx+1 {
		t.Fatalf("CALL must immediately follow KW_NAMES: kw at %d, call at %d", kwIdx, callIdx)
	}
	if len(kwNames) != 2 || kwNames[0] != "shell" || kwNames[1] != "cwd" {
		t.Fatalf("unexpected keyword name ordering: %v", kwNames)
	}
	if positional != 2 {
		t.Fatalf("expected positional count 2, got %d", positional)
	}
}

// spec §4.3 / §8 property 4: short strings are verbatim-lowercased; long
// strings are never emitted verbatim.
func TestCompile_ShortStringVerbatimLongStringCategorized(t *testing.T) {
	_, module := compilePython(t, "a = \"Hi\"\nb = \"this string is definitely longer than fifteen characters\"\n")

	var sawShort, sawLongVerbatim, sawLongCategory bool
	for _, in := range module.Instructions {
		if in.Op != instr.LOAD_CONST {
			continue
		}
		switch in.Arg.Kind {
		case instr.ArgString:
			if in.Arg.Str == "hi" {
				sawShort = true
			}
			if len(in.Arg.Str) >= 15 {
				sawLongVerbatim = true
			}
		case instr.ArgCategory:
			if in.Arg.Str == "STRING_M" || in.Arg.Str == "STRING_L" {
				sawLongCategory = true
			}
		}
	}
	if !sawShort {
		t.Fatalf("expected short string literal 'hi' verbatim")
	}
	if sawLongVerbatim {
		t.Fatalf("a long string literal leaked verbatim")
	}
	if !sawLongCategory {
		t.Fatalf("expected the long string to be bucketed into a size category")
	}
}

// spec §3 invariant: every jump target refers to a valid instruction index
// within the same Code Object's stream.
func TestCompile_JumpTargetsAreValid(t *testing.T) {
	src := "def f(xs):\n    for x in xs:\n        if x:\n            continue\n        else:\n            break\n    while True:\n        pass\n"
	arena, _ := compilePython(t, src)

	if !arena.ValidateJumps() {
		for _, co := range arena.All() {
			for i, in := range co.Instructions {
				if in.Jump >= 0 && in.Jump >= len(co.Instructions) {
					t.Fatalf("code object %q instruction %d has out-of-range jump target %d (len %d)", co.Name, i, in.Jump, len(co.Instructions))
				}
			}
		}
		t.Fatalf("ValidateJumps reported a failure but no offending instruction was found")
	}
}

// spec §8 property 1: compiling the same source twice yields the same number
// of Code Objects and the same module stream (opcode and argument kind at
// every position).
func TestCompile_DeterministicAcrossRuns(t *testing.T) {
	src := "def f(a, b):\n    return a + b\n"

	arena1, m1 := compilePython(t, src)
	arena2, m2 := compilePython(t, src)

	if len(arena1.All()) != len(arena2.All()) {
		t.Fatalf("arena object counts differ across runs: %d vs %d", len(arena1.All()), len(arena2.All()))
	}
	if len(m1.Instructions) != len(m2.Instructions) {
		t.Fatalf("module instruction counts differ across runs")
	}
	for i := range m1.Instructions {
		a, b := m1.Instructions[i], m2.Instructions[i]
		if a.Op != b.Op || a.Arg.Kind != b.Arg.Kind {
			t.Fatalf("instruction %d differs across runs: %+v vs %+v", i, a, b)
		}
	}
}

// Compiling the teacher/test fixture twice with cosmetic differences only
// (extra blank lines, a trailing comment) should still yield the same
// opcode shape for the function body.
func TestCompile_CosmeticDifferencesDoNotChangeOpcodeShape(t *testing.T) {
	arena1, _ := compilePython(t, "def f(a, b):\n    return a + b\n")
	arena2, _ := compilePython(t, "def f(a, b):\n\n    return a + b  # trailing comment\n")

	fn1 := arena1.Get(1)
	fn2 := arena2.Get(1)
	if fn1 == nil || fn2 == nil {
		t.Fatalf("expected a function child code object in both arenas")
	}
	if len(fn1.Instructions) != len(fn2.Instructions) {
		t.Fatalf("opcode shape differs: %v vs %v", opSeq(fn1), opSeq(fn2))
	}
	for i := range fn1.Instructions {
		if fn1.Instructions[i].Op != fn2.Instructions[i].Op {
			t.Fatalf("opcode[%d] differs: %s vs %s", i, fn1.Instructions[i].Op, fn2.Instructions[i].Op)
		}
	}
}

// S2 (spec §8): a plain reference to a module-level name from inside a
// top-level function (no enclosing function in between) resolves to
// LOAD_GLOBAL, not LOAD_NAME — it is not a closure.
func TestCompile_FunctionBodyReferencesModuleGlobal(t *testing.T) {
	arena, _ := compilePython(t, "import subprocess\n\n\ndef f():\n    subprocess.run(\"ls\", shell=True)\n")

	fn := arena.Get(1)
	if fn == nil {
		t.Fatalf("expected a child code object for f")
	}
	var sawLoadGlobal, sawLoadName bool
	for _, in := range fn.Instructions {
		if in.Op == instr.LOAD_GLOBAL && in.Arg.Kind == instr.ArgSymbol && in.Arg.Str == "subprocess" {
			sawLoadGlobal = true
		}
		if in.Op == instr.LOAD_NAME && in.Arg.Kind == instr.ArgSymbol && in.Arg.Str == "subprocess" {
			sawLoadName = true
		}
	}
	if !sawLoadGlobal {
		t.Fatalf("expected subprocess to resolve via LOAD_GLOBAL, got %v", fn.Instructions)
	}
	if sawLoadName {
		t.Fatalf("subprocess is a module global, not a closure: must not emit LOAD_NAME for it")
	}

	var sawBoolean bool
	for _, in := range fn.Instructions {
		if in.Op == instr.LOAD_CONST && in.Arg.Kind == instr.ArgCategory && in.Arg.Str == "BOOLEAN" {
			sawBoolean = true
		}
	}
	if !sawBoolean {
		t.Fatalf("expected shell=True to emit a BOOLEAN category token, got %v", fn.Instructions)
	}
}

// spec §4.2 rule 7's "otherwise" bucket: a nested function referencing an
// enclosing function's local (without global/nonlocal) is a true free
// variable and must resolve via LOAD_NAME, never LOAD_GLOBAL.
func TestCompile_NestedFunctionClosesOverEnclosingLocal(t *testing.T) {
	arena, _ := compilePython(t, "def outer():\n    total = 0\n\n    def inner():\n        return total\n    return inner()\n")

	outer := arena.Get(1)
	var sawLoadName, sawLoadGlobal bool
	for _, in := range outer.Instructions {
		if in.Op == instr.LOAD_NAME && in.Arg.Kind == instr.ArgSymbol && in.Arg.Str == "total" {
			sawLoadName = true
		}
		if in.Op == instr.LOAD_GLOBAL && in.Arg.Kind == instr.ArgSymbol && in.Arg.Str == "total" {
			sawLoadGlobal = true
		}
	}
	if !sawLoadName {
		t.Fatalf("expected the closure over outer's local 'total' to resolve via LOAD_NAME, got %v", outer.Instructions)
	}
	if sawLoadGlobal {
		t.Fatalf("a closure over an enclosing function's local must not resolve via LOAD_GLOBAL")
	}
}

// An explicit `nonlocal` declaration is rule 7's other route into the
// "otherwise" bucket, distinct from `global`: it must also emit
// LOAD_NAME/STORE_NAME, not LOAD_GLOBAL/STORE_GLOBAL.
func TestCompile_NonlocalDeclarationUsesNameOpcodes(t *testing.T) {
	arena, _ := compilePython(t, "def outer():\n    count = 0\n\n    def inner():\n        nonlocal count\n        count = count + 1\n    inner()\n    return count\n")

	outer := arena.Get(1)
	var sawStoreName, sawStoreGlobal bool
	for _, in := range outer.Instructions {
		if in.Op == instr.STORE_NAME && in.Arg.Kind == instr.ArgSymbol && in.Arg.Str == "count" {
			sawStoreName = true
		}
		if in.Op == instr.STORE_GLOBAL && in.Arg.Kind == instr.ArgSymbol && in.Arg.Str == "count" {
			sawStoreGlobal = true
		}
	}
	if !sawStoreName {
		t.Fatalf("expected nonlocal count = ... to emit STORE_NAME, got %v", outer.Instructions)
	}
	if sawStoreGlobal {
		t.Fatalf("nonlocal must not be treated the same as global: got a STORE_GLOBAL for count")
	}
}

func mustContainInOrder(t *testing.T, got []instr.Opcode, want []instr.Opcode) {
	t.Helper()
	idx := 0
	for _, op := range got {
		if idx < len(want) && op == want[idx] {
			idx++
		}
	}
	if idx != len(want) {
		t.Fatalf("expected opcodes %v to appear in order within %v", want, got)
	}
}
