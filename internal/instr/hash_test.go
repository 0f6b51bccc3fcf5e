package instr

import "testing"

func TestHash_DeterministicAcrossCalls(t *testing.T) {
	arena := NewArena()
	co := arena.New("f", "a.py", "python", 0)
	co.Instructions = []Instruction{
		NewInstruction(LOAD_CONST, StringArg("hello"), 1),
		NewInstruction(RETURN_VALUE, NoArg(), 1),
	}

	h1 := NewHasher(arena).Hash(co.ID)
	h2 := NewHasher(arena).Hash(co.ID)
	if h1 != h2 {
		t.Fatalf("hash not deterministic across Hasher instances: %x != %x", h1, h2)
	}
}

func TestHash_IdentifierNameInsensitive(t *testing.T) {
	// Two Code Objects that differ only in their own name and in source line
	// numbers hash identically: the hash covers opcodes and arguments only.
	arena := NewArena()
	a := arena.New("alpha", "a.py", "python", 0)
	a.Instructions = []Instruction{
		NewInstruction(LOAD_CONST, CategoryArg("INTEGER"), 1),
		NewInstruction(RETURN_VALUE, NoArg(), 1),
	}
	b := arena.New("beta", "a.py", "python", 0)
	b.Instructions = []Instruction{
		NewInstruction(LOAD_CONST, CategoryArg("INTEGER"), 7),
		NewInstruction(RETURN_VALUE, NoArg(), 7),
	}

	h := NewHasher(arena)
	if h.Hash(a.ID) != h.Hash(b.ID) {
		t.Fatalf("hash differs for structurally identical code objects with different names/lines")
	}
}

func TestHash_SequenceSensitive(t *testing.T) {
	arena := NewArena()
	a := arena.New("a", "a.py", "python", 0)
	a.Instructions = []Instruction{
		NewInstruction(LOAD_CONST, IntArg(1), 1),
		NewInstruction(LOAD_CONST, IntArg(2), 1),
	}
	b := arena.New("b", "a.py", "python", 0)
	b.Instructions = []Instruction{
		NewInstruction(LOAD_CONST, IntArg(2), 1),
		NewInstruction(LOAD_CONST, IntArg(1), 1),
	}

	h := NewHasher(arena)
	if h.Hash(a.ID) == h.Hash(b.ID) {
		t.Fatalf("hash should differ when instruction order differs")
	}
}

func TestHash_ValueOrderSensitive(t *testing.T) {
	arena := NewArena()
	a := arena.New("a", "a.py", "python", 0)
	a.Instructions = []Instruction{NewInstruction(LOAD_CONST, IntArg(1), 1)}
	b := arena.New("b", "a.py", "python", 0)
	b.Instructions = []Instruction{NewInstruction(LOAD_CONST, IntArg(2), 1)}

	h := NewHasher(arena)
	if h.Hash(a.ID) == h.Hash(b.ID) {
		t.Fatalf("hash should differ for different argument values")
	}
}

func TestHash_CodeObjectRefFoldsChildHash(t *testing.T) {
	arena := NewArena()
	child1 := arena.New("inner", "a.py", "python", 1)
	child1.Instructions = []Instruction{NewInstruction(LOAD_CONST, IntArg(1), 2)}
	child2 := arena.New("inner2", "a.py", "python", 1)
	child2.Instructions = []Instruction{NewInstruction(LOAD_CONST, IntArg(2), 2)}

	parentA := arena.New("outer", "a.py", "python", 0)
	parentA.Instructions = []Instruction{NewInstruction(MAKE_FUNCTION, RefArg(child1.ID), 1)}
	parentB := arena.New("outer2", "a.py", "python", 0)
	parentB.Instructions = []Instruction{NewInstruction(MAKE_FUNCTION, RefArg(child2.ID), 1)}

	h := NewHasher(arena)
	if h.Hash(parentA.ID) == h.Hash(parentB.ID) {
		t.Fatalf("parent hash should reflect a difference in a referenced child's hash")
	}
}

func TestArena_ValidateJumps(t *testing.T) {
	arena := NewArena()
	co := arena.New("f", "a.py", "python", 0)
	co.Instructions = []Instruction{
		{Op: POP_JUMP_IF_FALSE, Arg: NoArg(), Line: 1, Jump: 2},
		{Op: NOP, Arg: NoArg(), Line: 2, Jump: -1},
		{Op: RETURN_VALUE, Arg: NoArg(), Line: 3, Jump: -1},
	}
	if !arena.ValidateJumps() {
		t.Fatalf("expected valid jump targets to pass validation")
	}

	co.Instructions[0].Jump = 99
	if arena.ValidateJumps() {
		t.Fatalf("expected out-of-range jump target to fail validation")
	}
}

func TestArena_GetOutOfRange(t *testing.T) {
	arena := NewArena()
	arena.New("f", "a.py", "python", 0)
	if arena.Get(-1) != nil {
		t.Fatalf("expected nil for negative id")
	}
	if arena.Get(5) != nil {
		t.Fatalf("expected nil for id past the end")
	}
}
