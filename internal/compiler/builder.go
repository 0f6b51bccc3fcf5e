package compiler

import (
	"github.com/scanforge/sourceguard/internal/instr"
	"github.com/scanforge/sourceguard/internal/scanerr"
)

// builder accumulates the instruction stream for one Code Object under
// construction. Jump targets are recorded as builder-local label IDs and
// patched to real instruction indices in a second pass (spec §4.2, rule 8;
// Design Notes §9's "explicit work stack, not deep recursion" applies to the
// AST walk, not this linear builder).
type builder struct {
	co       *instr.CodeObject
	labels   map[int]int // label id -> instruction index, once defined
	pending  map[int][]int // label id -> instruction indices awaiting that label
	nextID   int
}

func newBuilder(co *instr.CodeObject) *builder {
	return &builder{
		co:      co,
		labels:  make(map[int]int),
		pending: make(map[int][]int),
	}
}

// emit appends an instruction and returns its index.
func (b *builder) emit(op instr.Opcode, arg instr.Arg, line int) int {
	b.co.Instructions = append(b.co.Instructions, instr.NewInstruction(op, arg, line))
	return len(b.co.Instructions) - 1
}

// newLabel allocates a fresh, as-yet-unplaced jump label.
func (b *builder) newLabel() int {
	b.nextID++
	return b.nextID
}

// mark binds label to the next instruction that will be emitted.
func (b *builder) mark(label int) {
	b.labels[label] = len(b.co.Instructions)
}

// markHere binds label to the current end of the stream (used after the last
// instruction of a block has already been emitted).
func (b *builder) markHere(label int) {
	b.labels[label] = len(b.co.Instructions)
}

// emitJump emits a jump-carrying instruction targeting label, deferring
// resolution to finish().
func (b *builder) emitJump(op instr.Opcode, label int, line int) int {
	idx := b.emit(op, instr.NoArg(), line)
	b.pending[label] = append(b.pending[label], idx)
	return idx
}

// finish patches every deferred jump against its resolved label and
// validates that all targets landed inside the stream (spec §3 invariant 2).
func (b *builder) finish() []scanerr.Warning {
	var warnings []scanerr.Warning
	for label, sites := range b.pending {
		target, ok := b.labels[label]
		if !ok {
			// Label never marked: treat the jump as a no-op fallthrough and warn.
			for _, idx := range sites {
				b.co.Instructions[idx].Jump = idx + 1
			}
			warnings = append(warnings, scanerr.Warning{
				Kind:    scanerr.CompileTruncation,
				Message: "jump label never resolved; degraded to fallthrough",
			})
			continue
		}
		if target >= len(b.co.Instructions) {
			target = len(b.co.Instructions) - 1
			if target < 0 {
				target = 0
			}
		}
		for _, idx := range sites {
			b.co.Instructions[idx].Jump = target
		}
	}
	return warnings
}
