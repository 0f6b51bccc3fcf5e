package instr

import (
	"crypto/sha256"
	"encoding/binary"
)

// Hash computes the Merkle-like fingerprint of the Code Object named by id:
// for each instruction, the opcode identifier followed by a typed encoding
// of its argument, excluding source line numbers; code-object-reference
// arguments are substituted with the referenced child's own hash. This is
// the one place the spec normatively pins SHA-256 (spec §4.2 "Hashing");
// crypto/sha256 fed a deterministic byte encoding needs nothing a
// third-party canonical-encoding library would add (see DESIGN.md).
//
// Hashing is pure and memoized per Arena so re-hashing a large tree of
// Scan Objects during dedup (§4.5) never recomputes a child's hash twice.
type Hasher struct {
	arena *Arena
	memo  map[CodeObjectID][32]byte
}

func NewHasher(arena *Arena) *Hasher {
	return &Hasher{arena: arena, memo: make(map[CodeObjectID][32]byte)}
}

func (h *Hasher) Hash(id CodeObjectID) [32]byte {
	if cached, ok := h.memo[id]; ok {
		return cached
	}
	co := h.arena.Get(id)
	if co == nil {
		return [32]byte{}
	}

	digest := sha256.New()
	for _, ins := range co.Instructions {
		digest.Write([]byte(ins.Op))
		digest.Write(h.encodeArg(ins.Arg))
	}

	var sum [32]byte
	copy(sum[:], digest.Sum(nil))
	h.memo[id] = sum
	return sum
}

func (h *Hasher) encodeArg(a Arg) []byte {
	var buf []byte
	buf = append(buf, []byte(a.Kind)...)
	buf = append(buf, 0)

	switch a.Kind {
	case ArgNone:
		// no payload
	case ArgInteger:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(a.Int))
		buf = append(buf, b[:]...)
	case ArgFloat:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(int64(a.Float*1e9)))
		buf = append(buf, b[:]...)
	case ArgBoolean:
		if a.Bool {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case ArgString, ArgSymbol, ArgCategory:
		buf = append(buf, []byte(a.Str)...)
	case ArgCodeObjectRef:
		childHash := h.Hash(a.Ref)
		buf = append(buf, childHash[:]...)
	case ArgKWNameList:
		for _, name := range a.KWNames {
			buf = append(buf, []byte(name)...)
			buf = append(buf, 0)
		}
	}
	return buf
}

// HashAll returns the hash of every Code Object in the arena, keyed by ID.
func (h *Hasher) HashAll() map[CodeObjectID][32]byte {
	out := make(map[CodeObjectID][32]byte, len(h.arena.objects))
	for _, co := range h.arena.objects {
		out[co.ID] = h.Hash(co.ID)
	}
	return out
}
