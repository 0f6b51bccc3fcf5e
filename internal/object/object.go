// Package object implements the Object Assembler (spec §2.7): it wraps a
// compiled Code Object with file-level metadata and lazily, memoized,
// derives the data downstream consumers need (projected tokens, hash,
// score) without recomputing it across repeated report renders.
package object

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/scanforge/sourceguard/internal/instr"
	"github.com/scanforge/sourceguard/internal/token"
)

// Excerpt is the source line range a Scan Object was compiled from.
type Excerpt struct {
	StartLine int
	EndLine   int
}

// ScanObject wraps one Code Object for downstream consumption (spec §3).
// Tokens and Hash are computed once, under sync.Once, the first time they
// are asked for — the Lifecycle note in spec §3 calls this out explicitly
// ("memoize derived data lazily"); Score is recorded by SetScore.
type ScanObject struct {
	Path     string
	Language string
	Name     string
	Excerpt  Excerpt
	Warnings int

	arena *instr.Arena
	co    *instr.CodeObject
	proj  *token.Projector

	tokensOnce sync.Once
	tokens     []string

	hashOnce sync.Once
	hashHex  string

	mu    sync.Mutex
	score *float64
}

// New wraps co for the given arena, to be lazily projected/hashed with proj.
func New(arena *instr.Arena, co *instr.CodeObject, proj *token.Projector) *ScanObject {
	return &ScanObject{
		Path:     co.Path,
		Language: co.Language,
		Name:     co.Name,
		Excerpt:  Excerpt{StartLine: co.StartLine, EndLine: co.EndLine},
		Warnings: len(co.Warnings),
		arena:    arena,
		co:       co,
		proj:     proj,
	}
}

// Tokens returns the memoized, order-preserving projected token sequence.
func (s *ScanObject) Tokens() []string {
	s.tokensOnce.Do(func() {
		s.tokens = s.proj.ProjectCodeObject(s.co, s.arena)
	})
	return s.tokens
}

// Hash returns the SHA-256 hex digest over the projected token sequence,
// used for instruction-hash deduplication in the Report Aggregator (spec
// §3: "SHA-256 over the token sequence"). This is distinct from the
// compiler's own Merkle-like instruction hash (package instr), which is
// taken over the raw instruction stream rather than its token projection;
// both are deterministic, but a Scan Object is deduplicated on the token
// view since that is what the classifier actually sees.
func (s *ScanObject) Hash() string {
	s.hashOnce.Do(func() {
		sum := sha256.Sum256([]byte(strings.Join(s.Tokens(), " ")))
		s.hashHex = hex.EncodeToString(sum[:])
	})
	return s.hashHex
}

// SetScore records this object's maliciousness score once the Classifier
// Driver has scored its token window (spec §3: "optional maliciousness
// score ∈ [0,1]").
func (s *ScanObject) SetScore(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.score = &v
}

func (s *ScanObject) Score() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.score == nil {
		return 0, false
	}
	return *s.score, true
}

// TokenCount is the count of ML subword tokens (spec §3). Until the
// classifier's own tokenizer has run, this reports the projector's own
// token count as the best available proxy.
func (s *ScanObject) TokenCount() int { return len(s.Tokens()) }
