package report

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scanforge/sourceguard/internal/classify"
	"github.com/scanforge/sourceguard/internal/classifier"
	"github.com/scanforge/sourceguard/internal/instr"
	"github.com/scanforge/sourceguard/internal/object"
	"github.com/scanforge/sourceguard/internal/token"
)

func testTables() *token.Tables {
	return &token.Tables{
		Activities: map[string]bool{"filesystem access": true, "network http request": true},
		Functions:  map[string]string{"open": "filesystem access", "urlopen": "network http request"},
	}
}

// newFinding builds a Scan Object whose single instruction calls fn (so its
// projected token sequence carries fn's category token when one exists) and
// feeds it through Add, returning the object's hash for lookup.
func newFinding(t *testing.T, agg *Aggregator, tables *token.Tables, fn string, score float64) string {
	t.Helper()
	proj := token.NewProjector(tables, classify.DefaultConfig())
	arena := instr.NewArena()
	co := arena.New("f", "a.py", "python", 0)
	co.Instructions = []instr.Instruction{
		instr.NewInstruction(instr.LOAD_GLOBAL, instr.SymbolArg(fn), 1),
		instr.NewInstruction(instr.CALL, instr.IntArg(0), 1),
		instr.NewInstruction(instr.RETURN_VALUE, instr.NoArg(), 2),
	}
	obj := object.New(arena, co, proj)
	signals := []classifier.Signal{{Category: "totally_unrelated_signal_name", Confidence: 1}}
	agg.Add(obj, score, signals)
	return obj.Hash()
}

func TestFinish_ActivitiesComeFromTokensNotSignalNames(t *testing.T) {
	tables := testTables()
	agg := NewAggregator("/scan", 0.7, "1.0.0", tables)
	newFinding(t, agg, tables, "open", 0.9)

	r := agg.Finish("deadbeef")
	require.Equal(t, []string{"filesystem access"}, r.Activities,
		"activities must come from the object's own token sequence, not the scorer's signal names")
}

func TestFinish_BenignObjectsNeverContributeActivities(t *testing.T) {
	tables := testTables()
	agg := NewAggregator("/scan", 0.7, "1.0.0", tables)
	newFinding(t, agg, tables, "open", 0.1) // benign: below threshold

	r := agg.Finish("deadbeef")
	require.Empty(t, r.Activities)
	require.Equal(t, "clean", r.Verdict)
}

func TestFinish_RaisingScoreNeverFlipsMaliciousBackToClean(t *testing.T) {
	tables := testTables()
	for _, threshold := range []float64{0.5, 0.7, 0.9} {
		low := NewAggregator("/scan", threshold, "1.0.0", tables)
		newFinding(t, low, tables, "open", threshold)
		lowReport := low.Finish("deadbeef")

		high := NewAggregator("/scan", threshold, "1.0.0", tables)
		newFinding(t, high, tables, "open", 0.95)
		highReport := high.Finish("deadbeef")

		if lowReport.Verdict == "malicious" {
			require.Equal(t, "malicious", highReport.Verdict,
				"threshold %v: raising the score must not flip verdict back to clean", threshold)
		}
	}
}

func TestAdd_DedupKeepsHighestScoreAndIsIdempotent(t *testing.T) {
	tables := testTables()
	proj := token.NewProjector(tables, classify.DefaultConfig())
	arena := instr.NewArena()
	co := arena.New("f", "a.py", "python", 0)
	co.Instructions = []instr.Instruction{
		instr.NewInstruction(instr.LOAD_GLOBAL, instr.SymbolArg("open"), 1),
		instr.NewInstruction(instr.CALL, instr.IntArg(0), 1),
	}
	obj := object.New(arena, co, proj)

	agg := NewAggregator("/scan", 0.7, "1.0.0", tables)
	agg.Add(obj, 0.3, nil)
	agg.Add(obj, 0.3, nil) // same hash, same score: idempotent
	agg.Add(obj, 0.9, nil) // same hash, higher score: replaces

	r := agg.Finish("deadbeef")
	require.Len(t, r.Findings, 1, "dedup by hash must leave exactly one finding")
	require.Equal(t, 0.9, r.Findings[0].Score, "the higher score must win")
}

func TestFinish_ConfidenceIsMaxMaliciousOrInverseMinBenign(t *testing.T) {
	tables := testTables()

	agg := NewAggregator("/scan", 0.7, "1.0.0", tables)
	newFinding(t, agg, tables, "open", 0.02)
	r := agg.Finish("deadbeef")
	require.Equal(t, 0.98, r.Confidence, "confidence should be 1-minBenign when nothing is malicious")

	agg2 := NewAggregator("/scan", 0.7, "1.0.0", tables)
	newFinding(t, agg2, tables, "urlopen", 0.81)
	newFinding(t, agg2, tables, "open", 0.05)
	r2 := agg2.Finish("deadbeef")
	require.Equal(t, 0.81, r2.Confidence, "confidence should be the max malicious score")
}
