// Package classifier implements the Classifier Driver (spec §2.8): the
// interface to the opaque, pre-trained sequence-scoring model, plus the
// memoization cache and batching gate around it. The model itself is out of
// scope (spec §1 "Non-goals": "The classifier itself is treated as an
// opaque scoring oracle over token sequences") — Scorer is the seam a real
// model client plugs into; HeuristicScorer is a deterministic stand-in
// grounded on the teacher's guardian/heuristic.go rule+signal+confidence
// pattern, generalized from raw command text to category-token sequences.
package classifier

import "context"

// Signal names one rule that fired while scoring a token sequence, kept for
// report-building explainability the same way the teacher's heuristic
// provider attaches a human-readable Description to every match.
type Signal struct {
	Category   string
	Confidence float64
}

// Scorer reduces one Scan Object's token sequence to a single maliciousness
// score in [0,1] (spec §3, §4.5). Implementations may block (spec §5:
// "the model scoring call may block") and must be safe for concurrent use
// by the worker pool.
type Scorer interface {
	Score(ctx context.Context, tokens []string) (score float64, signals []Signal, err error)
}

// weightedRule is one token-presence rule contributing to the heuristic
// score, mirroring the teacher's heuristicRule{signal, match, escalate}
// shape but matching against a token set instead of a regex over raw text.
type weightedRule struct {
	category string
	tokens   []string // any of these tokens present triggers the rule
	weight   float64
}

// HeuristicScorer is a deterministic, explainable Scorer that weighs the
// presence of security-relevant category tokens — the same activity
// categories the Report Aggregator surfaces (spec §4.5) — without calling
// any external model. It exists so this repository is runnable end-to-end
// without a live model endpoint; a production deployment swaps it for a
// Scorer backed by the real pre-trained classifier.
type HeuristicScorer struct {
	rules []weightedRule
}

func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{rules: buildRules()}
}

func buildRules() []weightedRule {
	return []weightedRule{
		{category: "dynamic code execution", tokens: []string{"dynamic code execution"}, weight: 0.35},
		{category: "process management", tokens: []string{"process management"}, weight: 0.30},
		{category: "insecure shell payload", tokens: []string{"string_bash"}, weight: 0.30},
		{category: "insecure network transport", tokens: []string{"string_url_insecure", "string_insecure_protocol"}, weight: 0.20},
		{category: "filesystem destructive op", tokens: []string{"filesystem access"}, weight: 0.10},
		{category: "encoded payload", tokens: []string{"string_base64", "string_hex"}, weight: 0.15},
		{category: "deserialization", tokens: []string{"deserialization"}, weight: 0.20},
		{category: "package installation and execution", tokens: []string{"package installation and execution"}, weight: 0.20},
		{category: "sql construction", tokens: []string{"string_sql"}, weight: 0.15},
		{category: "embedded source", tokens: []string{"string_code"}, weight: 0.10},
		{category: "boolean shell flag", tokens: []string{"true"}, weight: 0.05},
	}
}

// Score sums each rule's weight once, regardless of how many times its
// tokens recur, then clamps to [0,1]. Determinism (spec §8, property 1)
// falls straight out of the rule table being frozen data and the input
// token slice being scanned once per rule, in a fixed order.
func (h *HeuristicScorer) Score(_ context.Context, tokens []string) (float64, []Signal, error) {
	present := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		present[t] = true
	}

	var score float64
	var signals []Signal
	for _, r := range h.rules {
		for _, t := range r.tokens {
			if present[t] {
				score += r.weight
				signals = append(signals, Signal{Category: r.category, Confidence: r.weight})
				break
			}
		}
	}
	if score > 1 {
		score = 1
	}
	return score, signals, nil
}
