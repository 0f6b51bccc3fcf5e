package classifier

import (
	"context"
	"testing"
	"time"
)

func TestHeuristicScorer_Deterministic(t *testing.T) {
	h := NewHeuristicScorer()
	tokens := []string{"load_const", "dynamic code execution", "string_bash"}

	s1, sig1, err := h.Score(context.Background(), tokens)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	s2, sig2, err := h.Score(context.Background(), tokens)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if s1 != s2 {
		t.Fatalf("scores differ across identical calls: %v vs %v", s1, s2)
	}
	if len(sig1) != len(sig2) {
		t.Fatalf("signal counts differ across identical calls: %d vs %d", len(sig1), len(sig2))
	}
}

func TestHeuristicScorer_CleanTokensScoreZero(t *testing.T) {
	h := NewHeuristicScorer()
	score, signals, err := h.Score(context.Background(), []string{"load_const", "integer", "return_value"})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if score != 0 {
		t.Fatalf("expected zero score for a benign token sequence, got %v", score)
	}
	if len(signals) != 0 {
		t.Fatalf("expected no signals for a benign token sequence, got %v", signals)
	}
}

func TestHeuristicScorer_ScoreClampedToOne(t *testing.T) {
	h := NewHeuristicScorer()
	tokens := []string{
		"dynamic code execution", "process management", "string_bash",
		"string_url_insecure", "filesystem access", "string_base64",
		"deserialization", "package installation and execution",
		"string_sql", "string_code", "true",
	}
	score, _, err := h.Score(context.Background(), tokens)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if score != 1 {
		t.Fatalf("expected score clamped to 1 when every rule fires, got %v", score)
	}
}

func TestHeuristicScorer_EachRuleCountsOnceRegardlessOfRepeats(t *testing.T) {
	h := NewHeuristicScorer()
	once, _, _ := h.Score(context.Background(), []string{"string_bash"})
	repeated, _, _ := h.Score(context.Background(), []string{"string_bash", "string_bash", "string_bash"})
	if once != repeated {
		t.Fatalf("expected repeated occurrences of the same rule's token to not inflate the score: %v vs %v", once, repeated)
	}
}

type stubScorer struct {
	score   float64
	signals []Signal
	calls   int
}

func (s *stubScorer) Score(_ context.Context, _ []string) (float64, []Signal, error) {
	s.calls++
	return s.score, s.signals, nil
}

func TestDriver_CachesByHash(t *testing.T) {
	stub := &stubScorer{score: 0.42}
	driver, err := NewDriver(stub, 10, 0, 0)
	if err != nil {
		t.Fatalf("NewDriver() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		score, _, err := driver.Score(context.Background(), "same-hash", []string{"x"})
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		if score != 0.42 {
			t.Fatalf("Score() = %v, want 0.42", score)
		}
	}
	if stub.calls != 1 {
		t.Fatalf("expected the underlying scorer to be called exactly once for a repeated hash, got %d calls", stub.calls)
	}
}

func TestDriver_DifferentHashesEachScoreOnce(t *testing.T) {
	stub := &stubScorer{score: 0.1}
	driver, err := NewDriver(stub, 10, 0, 0)
	if err != nil {
		t.Fatalf("NewDriver() error = %v", err)
	}

	driver.Score(context.Background(), "hash-a", []string{"a"})
	driver.Score(context.Background(), "hash-b", []string{"b"})
	if stub.calls != 2 {
		t.Fatalf("expected 2 underlying scorer calls for 2 distinct hashes, got %d", stub.calls)
	}
}

func TestDriver_DefaultsCacheSizeWhenNonPositive(t *testing.T) {
	stub := &stubScorer{score: 0}
	if _, err := NewDriver(stub, 0, 0, 0); err != nil {
		t.Fatalf("NewDriver() with cacheSize=0 should default rather than error, got %v", err)
	}
	if _, err := NewDriver(stub, -5, 0, 0); err != nil {
		t.Fatalf("NewDriver() with negative cacheSize should default rather than error, got %v", err)
	}
}

func TestDriver_BatchingFlushesOnSize(t *testing.T) {
	stub := &stubScorer{score: 0.77}
	driver, err := NewDriver(stub, 10, 2, time.Minute)
	if err != nil {
		t.Fatalf("NewDriver() error = %v", err)
	}

	done := make(chan float64, 2)
	for i := 0; i < 2; i++ {
		go func(hash string) {
			score, _, _ := driver.Score(context.Background(), hash, []string{"tok"})
			done <- score
		}([]string{"hash-1", "hash-2"}[i])
	}

	timeout := time.After(2 * time.Second)
	for i := 0; i < 2; i++ {
		select {
		case score := <-done:
			if score != 0.77 {
				t.Fatalf("batched Score() = %v, want 0.77", score)
			}
		case <-timeout:
			t.Fatalf("batched scoring did not complete within the deadline")
		}
	}
}
