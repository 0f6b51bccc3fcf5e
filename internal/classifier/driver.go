package classifier

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Driver owns serialization around a Scorer: a bounded LRU memoization
// cache keyed by instruction-hash (so re-scanning an unchanged file in a
// long-lived process skips the model entirely) and a rate-limited batching
// gate (spec §5: "Model scoring is serialized through a rate-limited gate
// that batches requests up to a configured window; the compiler never
// blocks on the model."). Callers treat Driver.Score as one synchronous
// blocking call, exactly like the teacher's provider interface.
type Driver struct {
	scorer Scorer
	cache  *lru.Cache[string, cachedScore]
	gate   *gate
}

type cachedScore struct {
	score   float64
	signals []Signal
}

// NewDriver wires scorer behind a cacheSize-entry LRU and a batching window
// of at most batchWindow between dispatches (batchSize 0 or batchWindow 0
// disables batching and scores immediately).
func NewDriver(scorer Scorer, cacheSize int, batchSize int, batchWindow time.Duration) (*Driver, error) {
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	cache, err := lru.New[string, cachedScore](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Driver{
		scorer: scorer,
		cache:  cache,
		gate:   newGate(scorer, batchSize, batchWindow),
	}, nil
}

// Score returns the cached score for hash if present, otherwise scores
// tokens through the batching gate and caches the result.
func (d *Driver) Score(ctx context.Context, hash string, tokens []string) (float64, []Signal, error) {
	if cached, ok := d.cache.Get(hash); ok {
		return cached.score, cached.signals, nil
	}
	score, signals, err := d.gate.score(ctx, tokens)
	if err != nil {
		return 0, nil, err
	}
	d.cache.Add(hash, cachedScore{score: score, signals: signals})
	return score, signals, nil
}

// gate batches concurrent score requests into windows, matching spec §5's
// "rate-limited gate that batches requests up to a configured window"
// without ever blocking the compiler itself (the gate only sits between the
// Classifier Driver and the scoring oracle).
type gate struct {
	scorer      Scorer
	batchSize   int
	batchWindow time.Duration

	mu      sync.Mutex
	pending []pendingRequest
	timer   *time.Timer
}

type pendingRequest struct {
	tokens []string
	result chan<- scoreResult
}

type scoreResult struct {
	score   float64
	signals []Signal
	err     error
}

func newGate(scorer Scorer, batchSize int, batchWindow time.Duration) *gate {
	return &gate{scorer: scorer, batchSize: batchSize, batchWindow: batchWindow}
}

func (g *gate) score(ctx context.Context, tokens []string) (float64, []Signal, error) {
	if g.batchSize <= 1 || g.batchWindow <= 0 {
		score, signals, err := g.scorer.Score(ctx, tokens)
		return score, signals, err
	}

	result := make(chan scoreResult, 1)
	g.mu.Lock()
	g.pending = append(g.pending, pendingRequest{tokens: tokens, result: result})
	flush := len(g.pending) >= g.batchSize
	if flush {
		batch := g.pending
		g.pending = nil
		if g.timer != nil {
			g.timer.Stop()
			g.timer = nil
		}
		go g.flush(ctx, batch)
	} else if g.timer == nil {
		g.timer = time.AfterFunc(g.batchWindow, func() {
			g.mu.Lock()
			batch := g.pending
			g.pending = nil
			g.timer = nil
			g.mu.Unlock()
			g.flush(ctx, batch)
		})
	}
	g.mu.Unlock()

	select {
	case r := <-result:
		return r.score, r.signals, r.err
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

// flush scores every request in batch independently; a real model client
// would issue one batched inference call here instead.
func (g *gate) flush(ctx context.Context, batch []pendingRequest) {
	for _, req := range batch {
		score, signals, err := g.scorer.Score(ctx, req.tokens)
		req.result <- scoreResult{score: score, signals: signals, err: err}
	}
}
