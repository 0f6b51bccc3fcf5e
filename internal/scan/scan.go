// Package scan implements the top-level orchestration (spec §5): it
// discovers files under a root, fans work out across a bounded worker pool
// using golang.org/x/sync/errgroup (grounded on gooze-dev-gooze's
// workflow_pipeline.go collectMutations concurrency pattern from the
// example pack), and drives each file through Parser Adapter → AST-to-
// Instruction Compiler → Token Projector → Object Assembler → Classifier
// Driver before handing every resulting Scan Object to a shared Report
// Aggregator.
package scan

import (
	"context"
	"os"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/scanforge/sourceguard/internal/classifier"
	"github.com/scanforge/sourceguard/internal/classify"
	"github.com/scanforge/sourceguard/internal/compiler"
	"github.com/scanforge/sourceguard/internal/config"
	"github.com/scanforge/sourceguard/internal/lang"
	"github.com/scanforge/sourceguard/internal/logger"
	"github.com/scanforge/sourceguard/internal/object"
	"github.com/scanforge/sourceguard/internal/parseadapter"
	"github.com/scanforge/sourceguard/internal/report"
	"github.com/scanforge/sourceguard/internal/scanerr"
	"github.com/scanforge/sourceguard/internal/token"
	"github.com/scanforge/sourceguard/internal/unicode"
)

const softwareVersion = "0.1.0"

// Deps bundles the long-lived, thread-safe collaborators every file's
// pipeline run shares (spec §5 "Shared resources": "immutable after
// initialization and freely shared" for Tables/Classify, serialized access
// for the cache/log).
type Deps struct {
	Tables *token.Tables
	Driver *classifier.Driver
	Log    *logger.Logger
}

// Run scans root under cfg and returns the completed Report. It never
// returns a partial Report on a per-file failure — failures are recorded as
// skipped files or Code Object warnings (spec §7) — but does return an
// error for configuration or filesystem failures that make scanning root
// meaningless altogether.
func Run(ctx context.Context, root string, cfg config.Config, deps Deps) (report.Report, error) {
	runID := newRunID()
	deps.Log.ScanStarted(runID, root, cfg.Threshold, cfg.Extensions)

	ctx, cancel := context.WithTimeout(ctx, cfg.OverallDeadline)
	defer cancel()

	version := softwareVersion
	if deps.Tables != nil && deps.Tables.Version != "" {
		version += "-categories." + deps.Tables.Version
	}
	agg := report.NewAggregator(root, cfg.Threshold, version, deps.Tables)

	files, err := discoverFiles(root, cfg.Extensions, cfg.MaxWalkDepth)
	if err != nil {
		return report.Report{}, scanerr.New(scanerr.IOError, root, "failed to walk input path", err)
	}
	agg.MarkDiscovered(len(files))

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	proj := token.NewProjector(deps.Tables, classifyConfig(cfg))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, path := range files {
		path := path
		g.Go(func() error {
			scanOneFile(gctx, path, cfg, proj, deps, agg, runID)
			return nil
		})
	}
	_ = g.Wait() // scanOneFile never returns an error; per-file faults are recorded, not propagated

	r := agg.Finish(modelRevisionShortHash(deps))
	r.RunID = runID // same ID as the run_id on this scan's log lines
	return r, nil
}

// scanOneFile runs one file through the full pipeline under a per-file
// timeout, recording every outcome on agg and the audit log rather than
// letting any single file's failure affect the rest of the scan (spec §7:
// "a single file's parse failure degrades to a skip, never aborts the
// scan").
func scanOneFile(ctx context.Context, path string, cfg config.Config, proj *token.Projector, deps Deps, agg *report.Aggregator, runID string) {
	fctx, cancel := context.WithTimeout(ctx, cfg.PerFileTimeout)
	defer cancel()

	language := lang.Detect(path)
	source, err := os.ReadFile(path)
	if err != nil {
		agg.MarkSkipped(path)
		deps.Log.FileScanned(runID, logger.ScanEvent{Path: path, Err: err.Error()})
		return
	}

	tree, err := parseadapter.Parse(fctx, path, language, source)
	if err != nil {
		agg.MarkSkipped(path)
		deps.Log.FileScanned(runID, logger.ScanEvent{Path: path, Language: string(language), Err: err.Error()})
		return
	}
	defer tree.Close()

	arena, err := compiler.Compile(path, language, tree, compiler.Config{Classify: classifyConfig(cfg), MaxRecursionDepth: cfg.MaxRecursionDepth})
	if err != nil {
		agg.MarkSkipped(path)
		deps.Log.FileScanned(runID, logger.ScanEvent{Path: path, Language: string(language), Err: err.Error()})
		return
	}

	// Trojan-Source-style codepoint smuggling is checked once per file
	// against the raw bytes, independent of the token-sequence classifier
	// (spec §1 Non-goals never excludes this — it is a structural property
	// of the file, not a feature of the compiled instruction stream).
	unicodeThreats := unicode.Scan(string(source))

	warnings := 0
	maxScore := 0.0
	malicious := false
	for i, co := range arena.All() {
		obj := object.New(arena, co, proj)
		warnings += obj.Warnings

		score, signals, err := deps.Driver.Score(fctx, obj.Hash(), obj.Tokens())
		if err != nil {
			agg.MarkInconclusive()
			continue
		}

		if i == 0 && !unicodeThreats.Clean {
			for _, t := range unicodeThreats.Threats {
				signals = append(signals, classifier.Signal{Category: "unicode smuggling: " + t.Category, Confidence: 1.0})
				if t.Severity == "block" {
					score = 1.0
				}
			}
		}

		obj.SetScore(score)
		agg.Add(obj, score, signals)

		if score > maxScore {
			maxScore = score
		}
		if score >= cfg.Threshold {
			malicious = true
		}
	}

	agg.MarkProcessed()
	agg.AddWarnings(warnings)
	deps.Log.FileScanned(runID, logger.ScanEvent{
		Path:         path,
		Language:     string(language),
		ObjectCount:  len(arena.All()),
		WarningCount: warnings,
		MaxScore:     maxScore,
		Malicious:    malicious,
	})
}

func newRunID() string {
	return uuid.NewString()
}

func classifyConfig(cfg config.Config) classify.Config {
	return classify.Config{
		ShortLiteralThreshold: cfg.ShortLiteralThreshold,
		LargeIntegerThreshold: cfg.LargeIntegerThreshold,
	}
}

// modelRevisionShortHash names the scoring backend actually in use, folded
// into the Report's version string (spec §6: "<software-version>+<model-
// revision-short-hash>"). The heuristic stand-in has no model revision to
// report, so it contributes a fixed marker rather than a hash of nothing.
func modelRevisionShortHash(deps Deps) string {
	if deps.Driver == nil {
		return "none"
	}
	return "heuristic"
}
