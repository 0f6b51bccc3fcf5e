// Package report implements the Report Aggregator (spec §4.5) and the
// Report data model (spec §3): deduplication by instruction-hash, threshold
// flagging, activity-set union, and overall verdict/confidence.
package report

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scanforge/sourceguard/internal/classifier"
	"github.com/scanforge/sourceguard/internal/object"
	"github.com/scanforge/sourceguard/internal/token"
)

// Finding is one scored Scan Object as surfaced in a Report.
type Finding struct {
	Path      string
	Language  string
	Name      string
	StartLine int
	EndLine   int
	Hash      string
	Score     float64
	Malicious bool
	Signals   []classifier.Signal

	// tokens is the object's own projected token sequence, kept only long
	// enough for Finish to compute the activity union against it (spec
	// §4.5: activities come from "malicious objects' token sequences", not
	// from whatever categories a given Scorer's signals happen to name).
	tokens []string
}

// Report is the top-level scan result (spec §3).
type Report struct {
	RunID       string
	InputPath   string
	StartedAt   string
	ElapsedSecs float64

	FilesDiscovered int
	SkippedFiles    []string
	FilesProcessed  int

	Findings          []Finding
	MaliciousFindings []Finding
	Activities        []string

	Verdict    string // "malicious", "clean", "inconclusive"
	Confidence float64
	Threshold  float64
	Version    string

	WarningCount int
}

// Aggregator implements spec §4.5: it collects scored Scan Objects, then
// produces a Report via Finish. Add and the Mark*/AddWarnings setters are
// called concurrently, once per in-flight file, from internal/scan's worker
// pool (spec §5), so every mutable field is guarded by mu.
type Aggregator struct {
	threshold   float64
	softwareVer string
	tables      *token.Tables
	inputPath   string
	startedAt   time.Time

	mu     sync.Mutex
	byHash map[string]Finding
	order  []string

	skippedFiles []string
	filesTotal   int
	filesDone    int
	warnings     int
	inconclusive bool
}

func NewAggregator(inputPath string, threshold float64, softwareVersion string, tables *token.Tables) *Aggregator {
	return &Aggregator{
		threshold:   threshold,
		softwareVer: softwareVersion,
		tables:      tables,
		inputPath:   inputPath,
		startedAt:   time.Now(),
		byHash:      make(map[string]Finding),
	}
}

func (a *Aggregator) MarkDiscovered(n int) { a.mu.Lock(); defer a.mu.Unlock(); a.filesTotal = n }
func (a *Aggregator) MarkSkipped(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.skippedFiles = append(a.skippedFiles, path)
}
func (a *Aggregator) MarkProcessed()    { a.mu.Lock(); defer a.mu.Unlock(); a.filesDone++ }
func (a *Aggregator) AddWarnings(n int) { a.mu.Lock(); defer a.mu.Unlock(); a.warnings += n }
func (a *Aggregator) MarkInconclusive() { a.mu.Lock(); defer a.mu.Unlock(); a.inconclusive = true }

// Add records one scored Scan Object, deduplicating by instruction-hash and
// keeping the highest score when a hash repeats (spec §4.5). Idempotent:
// adding the same object twice at the same score changes nothing (spec §8,
// property 8 — dedup is idempotent).
func (a *Aggregator) Add(obj *object.ScanObject, score float64, signals []classifier.Signal) {
	hash := obj.Hash()
	f := Finding{
		Path:      obj.Path,
		Language:  obj.Language,
		Name:      obj.Name,
		StartLine: obj.Excerpt.StartLine,
		EndLine:   obj.Excerpt.EndLine,
		Hash:      hash,
		Score:     score,
		Malicious: score >= a.threshold,
		Signals:   signals,
		tokens:    obj.Tokens(),
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	existing, ok := a.byHash[hash]
	if !ok {
		a.byHash[hash] = f
		a.order = append(a.order, hash)
		return
	}
	if f.Score > existing.Score {
		a.byHash[hash] = f
	}
}

// Finish sorts findings by (file path, start line) for stable reports (spec
// §5: "the Aggregator sorts final outputs by (file path, start line)"),
// computes the activity union, verdict, and confidence, and returns the
// completed Report.
func (a *Aggregator) Finish(modelRevisionShortHash string) Report {
	a.mu.Lock()
	findings := make([]Finding, 0, len(a.byHash))
	for _, h := range a.order {
		findings = append(findings, a.byHash[h])
	}
	skippedFiles, filesTotal, filesDone, warnings, inconclusive := a.skippedFiles, a.filesTotal, a.filesDone, a.warnings, a.inconclusive
	a.mu.Unlock()
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Path != findings[j].Path {
			return findings[i].Path < findings[j].Path
		}
		return findings[i].StartLine < findings[j].StartLine
	})

	var malicious []Finding
	activitySet := map[string]bool{}
	minBenign := 1.0
	maxMalicious := 0.0
	for _, f := range findings {
		if f.Malicious {
			malicious = append(malicious, f)
			if f.Score > maxMalicious {
				maxMalicious = f.Score
			}
			for _, t := range f.tokens {
				if a.tables != nil && a.tables.IsActivity(t) {
					activitySet[t] = true
				}
			}
		} else if f.Score < minBenign {
			minBenign = f.Score
		}
	}

	activities := make([]string, 0, len(activitySet))
	for act := range activitySet {
		activities = append(activities, act)
	}
	sort.Strings(activities)

	verdict := "clean"
	confidence := 1 - minBenign
	if len(findings) == 0 {
		confidence = 0
	}
	if len(malicious) > 0 {
		verdict = "malicious"
		confidence = maxMalicious
	}
	if inconclusive {
		verdict = "inconclusive"
	}

	return Report{
		RunID:             uuid.NewString(),
		InputPath:         a.inputPath,
		StartedAt:         a.startedAt.Format(time.RFC3339),
		ElapsedSecs:       time.Since(a.startedAt).Seconds(),
		FilesDiscovered:   filesTotal,
		SkippedFiles:      skippedFiles,
		FilesProcessed:    filesDone,
		Findings:          findings,
		MaliciousFindings: malicious,
		Activities:        activities,
		Verdict:           verdict,
		Confidence:        confidence,
		Threshold:         a.threshold,
		Version:           a.softwareVer + "+" + modelRevisionShortHash,
		WarningCount:      warnings,
	}
}
