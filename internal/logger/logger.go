// Package logger wires structured scan logging. It keeps the teacher's
// mutex-guarded single-writer AuditLogger shape and its redact-before-write
// habit (internal/redact), but swaps the teacher's hand-rolled JSONL writer
// for log/slog over a rotating gopkg.in/natefinch/lumberjack.v2 file, the
// ambient logging stack this repo's domain otherwise has no library for.
package logger

import (
	"log/slog"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/scanforge/sourceguard/internal/redact"
)

// ScanEvent is one structured record of a file's outcome within a scan,
// logged once per file as the worker pool drains (spec §5's collector is
// the only other cross-file shared state; this logger is a second, purely
// append-only sink and never feeds back into the report).
type ScanEvent struct {
	Path         string
	Language     string
	ObjectCount  int
	WarningCount int
	MaxScore     float64
	Malicious    bool
	Err          string
}

// Logger wraps a slog.Logger over a rotating file, serialized through the
// same mutex-guarded-append discipline as the teacher's AuditLogger.
type Logger struct {
	mu  sync.Mutex
	log *slog.Logger
	out *lumberjack.Logger
}

// New opens path for rotating structured logging (100MB per file, 5 backups,
// 28 days retention — the teacher's AuditLogger kept audit.jsonl unrotated;
// a long-running scan daemon needs rotation. 100MB is lumberjack's default
// size; backups and age are capped here, where lumberjack's defaults would
// keep every old file indefinitely).
func New(path string) *Logger {
	out := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     28,
	}
	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &Logger{log: slog.New(handler), out: out}
}

// ScanStarted logs the start of a scan over root with the resolved config
// knobs that affect its outcome, redacted the same way the teacher redacts
// command lines before logging them.
func (l *Logger) ScanStarted(runID, root string, threshold float64, extensions []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.Info("scan started",
		"run_id", runID,
		"root", redact.Redact(root),
		"threshold", threshold,
		"extensions", extensions,
	)
}

func (l *Logger) FileScanned(runID string, e ScanEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	attrs := []any{
		"run_id", runID,
		"path", redact.Redact(e.Path),
		"language", e.Language,
		"object_count", e.ObjectCount,
		"warning_count", e.WarningCount,
		"max_score", e.MaxScore,
		"malicious", e.Malicious,
	}
	if e.Err != "" {
		attrs = append(attrs, "error", redact.Redact(e.Err))
		l.log.Warn("file scan failed", attrs...)
		return
	}
	l.log.Info("file scanned", attrs...)
}

func (l *Logger) ScanFinished(runID, verdict string, confidence float64, warnings int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.Info("scan finished",
		"run_id", runID,
		"verdict", verdict,
		"confidence", confidence,
		"warning_count", warnings,
	)
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}
