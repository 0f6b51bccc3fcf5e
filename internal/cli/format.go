package cli

import (
	"encoding/json"

	"github.com/scanforge/sourceguard/internal/report"
)

// renderReport produces the bytes to print or save for r under format.
// Report formatting beyond JSON is an external collaborator's job (spec §6:
// "formatting itself is out of scope"); tree/yaml/markdown are accepted so
// the flag's closed set matches spec.md §6 exactly, but all fall back to
// the same indented JSON encoding so the CLI always produces deterministic,
// parseable output for compatibility testing.
func renderReport(format string, r report.Report) ([]byte, error) {
	switch format {
	case "", "tree", "json", "yaml", "markdown":
		return json.MarshalIndent(r, "", "  ")
	default:
		return json.MarshalIndent(r, "", "  ")
	}
}
