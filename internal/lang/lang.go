// Package lang selects a grammar family by file extension. The set of
// recognized extensions is closed. The scan's file walk drops any other file
// before scanning; such files are not listed in the Report's skipped files.
package lang

import (
	"path/filepath"
	"strings"
)

// Language is one of the two supported language families.
type Language string

const (
	// ScriptDynamic is the dynamic scripting family (exemplified by Python).
	ScriptDynamic Language = "script-dynamic"
	// ScriptCurly is the curly-brace scripting family (exemplified by
	// JavaScript/TypeScript).
	ScriptCurly Language = "script-curly"
	// Unknown means the extension is not in the closed set.
	Unknown Language = ""
)

var extensions = map[string]Language{
	".py":  ScriptDynamic,
	".js":  ScriptCurly,
	".jsx": ScriptCurly,
	".ts":  ScriptCurly,
	".tsx": ScriptCurly,
	".mjs": ScriptCurly,
	".cjs": ScriptCurly,
}

// Detect returns the Language for path's extension, or Unknown if the
// extension is not in the closed set.
func Detect(path string) Language {
	ext := strings.ToLower(filepath.Ext(path))
	return extensions[ext]
}

// Supported reports whether path's extension is recognized.
func Supported(path string) bool {
	return Detect(path) != Unknown
}

// IsTypeScript reports whether path uses a TypeScript extension, used by the
// parser adapter to pick the typescript grammar over the plain javascript one
// within the script-curly family.
func IsTypeScript(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".ts" || ext == ".tsx"
}
