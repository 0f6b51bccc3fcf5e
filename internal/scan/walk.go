package scan

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/scanforge/sourceguard/internal/lang"
)

// discoverFiles walks root depth-first, returning every regular file whose
// extension is in extensions, in deterministic lexical order (spec §4.2
// rule 10's "source order" requirement extends here: a scan must discover
// files in a stable order so repeated runs over an unchanged tree produce
// byte-identical reports). Directories deeper than maxDepth below root are
// skipped rather than erroring, matching the teacher's policy/loader.go
// habit of degrading silently on depth rather than failing the whole walk.
func discoverFiles(root string, extensions []string, maxDepth int) ([]string, error) {
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = true
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err // root itself is missing or unreadable: the walk fails
			}
			return nil // unreadable entries below root are left out of the returned list
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr == nil && rel != "." {
			depth := strings.Count(rel, string(filepath.Separator)) + 1
			if d.IsDir() && depth > maxDepth {
				return filepath.SkipDir
			}
		}
		if d.IsDir() {
			return nil
		}
		if !lang.Supported(path) {
			return nil
		}
		if allowed[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
