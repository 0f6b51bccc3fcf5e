// Package token implements the Token Projector (spec §4.4): it maps each
// Instruction to a short list of lowercase tokens that feed the classifier.
// The function-name/literal category mapping is shipped as embedded YAML
// data rather than code (Design Notes §9), loaded with the same
// gopkg.in/yaml.v3 decoding the teacher's taxonomy package uses for its
// kingdoms/categories/entries catalog (that package walks a directory tree
// with os.ReadDir rather than embed.FS — this mapping is a single file, so
// go:embed is the simpler fit for the same decode step).
package token

import (
	"embed"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var embeddedTables embed.FS

// Tables is the frozen, immutable-after-load category mapping (spec §5
// "Shared resources": "immutable after initialization and freely shared").
type Tables struct {
	Version    string
	Activities map[string]bool
	Functions  map[string]string
}

type rawTables struct {
	Version   string            `yaml:"version"`
	Activities []string         `yaml:"activities"`
	Functions  map[string]string `yaml:"functions"`
}

// LoadTables parses the embedded category mapping. It never fails in
// practice since the data is compiled in, but returns an error rather than
// panicking so callers can surface classifier_unavailable (spec §7) if the
// embedded resource is ever corrupted.
func LoadTables() (*Tables, error) {
	data, err := embeddedTables.ReadFile("categories.yaml")
	if err != nil {
		return nil, err
	}
	var raw rawTables
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	t := &Tables{
		Version:    raw.Version,
		Activities: make(map[string]bool, len(raw.Activities)),
		Functions:  make(map[string]string, len(raw.Functions)),
	}
	for _, a := range raw.Activities {
		t.Activities[a] = true
	}
	for name, cat := range raw.Functions {
		t.Functions[strings.ToLower(name)] = cat
	}
	return t, nil
}

// CategoryFor looks up name's function-name category, case-insensitively.
func (t *Tables) CategoryFor(name string) (string, bool) {
	cat, ok := t.Functions[strings.ToLower(name)]
	return cat, ok
}

// IsActivity reports whether category belongs to the curated activity
// subfamily surfaced in a Report's activities field (spec §4.5).
func (t *Tables) IsActivity(category string) bool {
	return t.Activities[strings.ToLower(category)]
}
