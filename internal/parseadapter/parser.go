package parseadapter

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/scanforge/sourceguard/internal/lang"
)

// Tree owns the parsed syntax tree and its source bytes. Close releases the
// underlying tree-sitter tree; callers must call it once done (Lifecycle,
// spec §3): "All resources (parse trees, buffers) are released when the
// scan completes."
type Tree struct {
	tree   *sitter.Tree
	source []byte
}

func (t *Tree) Root() Node { return wrap(t.tree.RootNode(), t.source) }
func (t *Tree) Close()     { t.tree.Close() }

// Parse parses source under the grammar selected for language/path and
// returns the resulting Tree. It returns a *ParseError only when the root
// node itself is unusable; an ERROR subtree elsewhere in an otherwise valid
// tree is left for the compiler to skip and warn about.
func Parse(ctx context.Context, path string, language lang.Language, source []byte) (*Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(grammarFor(language, path))

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, &ParseError{Path: path, Line: 0, Msg: err.Error()}
	}

	root := tree.RootNode()
	if root == nil || root.IsMissing() {
		return nil, &ParseError{Path: path, Line: 0, Msg: "grammar produced no usable root node"}
	}

	return &Tree{tree: tree, source: source}, nil
}

func grammarFor(language lang.Language, path string) *sitter.Language {
	switch language {
	case lang.ScriptDynamic:
		return python.GetLanguage()
	case lang.ScriptCurly:
		if lang.IsTypeScript(path) {
			if isTSX(path) {
				return tsx.GetLanguage()
			}
			return typescript.GetLanguage()
		}
		return javascript.GetLanguage()
	default:
		return javascript.GetLanguage()
	}
}

func isTSX(path string) bool {
	return len(path) >= 4 && path[len(path)-4:] == ".tsx"
}
