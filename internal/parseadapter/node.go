// Package parseadapter wraps a concrete-syntax-tree parser (tree-sitter) and
// exposes the uniform node interface the AST-to-Instruction Compiler walks:
// node kind, children-by-field, byte/line span, and source text. It fails
// with ParseError when the grammar rejects input outright, and otherwise
// lets the compiler recover from localized ERROR subtrees on its own.
package parseadapter

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Node is the uniform, per-language-agnostic view over one syntax tree node
// that the compiler walks. Implementations are thin wrappers around a
// concrete grammar's node type.
type Node interface {
	// Kind is the grammar's node type name (e.g. "call", "function_definition").
	Kind() string
	// Field returns the named child (tree-sitter field), if present.
	Field(name string) (Node, bool)
	// Children returns every child, named and anonymous, in source order.
	Children() []Node
	// NamedChildren returns only the named (syntactically meaningful) children.
	NamedChildren() []Node
	// StartLine and EndLine are 1-based source line numbers.
	StartLine() int
	EndLine() int
	StartByte() int
	EndByte() int
	// Text returns the exact source slice spanned by this node.
	Text() string
	// HasError reports whether this node or any descendant is a parse error.
	HasError() bool
	// IsNamed reports whether this is a named (vs. anonymous token) node.
	IsNamed() bool
}

// ParseError is returned when the grammar rejects the input outright (the
// root node itself is unusable), as opposed to a localized ERROR subtree
// that the compiler can skip and warn about.
type ParseError struct {
	Path string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse_error: %s:%d: %s", e.Path, e.Line, e.Msg)
}

type sitterNode struct {
	n      *sitter.Node
	source []byte
}

func wrap(n *sitter.Node, source []byte) Node {
	if n == nil {
		return nil
	}
	return &sitterNode{n: n, source: source}
}

func (s *sitterNode) Kind() string { return s.n.Type() }

func (s *sitterNode) Field(name string) (Node, bool) {
	child := s.n.ChildByFieldName(name)
	if child == nil {
		return nil, false
	}
	return wrap(child, s.source), true
}

func (s *sitterNode) Children() []Node {
	count := int(s.n.ChildCount())
	out := make([]Node, 0, count)
	for i := 0; i < count; i++ {
		if c := s.n.Child(i); c != nil {
			out = append(out, wrap(c, s.source))
		}
	}
	return out
}

func (s *sitterNode) NamedChildren() []Node {
	count := int(s.n.NamedChildCount())
	out := make([]Node, 0, count)
	for i := 0; i < count; i++ {
		if c := s.n.NamedChild(i); c != nil {
			out = append(out, wrap(c, s.source))
		}
	}
	return out
}

func (s *sitterNode) StartLine() int { return int(s.n.StartPoint().Row) + 1 }
func (s *sitterNode) EndLine() int   { return int(s.n.EndPoint().Row) + 1 }
func (s *sitterNode) StartByte() int { return int(s.n.StartByte()) }
func (s *sitterNode) EndByte() int   { return int(s.n.EndByte()) }
func (s *sitterNode) Text() string   { return s.n.Content(s.source) }
func (s *sitterNode) HasError() bool { return s.n.HasError() }
func (s *sitterNode) IsNamed() bool  { return s.n.IsNamed() }
