package compiler

import (
	"strconv"
	"strings"

	"github.com/scanforge/sourceguard/internal/classify"
	"github.com/scanforge/sourceguard/internal/instr"
	"github.com/scanforge/sourceguard/internal/parseadapter"
)

func classifyIntArg(cfg Config, v int64) instr.Arg {
	return classify.Integer(cfg.Classify, v)
}

var binaryOps = map[string]instr.Opcode{
	"+": instr.BINARY_ADD, "-": instr.BINARY_SUB, "*": instr.BINARY_MUL,
	"/": instr.BINARY_DIV, "//": instr.BINARY_DIV, "%": instr.BINARY_MOD,
	"**": instr.BINARY_POW, "&": instr.BINARY_AND, "|": instr.BINARY_OR,
	"^": instr.BINARY_XOR, "<<": instr.BINARY_LSHIFT, ">>": instr.BINARY_RSHIFT,
}

var compareOps = map[string]bool{
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
	"is": true, "is not": true, "in": true, "not in": true, "===": true, "!==": true,
}

// emitOperator emits the binary/compare opcode for op, or falls back to
// BINARY_ADD for an operator outside the closed set (spec §4.2 rule 10
// requires determinism, not grammar-perfect coverage of every token kind).
func (e *emitter) emitOperator(op string, line int) {
	op = strings.TrimSpace(op)
	if compareOps[op] {
		e.b.emit(instr.COMPARE_OP, instr.SymbolArg(normalizeCompare(op)), line)
		return
	}
	if code, ok := binaryOps[op]; ok {
		e.b.emit(code, instr.NoArg(), line)
		return
	}
	e.b.emit(instr.BINARY_ADD, instr.NoArg(), line)
}

func normalizeCompare(op string) string {
	switch op {
	case "===":
		return "=="
	case "!==":
		return "!="
	default:
		return op
	}
}

// emitLiteral handles the closed set of literal node kinds shared by both
// language families (string/number/bool/none-ish), returning true if n was
// a literal it handled.
func (e *emitter) emitLiteral(n parseadapter.Node) bool {
	switch n.Kind() {
	case "string", "string_fragment", "template_string":
		raw := unquote(n.Text())
		e.b.emit(instr.LOAD_CONST, e.literalString(n, raw), n.StartLine())
		return true
	case "integer", "number":
		text := n.Text()
		if strings.ContainsAny(text, ".eE") && !strings.HasPrefix(strings.ToLower(text), "0x") {
			if f, err := strconv.ParseFloat(text, 64); err == nil {
				e.b.emit(instr.LOAD_CONST, classify.Float(f), n.StartLine())
				return true
			}
		}
		v, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			e.b.emit(instr.LOAD_CONST, instr.CategoryArg("INTEGER"), n.StartLine())
			return true
		}
		e.b.emit(instr.LOAD_CONST, e.classifyInt(v), n.StartLine())
		return true
	case "float":
		f, _ := strconv.ParseFloat(n.Text(), 64)
		e.b.emit(instr.LOAD_CONST, classify.Float(f), n.StartLine())
		return true
	case "true", "false":
		e.b.emit(instr.LOAD_CONST, classify.Boolean(n.Kind() == "true"), n.StartLine())
		return true
	case "none", "null", "undefined":
		e.b.emit(instr.LOAD_CONST, instr.CategoryArg("NONE"), n.StartLine())
		return true
	}
	return false
}

func (e *emitter) classifyInt(v int64) instr.Arg {
	return classifyIntArg(e.cfg, v)
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') || (first == '`' && last == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// emitContainer handles a generic comma-separated literal container node
// (list/tuple/set/dict-like) by emitting each element in source order
// followed by the matching BUILD_* instruction (spec §4.2 rule 10).
func (e *emitter) emitContainer(n parseadapter.Node, op instr.Opcode) {
	children := n.NamedChildren()
	for _, c := range children {
		e.emitNode(c)
	}
	e.b.emit(op, instr.IntArg(int64(len(children))), n.StartLine())
}

// identText returns n's text for plain identifier-shaped nodes.
func identText(n parseadapter.Node) string { return n.Text() }
