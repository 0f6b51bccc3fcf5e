package token

import (
	"strconv"
	"strings"

	"github.com/scanforge/sourceguard/internal/classify"
	"github.com/scanforge/sourceguard/internal/instr"
)

// Projector is the stateless, side-effect-free mapping from an Instruction
// to its token sequence (spec §4.4). Tables and Classify are immutable
// after construction and freely shared across the worker pool (spec §5).
type Projector struct {
	Tables   *Tables
	Classify classify.Config
}

func NewProjector(tables *Tables, cfg classify.Config) *Projector {
	return &Projector{Tables: tables, Classify: cfg}
}

// Project returns the token sequence for one Instruction. arena resolves
// code-object-reference arguments to their referenced Code Object's name
// (spec §4.4: "project the referenced child's name only").
func (p *Projector) Project(ins instr.Instruction, arena *instr.Arena) []string {
	tokens := []string{strings.ToLower(string(ins.Op))}

	switch ins.Op {
	case instr.KW_NAMES:
		for _, name := range ins.Arg.KWNames {
			tokens = append(tokens, p.projectIdentifier(name))
		}
		return tokens
	case instr.MAKE_FUNCTION, instr.MAKE_CLASS:
		if co := arena.Get(ins.Arg.Ref); co != nil {
			tokens = append(tokens, p.projectIdentifier(co.Name))
		}
		return tokens
	}

	tokens = append(tokens, p.projectArg(ins.Arg, arena)...)
	return tokens
}

func (p *Projector) projectArg(a instr.Arg, arena *instr.Arena) []string {
	switch a.Kind {
	case instr.ArgNone:
		return nil
	case instr.ArgCategory:
		return []string{strings.ToLower(a.Str)}
	case instr.ArgString:
		return []string{strings.ToLower(a.Str)}
	case instr.ArgSymbol:
		return []string{p.projectIdentifier(a.Str)}
	case instr.ArgInteger:
		return []string{strconv.FormatInt(a.Int, 10)}
	case instr.ArgFloat:
		return []string{"float"}
	case instr.ArgBoolean:
		if a.Bool {
			return []string{"true"}
		}
		return []string{"false"}
	case instr.ArgCodeObjectRef:
		if co := arena.Get(a.Ref); co != nil {
			return []string{p.projectIdentifier(co.Name)}
		}
		return []string{"unknown"}
	case instr.ArgKWNameList:
		out := make([]string, 0, len(a.KWNames))
		for _, n := range a.KWNames {
			out = append(out, p.projectIdentifier(n))
		}
		return out
	default:
		return []string{"unknown"}
	}
}

// projectIdentifier implements spec §4.4's argument-projection rule for
// identifier-shaped arguments: lowercase, then a function-name category
// substitution if the table has one, else verbatim (short) or a size-bucket
// token (long).
func (p *Projector) projectIdentifier(name string) string {
	lower := strings.ToLower(name)
	if cat, ok := p.Tables.CategoryFor(lower); ok {
		return cat
	}
	if len(lower) < p.Classify.ShortLiteralThreshold {
		return lower
	}
	return strings.ToLower(bucketFor(len(lower)))
}

func bucketFor(n int) string {
	switch {
	case n < 5:
		return "STRING_XS"
	case n <= 15:
		return "STRING_S"
	case n <= 127:
		return "STRING_M"
	case n <= 4095:
		return "STRING_L"
	default:
		return "STRING_XL"
	}
}

// ProjectCodeObject returns the concatenated, order-preserving token
// sequence for every instruction in co (spec §4.4: "resulting per-object
// token sequence is the input to the classifier").
func (p *Projector) ProjectCodeObject(co *instr.CodeObject, arena *instr.Arena) []string {
	var tokens []string
	for _, ins := range co.Instructions {
		tokens = append(tokens, p.Project(ins, arena)...)
	}
	return tokens
}
