package instr

import "github.com/scanforge/sourceguard/internal/scanerr"

// ArgKind tags the closed union of Instruction argument shapes (spec §3).
type ArgKind string

const (
	ArgNone           ArgKind = "none"
	ArgInteger        ArgKind = "integer"
	ArgFloat          ArgKind = "float"
	ArgBoolean        ArgKind = "boolean"
	ArgString         ArgKind = "string"
	ArgSymbol         ArgKind = "symbol"
	ArgCategory       ArgKind = "category-token"
	ArgCodeObjectRef  ArgKind = "code-object-reference"
	ArgKWNameList     ArgKind = "kw-name-list"
)

// CodeObjectID is a stable index into an Arena. Code Objects form a tree by
// construction (a child is created before the MAKE_FUNCTION/MAKE_CLASS that
// references it), so plain indices avoid any cyclic-reference handling
// (Design Notes §9).
type CodeObjectID int

// NoRef is the zero value for an unset CodeObjectID reference.
const NoRef CodeObjectID = -1

// Arg is the tagged-union argument of an Instruction. Only the field(s)
// matching Kind are meaningful.
type Arg struct {
	Kind    ArgKind
	Int     int64
	Float   float64
	Bool    bool
	Str     string // string / symbol / category-token value
	Ref     CodeObjectID
	KWNames []string
}

func NoArg() Arg                        { return Arg{Kind: ArgNone} }
func IntArg(v int64) Arg                { return Arg{Kind: ArgInteger, Int: v} }
func FloatArg(v float64) Arg            { return Arg{Kind: ArgFloat, Float: v} }
func BoolArg(v bool) Arg                { return Arg{Kind: ArgBoolean, Bool: v} }
func StringArg(v string) Arg            { return Arg{Kind: ArgString, Str: v} }
func SymbolArg(v string) Arg            { return Arg{Kind: ArgSymbol, Str: v} }
func CategoryArg(token string) Arg      { return Arg{Kind: ArgCategory, Str: token} }
func RefArg(id CodeObjectID) Arg        { return Arg{Kind: ArgCodeObjectRef, Ref: id} }
func KWNamesArg(names []string) Arg     { return Arg{Kind: ArgKWNameList, KWNames: names} }

// Instruction is a single opcode + argument + source line, with an optional
// jump target (an index within the same Code Object's instruction list).
// Instructions are value types; ordering within a Code Object is significant.
type Instruction struct {
	Op   Opcode
	Arg  Arg
	Line int
	Jump int // -1 when this instruction has no jump target
}

func NewInstruction(op Opcode, arg Arg, line int) Instruction {
	return Instruction{Op: op, Arg: arg, Line: line, Jump: -1}
}

// CodeObject is a named, linear instruction stream produced from one
// syntactic scope (module, top-level function, class body, or a depth-0
// lambda/comprehension). Code Objects are immutable once emission finishes;
// warnings are only attached during compilation.
type CodeObject struct {
	ID           CodeObjectID
	Name         string
	Instructions []Instruction
	Children     []CodeObjectID
	StartLine    int
	EndLine      int
	Depth        int
	Path         string
	Language     string
	Warnings     []scanerr.Warning
}

// Arena owns every Code Object produced while compiling one file. Code
// Objects are referenced by stable index, never by pointer, which is what
// makes the parent-owns-children tree acyclic by construction.
type Arena struct {
	objects []*CodeObject
}

func NewArena() *Arena { return &Arena{} }

// New allocates a fresh Code Object and returns it; the child is always
// created before the MAKE_FUNCTION/MAKE_CLASS instruction that will
// reference it (Design Notes §9).
func (a *Arena) New(name, path, language string, depth int) *CodeObject {
	co := &CodeObject{
		ID:       CodeObjectID(len(a.objects)),
		Name:     name,
		Path:     path,
		Language: language,
		Depth:    depth,
	}
	a.objects = append(a.objects, co)
	return co
}

func (a *Arena) Get(id CodeObjectID) *CodeObject {
	if id < 0 || int(id) >= len(a.objects) {
		return nil
	}
	return a.objects[id]
}

func (a *Arena) All() []*CodeObject { return a.objects }

// ValidateJumps checks invariant #2 of spec §3: every jump target in a Code
// Object refers to a valid instruction index within the same stream.
func (a *Arena) ValidateJumps() bool {
	for _, co := range a.objects {
		n := len(co.Instructions)
		for _, ins := range co.Instructions {
			if ins.Jump >= 0 && ins.Jump >= n {
				return false
			}
		}
	}
	return true
}
