package token

import (
	"testing"

	"github.com/scanforge/sourceguard/internal/classify"
	"github.com/scanforge/sourceguard/internal/instr"
)

func testTables() *Tables {
	return &Tables{
		Version:    "test",
		Activities: map[string]bool{"filesystem access": true},
		Functions:  map[string]string{"open": "filesystem access"},
	}
}

func TestLoadTables_EmbeddedCategoriesParse(t *testing.T) {
	tables, err := LoadTables()
	if err != nil {
		t.Fatalf("LoadTables() error = %v", err)
	}
	if tables.Version == "" {
		t.Fatalf("expected a non-empty Version from the embedded categories.yaml")
	}
	if cat, ok := tables.CategoryFor("open"); !ok || cat != "filesystem access" {
		t.Fatalf("CategoryFor(\"open\") = (%q, %v), want (\"filesystem access\", true)", cat, ok)
	}
	if !tables.IsActivity("filesystem access") {
		t.Fatalf("expected filesystem access to be a curated activity category")
	}
}

func TestCategoryFor_CaseInsensitive(t *testing.T) {
	tables := testTables()
	if cat, ok := tables.CategoryFor("OPEN"); !ok || cat != "filesystem access" {
		t.Fatalf("CategoryFor(\"OPEN\") = (%q, %v), want case-insensitive match", cat, ok)
	}
	if _, ok := tables.CategoryFor("nonexistent_fn"); ok {
		t.Fatalf("expected no category for an unmapped function name")
	}
}

func TestIsActivity_OnlyCuratedCategories(t *testing.T) {
	tables := testTables()
	if tables.IsActivity("not-an-activity") {
		t.Fatalf("expected an uncurated category to not be an activity")
	}
	if !tables.IsActivity("FILESYSTEM ACCESS") {
		t.Fatalf("expected IsActivity to be case-insensitive")
	}
}

func TestProject_MakeFunctionProjectsChildName(t *testing.T) {
	proj := NewProjector(testTables(), classify.DefaultConfig())
	arena := instr.NewArena()
	child := arena.New("open", "a.py", "python", 1)
	child.Instructions = []instr.Instruction{instr.NewInstruction(instr.RETURN_VALUE, instr.NoArg(), 1)}

	ins := instr.NewInstruction(instr.MAKE_FUNCTION, instr.RefArg(child.ID), 1)
	tokens := proj.Project(ins, arena)

	want := []string{"make_function", "filesystem access"}
	if len(tokens) != len(want) || tokens[0] != want[0] || tokens[1] != want[1] {
		t.Fatalf("Project(MAKE_FUNCTION) = %v, want %v", tokens, want)
	}
}

func TestProject_KWNamesProjectsEachIdentifier(t *testing.T) {
	proj := NewProjector(testTables(), classify.DefaultConfig())
	arena := instr.NewArena()

	ins := instr.NewInstruction(instr.KW_NAMES, instr.KWNamesArg([]string{"open", "shortarg"}), 1)
	tokens := proj.Project(ins, arena)

	if len(tokens) != 3 {
		t.Fatalf("Project(KW_NAMES) = %v, want 3 tokens (opcode + 2 names)", tokens)
	}
	if tokens[1] != "filesystem access" {
		t.Fatalf("expected the first kwname to resolve through the category table, got %q", tokens[1])
	}
	if tokens[2] != "shortarg" {
		t.Fatalf("expected the second kwname to project verbatim (short, uncategorized), got %q", tokens[2])
	}
}

func TestProject_UnresolvedCodeObjectRefProjectsUnknown(t *testing.T) {
	proj := NewProjector(testTables(), classify.DefaultConfig())
	arena := instr.NewArena()

	ins := instr.NewInstruction(instr.LOAD_FAST, instr.RefArg(instr.CodeObjectID(99)), 1)
	tokens := proj.Project(ins, arena)

	if len(tokens) != 2 || tokens[1] != "unknown" {
		t.Fatalf("Project with a dangling ref = %v, want [opcode, \"unknown\"]", tokens)
	}
}

func TestProjectCodeObject_ConcatenatesInOrder(t *testing.T) {
	proj := NewProjector(testTables(), classify.DefaultConfig())
	arena := instr.NewArena()
	co := arena.New("f", "a.py", "python", 0)
	co.Instructions = []instr.Instruction{
		instr.NewInstruction(instr.LOAD_CONST, instr.CategoryArg("INTEGER"), 1),
		instr.NewInstruction(instr.RETURN_VALUE, instr.NoArg(), 1),
	}

	tokens := proj.ProjectCodeObject(co, arena)
	want := []string{"load_const", "integer", "return_value"}
	if len(tokens) != len(want) {
		t.Fatalf("ProjectCodeObject() = %v, want %v", tokens, want)
	}
	for i, w := range want {
		if tokens[i] != w {
			t.Fatalf("ProjectCodeObject()[%d] = %q, want %q", i, tokens[i], w)
		}
	}
}

func TestBucketForBoundaries(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{4, "STRING_XS"},
		{15, "STRING_S"},
		{127, "STRING_M"},
		{4095, "STRING_L"},
		{4096, "STRING_XL"},
	}
	for _, tt := range tests {
		if got := bucketFor(tt.n); got != tt.want {
			t.Errorf("bucketFor(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
