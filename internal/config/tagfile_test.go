package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tturner/absim/internal/family"
	"github.com/tturner/absim/internal/tagstore"
)

func writeTagFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tags.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write tagfile: %v", err)
	}
	return path
}

func TestLoadTagFileCIPAndPCCC(t *testing.T) {
	path := writeTagFile(t, `
cip_tags:
  - name: Counter
    type: DINT
    dims: [1]
  - name: Grid
    type: REAL
    dims: [2, 3]
pccc_tags:
  - file_type: N
    file_number: 7
    elements: 100
`)

	tags, err := LoadTagFile(path, family.Micro800)
	if err != nil {
		t.Fatalf("LoadTagFile: %v", err)
	}
	if len(tags) != 3 {
		t.Fatalf("got %d tags, want 3", len(tags))
	}

	store := tagstore.NewStore(tags)
	counter, err := store.FindByName("Counter")
	if err != nil {
		t.Fatalf("FindByName(Counter): %v", err)
	}
	if counter.Type != tagstore.TypeDINT || counter.ElemCount != 1 {
		t.Errorf("Counter = %+v, want DINT[1]", counter)
	}

	grid, err := store.FindByName("Grid")
	if err != nil {
		t.Fatalf("FindByName(Grid): %v", err)
	}
	if grid.ElemCount != 6 {
		t.Errorf("Grid.ElemCount = %d, want 6", grid.ElemCount)
	}

	n7, err := store.FindByDataFile(7)
	if err != nil {
		t.Fatalf("FindByDataFile(7): %v", err)
	}
	if n7.Type != tagstore.TypePCCCInt || n7.ElemCount != 100 {
		t.Errorf("N7 = %+v, want PCCCInt[100]", n7)
	}
}

func TestLoadTagFileControlLogixBoolRewrite(t *testing.T) {
	path := writeTagFile(t, `
cip_tags:
  - name: Flags
    type: BOOL
    dims: [100]
`)

	tags, err := LoadTagFile(path, family.ControlLogix)
	if err != nil {
		t.Fatalf("LoadTagFile: %v", err)
	}
	if len(tags) != 1 {
		t.Fatalf("got %d tags, want 1", len(tags))
	}
	if tags[0].Type != tagstore.TypeBitStr || tags[0].ElemCount != 4 {
		t.Errorf("Flags = %+v, want BitStr[4] (ceil(100/32))", tags[0])
	}
}

func TestLoadTagFileUnknownType(t *testing.T) {
	path := writeTagFile(t, `
cip_tags:
  - name: Bad
    type: NOPE
    dims: [1]
`)
	if _, err := LoadTagFile(path, family.Micro800); err == nil {
		t.Fatal("expected error for unknown CIP type")
	}
}

func TestLoadTagFileMissingPath(t *testing.T) {
	if _, err := LoadTagFile(filepath.Join(t.TempDir(), "missing.yaml"), family.Micro800); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestBuildTemplateCombinesTagsAndTagFile(t *testing.T) {
	path := writeTagFile(t, `
cip_tags:
  - name: FromFile
    type: DINT
    dims: [1]
`)
	tmpl, err := BuildTemplate(Flags{
		PLC:     "Micro800",
		Tags:    []string{"FromFlag:DINT[1]"},
		TagFile: path,
	})
	if err != nil {
		t.Fatalf("BuildTemplate: %v", err)
	}
	if len(tmpl.Tags) != 2 {
		t.Fatalf("got %d tags, want 2 (one --tag plus one --tagfile entry)", len(tmpl.Tags))
	}
}
