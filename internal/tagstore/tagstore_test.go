package tagstore

import "testing"

func TestNewCIPTagDimensions(t *testing.T) {
	tag, err := NewCIPTag("MyTag", TypeDINT, []int{10}, false)
	if err != nil {
		t.Fatalf("NewCIPTag: %v", err)
	}
	if tag.ElemCount != 10 || tag.ElemSize != 4 || len(tag.Data) != 40 {
		t.Fatalf("got elemCount=%d elemSize=%d len=%d", tag.ElemCount, tag.ElemSize, len(tag.Data))
	}
	if tag.Dims != [3]int{10, 1, 1} {
		t.Fatalf("dims = %v, want [10 1 1]", tag.Dims)
	}
}

func TestControlLogixBoolRewrite(t *testing.T) {
	tag, err := NewCIPTag("b", TypeBOOL, []int{100}, true)
	if err != nil {
		t.Fatalf("NewCIPTag: %v", err)
	}
	if tag.Type != TypeBitStr {
		t.Fatalf("type = 0x%04X, want TypeBitStr", tag.Type)
	}
	if tag.ElemCount != 4 {
		t.Fatalf("elemCount = %d, want 4 (ceil(100/32))", tag.ElemCount)
	}
	if tag.ElemSize != 4 {
		t.Fatalf("elemSize = %d, want 4", tag.ElemSize)
	}
}

func TestNonControlLogixBoolUnchanged(t *testing.T) {
	tag, err := NewCIPTag("b", TypeBOOL, []int{100}, false)
	if err != nil {
		t.Fatalf("NewCIPTag: %v", err)
	}
	if tag.Type != TypeBOOL || tag.ElemCount != 100 {
		t.Fatalf("BOOL should not be rewritten when family doesn't require it")
	}
}

func TestReadAfterWrite(t *testing.T) {
	tag, _ := NewCIPTag("f", TypeREAL, []int{1}, false)
	store := NewStore([]*Tag{tag})

	want := []byte{0x00, 0x00, 0xC0, 0x3F}
	if err := store.Write(tag, 0, want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := store.Read(tag, 0, 4)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %x, want %x", got, want)
		}
	}
}

func TestOutOfRange(t *testing.T) {
	tag, _ := NewCIPTag("d", TypeDINT, []int{2}, false)
	store := NewStore([]*Tag{tag})
	if _, err := store.Read(tag, 4, 8); err != ErrOutOfRange {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if err := store.Write(tag, 0, make([]byte, 100)); err != ErrOutOfRange {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestFindByNameNotFound(t *testing.T) {
	store := NewStore(nil)
	if _, err := store.FindByName("nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPCCCTagLookup(t *testing.T) {
	tag, err := NewPCCCTag(7, TypePCCCInt, 10)
	if err != nil {
		t.Fatalf("NewPCCCTag: %v", err)
	}
	store := NewStore([]*Tag{tag})
	got, err := store.FindByDataFile(7)
	if err != nil {
		t.Fatalf("FindByDataFile: %v", err)
	}
	if got != tag {
		t.Fatalf("wrong tag returned")
	}
}

func TestInvalidDimensions(t *testing.T) {
	if _, err := NewCIPTag("x", TypeDINT, nil, false); err == nil {
		t.Fatal("expected error for zero dimensions")
	}
	if _, err := NewCIPTag("x", TypeDINT, []int{1, 2, 3, 4}, false); err == nil {
		t.Fatal("expected error for more than 3 dimensions")
	}
	if _, err := NewCIPTag("x", TypeDINT, []int{0}, false); err == nil {
		t.Fatal("expected error for non-positive dimension")
	}
}
