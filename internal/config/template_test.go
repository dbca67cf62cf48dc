package config

import "testing"

func TestParseTagSpecCIP(t *testing.T) {
	tests := []struct {
		spec     string
		wantName string
		wantDims []int
	}{
		{"MyTag:DINT[10]", "MyTag", []int{10}},
		{"Grid:REAL[2,3]", "Grid", []int{2, 3}},
		{"b:BOOL[100]", "b", []int{100}},
	}
	for _, tt := range tests {
		cip, pccc, err := ParseTagSpec(tt.spec)
		if err != nil {
			t.Fatalf("ParseTagSpec(%q): %v", tt.spec, err)
		}
		if pccc != nil {
			t.Fatalf("ParseTagSpec(%q): expected CIP spec, got PCCC", tt.spec)
		}
		if cip.Name != tt.wantName {
			t.Errorf("Name = %q, want %q", cip.Name, tt.wantName)
		}
		if len(cip.Dims) != len(tt.wantDims) {
			t.Fatalf("Dims = %v, want %v", cip.Dims, tt.wantDims)
		}
		for i := range tt.wantDims {
			if cip.Dims[i] != tt.wantDims[i] {
				t.Errorf("Dims[%d] = %d, want %d", i, cip.Dims[i], tt.wantDims[i])
			}
		}
	}
}

func TestParseTagSpecPCCC(t *testing.T) {
	tests := []struct {
		spec           string
		wantFileNumber int
		wantElements   int
	}{
		{"N7[10]", 7, 10},
		{"F8[5]", 8, 5},
		{"ST18[3]", 18, 3},
		{"L19[20]", 19, 20},
	}
	for _, tt := range tests {
		cip, pccc, err := ParseTagSpec(tt.spec)
		if err != nil {
			t.Fatalf("ParseTagSpec(%q): %v", tt.spec, err)
		}
		if cip != nil {
			t.Fatalf("ParseTagSpec(%q): expected PCCC spec, got CIP", tt.spec)
		}
		if pccc.FileNumber != tt.wantFileNumber {
			t.Errorf("FileNumber = %d, want %d", pccc.FileNumber, tt.wantFileNumber)
		}
		if pccc.Elements != tt.wantElements {
			t.Errorf("Elements = %d, want %d", pccc.Elements, tt.wantElements)
		}
	}
}

func TestParseTagSpecMalformed(t *testing.T) {
	tests := []string{
		"",
		"1abc:DINT[10]",
		"MyTag:UNKNOWNTYPE[10]",
		"MyTag:DINT",
		"MyTag:DINT[0]",
		"Q9[10]",
		"N7",
	}
	for _, spec := range tests {
		if _, _, err := ParseTagSpec(spec); err == nil {
			t.Errorf("ParseTagSpec(%q): expected error, got none", spec)
		}
	}
}

func TestBuildTemplateControlLogixRequiresPath(t *testing.T) {
	_, err := BuildTemplate(Flags{PLC: "ControlLogix", Tags: []string{"x:DINT[1]"}})
	if err == nil {
		t.Fatal("expected error for missing --path on ControlLogix")
	}
}

func TestBuildTemplateControlLogixBoolRewrite(t *testing.T) {
	tmpl, err := BuildTemplate(Flags{
		PLC:  "ControlLogix",
		Path: "1,0",
		Tags: []string{"b:BOOL[100]"},
	})
	if err != nil {
		t.Fatalf("BuildTemplate: %v", err)
	}
	if len(tmpl.Tags) != 1 {
		t.Fatalf("expected 1 tag, got %d", len(tmpl.Tags))
	}
	tag := tmpl.Tags[0]
	if tag.ElemCount != 4 {
		t.Errorf("ElemCount = %d, want 4 (ceil(100/32))", tag.ElemCount)
	}
}

func TestBuildTemplateDefaultsAndBounds(t *testing.T) {
	if _, err := BuildTemplate(Flags{PLC: "Micro800", Debug: 5, Tags: []string{"x:DINT[1]"}}); err == nil {
		t.Fatal("expected error for --debug out of range")
	}
	if _, err := BuildTemplate(Flags{PLC: "Micro800", Tags: nil}); err == nil {
		t.Fatal("expected error when no tags are configured")
	}
}
