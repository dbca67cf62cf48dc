// Package config parses the CLI surface the simulator is launched with:
// the --tag= grammar, per-family --path components, and the
// other template-connection knobs. None of this touches the network;
// it only builds the Template the server core is handed.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tturner/absim/internal/tagstore"
)

// cipTypeNames maps the --tag= TYPE token to its wire data type.
var cipTypeNames = map[string]tagstore.DataType{
	"BOOL":   tagstore.TypeBOOL,
	"SINT":   tagstore.TypeSINT,
	"INT":    tagstore.TypeINT,
	"DINT":   tagstore.TypeDINT,
	"LINT":   tagstore.TypeLINT,
	"USINT":  tagstore.TypeUSINT,
	"UINT":   tagstore.TypeUINT,
	"UDINT":  tagstore.TypeUDINT,
	"ULINT":  tagstore.TypeULINT,
	"REAL":   tagstore.TypeREAL,
	"LREAL":  tagstore.TypeLREAL,
	"STRING": tagstore.TypeSTRING,
}

// ParseCIPTypeName maps a --tag= TYPE token (e.g. "DINT") to its wire
// data type, case-insensitively.
func ParseCIPTypeName(name string) (tagstore.DataType, error) {
	dt, ok := cipTypeNames[strings.ToUpper(name)]
	if !ok {
		return 0, fmt.Errorf("config: unknown CIP tag type %q", name)
	}
	return dt, nil
}

// pcccFileTypes maps a PCCC data-file letter prefix to its wire type.
var pcccFileTypes = map[string]tagstore.DataType{
	"N":  tagstore.TypePCCCInt,
	"L":  tagstore.TypePCCCLong,
	"F":  tagstore.TypePCCCReal,
	"ST": tagstore.TypePCCCString,
}

// CIPTagSpec is a parsed `name:TYPE[d0(,d1(,d2))]` --tag= value.
type CIPTagSpec struct {
	Name string
	Type tagstore.DataType
	Dims []int
}

// PCCCTagSpec is a parsed `FILE[size]` --tag= value, e.g. "N7[10]".
type PCCCTagSpec struct {
	FileNumber int
	Type       tagstore.DataType
	Elements   int
}

// ErrMalformedTagSpec is returned when a --tag= value matches neither
// the CIP nor the PCCC grammar.
type ErrMalformedTagSpec struct {
	Spec string
	Why  string
}

func (e *ErrMalformedTagSpec) Error() string {
	return fmt.Sprintf("config: malformed --tag=%q: %s", e.Spec, e.Why)
}

// ParseTagSpec parses one --tag= value. CIP specs contain a colon
// ("MyTag:DINT[10]"); PCCC specs do not ("N7[10]"). Exactly one of the
// two return values is non-nil on success.
func ParseTagSpec(spec string) (*CIPTagSpec, *PCCCTagSpec, error) {
	if strings.Contains(spec, ":") {
		cip, err := parseCIPTagSpec(spec)
		return cip, nil, err
	}
	pccc, err := parsePCCCTagSpec(spec)
	return nil, pccc, err
}

func parseCIPTagSpec(spec string) (*CIPTagSpec, error) {
	nameAndType := strings.SplitN(spec, ":", 2)
	if len(nameAndType) != 2 {
		return nil, &ErrMalformedTagSpec{spec, "expected name:TYPE[dims]"}
	}
	name := nameAndType[0]
	if name == "" || !isLetter(rune(name[0])) {
		return nil, &ErrMalformedTagSpec{spec, "tag name must start with a letter"}
	}
	if len(name) > 40 {
		return nil, &ErrMalformedTagSpec{spec, "tag name must be 1-40 chars"}
	}

	typeToken, dimsToken, err := splitTypeAndDims(nameAndType[1])
	if err != nil {
		return nil, &ErrMalformedTagSpec{spec, err.Error()}
	}
	dt, err := ParseCIPTypeName(typeToken)
	if err != nil {
		return nil, &ErrMalformedTagSpec{spec, err.Error()}
	}
	dims, err := parseDims(dimsToken)
	if err != nil {
		return nil, &ErrMalformedTagSpec{spec, err.Error()}
	}
	if len(dims) < 1 || len(dims) > 3 {
		return nil, &ErrMalformedTagSpec{spec, "1-3 dimensions required"}
	}
	return &CIPTagSpec{Name: name, Type: dt, Dims: dims}, nil
}

func parsePCCCTagSpec(spec string) (*PCCCTagSpec, error) {
	letters, digits, sizeToken, err := splitFileNameAndDims(spec)
	if err != nil {
		return nil, &ErrMalformedTagSpec{spec, err.Error()}
	}
	dt, ok := pcccFileTypes[letters]
	if !ok {
		return nil, &ErrMalformedTagSpec{spec, fmt.Sprintf("unknown PCCC file type %q", letters)}
	}
	fileNum, err := strconv.Atoi(digits)
	if err != nil {
		return nil, &ErrMalformedTagSpec{spec, "data file number must be numeric"}
	}
	dims, err := parseDims(sizeToken)
	if err != nil {
		return nil, &ErrMalformedTagSpec{spec, err.Error()}
	}
	if len(dims) != 1 || dims[0] < 1 {
		return nil, &ErrMalformedTagSpec{spec, "PCCC tag size must be a single positive element count"}
	}
	return &PCCCTagSpec{FileNumber: fileNum, Type: dt, Elements: dims[0]}, nil
}

// splitTypeAndDims splits "DINT[10,2]" into "DINT" and "10,2".
func splitTypeAndDims(s string) (typeToken, dimsToken string, err error) {
	open := strings.IndexByte(s, '[')
	if open < 0 {
		return "", "", fmt.Errorf("expected [dims] after type")
	}
	if !strings.HasSuffix(s, "]") {
		return "", "", fmt.Errorf("unterminated [dims]")
	}
	return s[:open], s[open+1 : len(s)-1], nil
}

// splitFileNameAndDims splits "N7[10]" into "N", "7", "10".
func splitFileNameAndDims(s string) (letters, digits, dimsToken string, err error) {
	open := strings.IndexByte(s, '[')
	if open < 0 || !strings.HasSuffix(s, "]") {
		return "", "", "", fmt.Errorf("expected FILE[size]")
	}
	fileToken := s[:open]
	dimsToken = s[open+1 : len(s)-1]

	i := 0
	for i < len(fileToken) && isLetter(rune(fileToken[i])) {
		i++
	}
	if i == 0 || i == len(fileToken) {
		return "", "", "", fmt.Errorf("expected a letter file-type prefix followed by a file number")
	}
	return fileToken[:i], fileToken[i:], dimsToken, nil
}

func parseDims(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	dims := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("dimension %q is not an integer", p)
		}
		if n <= 0 {
			return nil, fmt.Errorf("dimension %d must be positive", n)
		}
		dims = append(dims, n)
	}
	return dims, nil
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// BuildCIPTag constructs the tagstore.Tag for a parsed CIP spec.
// rewriteControlLogixBool should be true iff the template's family is
// ControlLogix, per the BOOL-array rewrite invariant.
func BuildCIPTag(spec *CIPTagSpec, rewriteControlLogixBool bool) (*tagstore.Tag, error) {
	return tagstore.NewCIPTag(spec.Name, spec.Type, spec.Dims, rewriteControlLogixBool)
}

// BuildPCCCTag constructs the tagstore.Tag for a parsed PCCC spec.
func BuildPCCCTag(spec *PCCCTagSpec) (*tagstore.Tag, error) {
	return tagstore.NewPCCCTag(spec.FileNumber, spec.Type, spec.Elements)
}
