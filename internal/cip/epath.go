package cip

import (
	"errors"

	"github.com/tturner/absim/internal/wire"
)

// SegmentKind distinguishes the EPATH segment variants this simulator
// parses: a symbolic tag-name segment and the three logical numeric-index
// widths. Modeling EPATH as a tagged-segment stream (rather than ad-hoc
// cursor math) is what keeps index parsing and bounds checks in one place.
type SegmentKind int

const (
	SegSymbolic SegmentKind = iota
	SegLogical1
	SegLogical2
	SegLogical4
)

// Segment is one parsed EPATH element.
type Segment struct {
	Kind  SegmentKind
	Name  string // SegSymbolic only
	Value uint32 // SegLogicalN only
}

const (
	segByteSymbolic uint8 = 0x91
	segByteLogical1 uint8 = 0x28
	segByteLogical2 uint8 = 0x29
	segByteLogical4 uint8 = 0x2A
)

// ErrMalformedEPATH covers any EPATH byte stream this simulator doesn't
// recognize: a truncated segment, an odd-length symbolic name missing its
// pad byte, or a segment type this parser doesn't support.
var ErrMalformedEPATH = errors.New("cip: malformed EPATH")

// ParseTagEPATH parses the EPATH this simulator actually sees on Read
// Tag / Write Tag requests: exactly one leading symbolic segment naming
// the tag, followed by zero to three logical segments giving array
// indices.
func ParseTagEPATH(w wire.Window) ([]Segment, error) {
	var segs []Segment
	offset := 0
	for offset < w.Len() {
		tag, err := w.ReadUint8(offset)
		if err != nil {
			return nil, ErrMalformedEPATH
		}
		switch tag {
		case segByteSymbolic:
			nameLen, err := w.ReadUint8(offset + 1)
			if err != nil {
				return nil, ErrMalformedEPATH
			}
			nameBytes, err := w.CopyOut(offset+2, int(nameLen))
			if err != nil {
				return nil, ErrMalformedEPATH
			}
			offset += 2 + int(nameLen)
			if nameLen%2 != 0 {
				offset++
			}
			segs = append(segs, Segment{Kind: SegSymbolic, Name: string(nameBytes)})
		case segByteLogical1:
			v, err := w.ReadUint8(offset + 1)
			if err != nil {
				return nil, ErrMalformedEPATH
			}
			offset += 2
			segs = append(segs, Segment{Kind: SegLogical1, Value: uint32(v)})
		case segByteLogical2:
			v, err := w.ReadUint16(offset + 2)
			if err != nil {
				return nil, ErrMalformedEPATH
			}
			offset += 4
			segs = append(segs, Segment{Kind: SegLogical2, Value: uint32(v)})
		case segByteLogical4:
			v, err := w.ReadUint32(offset + 2)
			if err != nil {
				return nil, ErrMalformedEPATH
			}
			offset += 6
			segs = append(segs, Segment{Kind: SegLogical4, Value: v})
		default:
			return nil, ErrMalformedEPATH
		}
	}
	return segs, nil
}

// TagName returns the symbolic segment's name, if segs begins with one.
func TagName(segs []Segment) (string, bool) {
	if len(segs) == 0 || segs[0].Kind != SegSymbolic {
		return "", false
	}
	return segs[0].Name, true
}

// Indices returns the array indices carried by the logical segments
// following the symbolic segment, in order.
func Indices(segs []Segment) []int {
	if len(segs) <= 1 {
		return nil
	}
	out := make([]int, 0, len(segs)-1)
	for _, s := range segs[1:] {
		out = append(out, int(s.Value))
	}
	return out
}
