// Package wire implements byte-exact, endian-explicit primitives shared
// by every protocol layer in the simulator. Protocol fields are decoded
// and encoded through a Window; other packages slice raw buffers only to
// carve out or assemble whole frames.
package wire

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrShortBuffer is returned whenever an operation would read or write
// past the end of a Window.
var ErrShortBuffer = errors.New("wire: short buffer")

// Order is the wire byte order for every protocol this simulator speaks.
var Order = binary.LittleEndian

// Window is a bounded view [Begin, End) into an owning byte slice. All
// parsing and encoding happens through a Window so that a bug in one
// layer cannot read or write outside the range that layer was handed.
type Window struct {
	buf   []byte
	begin int
	end   int
}

// NewWindow wraps the whole of buf in a Window.
func NewWindow(buf []byte) Window {
	return Window{buf: buf, begin: 0, end: len(buf)}
}

// Len returns the number of bytes in the window.
func (w Window) Len() int { return w.end - w.begin }

// Bytes returns the window's bytes. Mutating the result mutates the
// owning buffer.
func (w Window) Bytes() []byte { return w.buf[w.begin:w.end] }

// Sub carves out a child window [begin, begin+length) relative to w's
// start. The child lies entirely within w.
func (w Window) Sub(begin, length int) (Window, error) {
	if begin < 0 || length < 0 || begin+length > w.Len() {
		return Window{}, ErrShortBuffer
	}
	return Window{buf: w.buf, begin: w.begin + begin, end: w.begin + begin + length}, nil
}

// Split divides w at offset into a prefix [0, offset) and a suffix
// [offset, Len()). Their union is exactly w. This is the primitive that
// lets a layer reserve header space before the payload it wraps is
// encoded: split off the header-sized prefix, hand the suffix to the
// inner layer, then come back and encode the header once the inner
// layer reports how much it wrote.
func (w Window) Split(offset int) (prefix, suffix Window, err error) {
	if offset < 0 || offset > w.Len() {
		return Window{}, Window{}, ErrShortBuffer
	}
	prefix = Window{buf: w.buf, begin: w.begin, end: w.begin + offset}
	suffix = Window{buf: w.buf, begin: w.begin + offset, end: w.end}
	return prefix, suffix, nil
}

// Truncate shrinks w to the first length bytes.
func (w Window) Truncate(length int) (Window, error) {
	if length < 0 || length > w.Len() {
		return Window{}, ErrShortBuffer
	}
	return Window{buf: w.buf, begin: w.begin, end: w.begin + length}, nil
}

func (w Window) need(offset, size int) error {
	if offset < 0 || size < 0 || offset+size > w.Len() {
		return ErrShortBuffer
	}
	return nil
}

// ReadUint8 reads a 1-byte unsigned integer at offset.
func (w Window) ReadUint8(offset int) (uint8, error) {
	if err := w.need(offset, 1); err != nil {
		return 0, err
	}
	return w.buf[w.begin+offset], nil
}

// ReadUint16 reads a little-endian 2-byte unsigned integer at offset.
func (w Window) ReadUint16(offset int) (uint16, error) {
	if err := w.need(offset, 2); err != nil {
		return 0, err
	}
	return Order.Uint16(w.buf[w.begin+offset:]), nil
}

// ReadUint32 reads a little-endian 4-byte unsigned integer at offset.
func (w Window) ReadUint32(offset int) (uint32, error) {
	if err := w.need(offset, 4); err != nil {
		return 0, err
	}
	return Order.Uint32(w.buf[w.begin+offset:]), nil
}

// ReadUint64 reads a little-endian 8-byte unsigned integer at offset.
func (w Window) ReadUint64(offset int) (uint64, error) {
	if err := w.need(offset, 8); err != nil {
		return 0, err
	}
	return Order.Uint64(w.buf[w.begin+offset:]), nil
}

// ReadFloat32 reads a little-endian IEEE-754 single at offset.
func (w Window) ReadFloat32(offset int) (float32, error) {
	bits, err := w.ReadUint32(offset)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

// ReadFloat64 reads a little-endian IEEE-754 double at offset.
func (w Window) ReadFloat64(offset int) (float64, error) {
	bits, err := w.ReadUint64(offset)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// WriteUint8 writes a 1-byte unsigned integer at offset.
func (w Window) WriteUint8(offset int, v uint8) error {
	if err := w.need(offset, 1); err != nil {
		return err
	}
	w.buf[w.begin+offset] = v
	return nil
}

// WriteUint16 writes a little-endian 2-byte unsigned integer at offset.
func (w Window) WriteUint16(offset int, v uint16) error {
	if err := w.need(offset, 2); err != nil {
		return err
	}
	Order.PutUint16(w.buf[w.begin+offset:], v)
	return nil
}

// WriteUint32 writes a little-endian 4-byte unsigned integer at offset.
func (w Window) WriteUint32(offset int, v uint32) error {
	if err := w.need(offset, 4); err != nil {
		return err
	}
	Order.PutUint32(w.buf[w.begin+offset:], v)
	return nil
}

// WriteUint64 writes a little-endian 8-byte unsigned integer at offset.
func (w Window) WriteUint64(offset int, v uint64) error {
	if err := w.need(offset, 8); err != nil {
		return err
	}
	Order.PutUint64(w.buf[w.begin+offset:], v)
	return nil
}

// WriteFloat32 writes a little-endian IEEE-754 single at offset.
func (w Window) WriteFloat32(offset int, v float32) error {
	return w.WriteUint32(offset, math.Float32bits(v))
}

// WriteFloat64 writes a little-endian IEEE-754 double at offset.
func (w Window) WriteFloat64(offset int, v float64) error {
	return w.WriteUint64(offset, math.Float64bits(v))
}

// CopyIn copies data into w starting at offset.
func (w Window) CopyIn(offset int, data []byte) error {
	if err := w.need(offset, len(data)); err != nil {
		return err
	}
	copy(w.buf[w.begin+offset:w.begin+offset+len(data)], data)
	return nil
}

// CopyOut returns a copy of length bytes starting at offset.
func (w Window) CopyOut(offset, length int) ([]byte, error) {
	if err := w.need(offset, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, w.buf[w.begin+offset:w.begin+offset+length])
	return out, nil
}

// AlignUp rounds offset up to the next multiple of align (align must be
// a power of two: 1, 2, 4, or 8).
func AlignUp(offset, align int) int {
	if align <= 1 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// WriteAlignPad zero-fills from offset up to the next multiple of align,
// returning the padded offset.
func (w Window) WriteAlignPad(offset, align int) (int, error) {
	padded := AlignUp(offset, align)
	if padded == offset {
		return offset, nil
	}
	if err := w.need(offset, padded-offset); err != nil {
		return 0, err
	}
	for i := offset; i < padded; i++ {
		w.buf[w.begin+i] = 0
	}
	return padded, nil
}
