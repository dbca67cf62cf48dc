// Package eip implements the EtherNet/IP encapsulation header: the
// 24-byte session-layer frame every request and reply is wrapped in.
package eip

import (
	"errors"

	"github.com/tturner/absim/internal/wire"
)

// HeaderSize is the fixed byte width of the EIP encapsulation header.
const HeaderSize = 24

// Commands this simulator understands.
const (
	CommandRegisterSession   uint16 = 0x0065
	CommandUnregisterSession uint16 = 0x0066
	CommandSendRRData        uint16 = 0x006F
	CommandSendUnitData      uint16 = 0x0070
)

// Status codes, per the EIP encapsulation status space.
const (
	StatusSuccess              uint32 = 0x0000
	StatusInvalidCommand       uint32 = 0x0001 // "unsupported"
	StatusInvalidSessionHandle uint32 = 0x0064
	StatusInvalidLength        uint32 = 0x0065 // "bad_param"
)

// ErrIncomplete means fewer than HeaderSize bytes are available; the
// caller should read more from the transport rather than treat this as
// malformed input.
var ErrIncomplete = errors.New("eip: incomplete header")

// ErrLengthOverflow means the header's length field claims more payload
// than the buffer can hold — a fatal framing error, per the error taxonomy.
var ErrLengthOverflow = errors.New("eip: length exceeds buffer capacity")

// Header is the decoded 24-byte EIP encapsulation header.
type Header struct {
	Command       uint16
	Length        uint16
	SessionHandle uint32
	Status        uint32
	SenderContext [8]byte
	Options       uint32
}

// DecodeHeader parses the 24-byte header from the front of buf. It does
// not validate that len(buf) - HeaderSize >= int(header.Length); callers
// compare that against their own payload window capacity and treat an
// overflow as fatal.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrIncomplete
	}
	w := wire.NewWindow(buf[:HeaderSize])

	var h Header
	cmd, _ := w.ReadUint16(0)
	length, _ := w.ReadUint16(2)
	session, _ := w.ReadUint32(4)
	status, _ := w.ReadUint32(8)
	ctx, _ := w.CopyOut(12, 8)
	opts, _ := w.ReadUint32(20)

	h.Command = cmd
	h.Length = length
	h.SessionHandle = session
	h.Status = status
	copy(h.SenderContext[:], ctx)
	h.Options = opts
	return h, nil
}

// EncodeHeader writes h into w, which must be exactly HeaderSize bytes
// (typically the prefix produced by splitting a response window).
func EncodeHeader(w wire.Window, h Header) error {
	if w.Len() != HeaderSize {
		return wire.ErrShortBuffer
	}
	if err := w.WriteUint16(0, h.Command); err != nil {
		return err
	}
	if err := w.WriteUint16(2, h.Length); err != nil {
		return err
	}
	if err := w.WriteUint32(4, h.SessionHandle); err != nil {
		return err
	}
	if err := w.WriteUint32(8, h.Status); err != nil {
		return err
	}
	if err := w.CopyIn(12, h.SenderContext[:]); err != nil {
		return err
	}
	return w.WriteUint32(20, h.Options)
}
