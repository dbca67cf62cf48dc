// Package pccc implements the legacy Programmable Controller
// Communication Commands protocol for PLC/5, SLC 500, and MicroLogix,
// tunneled through CIP Execute PCCC (service 0x4B).
package pccc

import (
	"errors"

	"github.com/tturner/absim/internal/cip"
	"github.com/tturner/absim/internal/tagstore"
	"github.com/tturner/absim/internal/wire"
)

// Command is the PCCC command byte.
type Command uint8

const (
	CmdPLC5Write        Command = 0x00
	CmdPLC5Read         Command = 0x01
	CmdSLCProtectedRead Command = 0xA2
	CmdSLCProtectedWrite Command = 0xAA
)

// ErrCode is the err_code byte of a failure reply.
type ErrCode uint8

// Error codes, reported in the err_code byte of a failure reply.
const (
	ErrAddressNotUsable  ErrCode = 0x06
	ErrFileWrongSize     ErrCode = 0x07
	ErrCommandNotDecoded ErrCode = 0x0E
)

const (
	pcccPrefix uint16 = 0x000F
	dataFilePrefixByte uint8 = 0x06
	maxResponseBytes   = 240
)

// fixedPrefix is the 7-byte constant that follows the CIP Connection
// Manager EPATH on both the request and the reply.
var fixedPrefix = [7]byte{0x07, 0x3d, 0xf3, 0x45, 0x43, 0x50, 0x21}

// cipHeaderLen is the 4-byte CIP reply header plus the echoed 7-byte
// fixed prefix, reserved up front and back-filled once the PCCC body is
// known, mirroring the source's response_prefix_offset back-fill.
const cipHeaderLen = 4 + len(fixedPrefix)

// ErrMalformed covers a PCCC request this simulator cannot parse at all
// (short buffer, wrong prefix) — distinct from a well-formed request
// whose address or size is invalid, which gets its own PCCC error code.
var ErrMalformed = errors.New("pccc: malformed request")

// HandleExecutePCCC parses the CIP Execute PCCC request body (everything
// after the service byte) and writes the full CIP+PCCC reply into
// respWindow, returning the number of bytes written.
func HandleExecutePCCC(reqPayload wire.Window, respWindow wire.Window, store *tagstore.Store) (int, error) {
	pathSizeWords, err := reqPayload.ReadUint8(0)
	if err != nil {
		return 0, ErrMalformed
	}
	pos := 1 + int(pathSizeWords)*2

	prefixBytes, err := reqPayload.CopyOut(pos, len(fixedPrefix))
	if err != nil {
		return 0, ErrMalformed
	}
	for i, b := range fixedPrefix {
		if prefixBytes[i] != b {
			return 0, ErrMalformed
		}
	}
	pos += len(fixedPrefix)

	prefix, err := reqPayload.ReadUint16(pos)
	if err != nil || prefix != pcccPrefix {
		return 0, ErrMalformed
	}
	pos += 2 + 2 // the 2-byte prefix, then 2 ignored bytes

	seq, err := reqPayload.ReadUint16(pos)
	if err != nil {
		return 0, ErrMalformed
	}
	pos += 2

	cmdByte, err := reqPayload.ReadUint8(pos)
	if err != nil {
		return 0, ErrMalformed
	}
	pos++

	body, err := reqPayload.Sub(pos, reqPayload.Len()-pos)
	if err != nil {
		return 0, ErrMalformed
	}

	header, reply, err := respWindow.Split(cipHeaderLen)
	if err != nil {
		return 0, err
	}
	if err := writeCIPHeader(header); err != nil {
		return 0, err
	}

	var bodyLen int
	switch Command(cmdByte) {
	case CmdPLC5Read:
		bodyLen, err = handlePLC5Read(body, seq, store, reply)
	case CmdPLC5Write:
		bodyLen, err = handlePLC5Write(body, seq, store, reply)
	case CmdSLCProtectedRead:
		bodyLen, err = handleSLCRead(body, seq, store, reply)
	case CmdSLCProtectedWrite:
		bodyLen, err = handleSLCWrite(body, seq, store, reply)
	default:
		bodyLen, err = writeError(reply, seq, ErrCommandNotDecoded)
	}
	if err != nil {
		return 0, err
	}

	return cipHeaderLen + bodyLen, nil
}

func writeCIPHeader(header wire.Window) error {
	if err := header.WriteUint8(0, uint8(cip.ServiceExecutePCCC)|0x80); err != nil {
		return err
	}
	if err := header.WriteUint8(1, 0); err != nil {
		return err
	}
	if err := header.WriteUint8(2, 0); err != nil {
		return err
	}
	if err := header.WriteUint8(3, 0); err != nil {
		return err
	}
	return header.CopyIn(4, fixedPrefix[:])
}

func writeSuccess(reply wire.Window, seq uint16, data []byte) (int, error) {
	if err := reply.WriteUint8(0, 0x4F); err != nil {
		return 0, err
	}
	if err := reply.WriteUint8(1, 0x00); err != nil {
		return 0, err
	}
	if err := reply.WriteUint16(2, seq); err != nil {
		return 0, err
	}
	if len(data) > 0 {
		if err := reply.CopyIn(4, data); err != nil {
			return 0, err
		}
	}
	return 4 + len(data), nil
}

func writeError(reply wire.Window, seq uint16, code ErrCode) (int, error) {
	if err := reply.WriteUint8(0, 0x4F); err != nil {
		return 0, err
	}
	if err := reply.WriteUint8(1, 0xF0); err != nil {
		return 0, err
	}
	if err := reply.WriteUint16(2, seq); err != nil {
		return 0, err
	}
	if err := reply.WriteUint8(4, uint8(code)); err != nil {
		return 0, err
	}
	return 5, nil
}

func handlePLC5Read(body wire.Window, seq uint16, store *tagstore.Store, reply wire.Window) (int, error) {
	offset, err := body.ReadUint16(0)
	if err != nil {
		return writeError(reply, seq, ErrFileWrongSize)
	}
	transferSize, _ := body.ReadUint16(2)
	prefixByte, _ := body.ReadUint8(4)
	if prefixByte != dataFilePrefixByte {
		return writeError(reply, seq, ErrAddressNotUsable)
	}
	dataFileNum, _ := body.ReadUint8(5)
	dataFileElement, _ := body.ReadUint8(6)

	tag, err := store.FindByDataFile(int(dataFileNum))
	if err != nil {
		return writeError(reply, seq, ErrAddressNotUsable)
	}

	tagSize := tag.ElemCount * tag.ElemSize
	start := (int(offset) + int(dataFileElement)) * tag.ElemSize
	byteCount := int(transferSize) * tag.ElemSize
	end := start + byteCount

	if start >= tagSize || end > tagSize || byteCount > maxResponseBytes {
		return writeError(reply, seq, ErrFileWrongSize)
	}

	data, err := store.Read(tag, start, byteCount)
	if err != nil {
		return writeError(reply, seq, ErrFileWrongSize)
	}
	return writeSuccess(reply, seq, data)
}

func handlePLC5Write(body wire.Window, seq uint16, store *tagstore.Store, reply wire.Window) (int, error) {
	offset, err := body.ReadUint16(0)
	if err != nil {
		return writeError(reply, seq, ErrFileWrongSize)
	}
	transferSize, _ := body.ReadUint16(2)
	prefixByte, _ := body.ReadUint8(4)
	if prefixByte != dataFilePrefixByte {
		return writeError(reply, seq, ErrAddressNotUsable)
	}
	dataFileNum, _ := body.ReadUint8(5)
	dataFileElement, _ := body.ReadUint8(6)

	tag, err := store.FindByDataFile(int(dataFileNum))
	if err != nil {
		return writeError(reply, seq, ErrAddressNotUsable)
	}

	tagSize := tag.ElemCount * tag.ElemSize
	start := (int(offset) + int(dataFileElement)) * tag.ElemSize
	byteCount := int(transferSize) * tag.ElemSize
	end := start + byteCount

	if start >= tagSize || end > tagSize {
		return writeError(reply, seq, ErrFileWrongSize)
	}

	payload, err := body.Sub(7, body.Len()-7)
	if err != nil || payload.Len() != byteCount {
		return writeError(reply, seq, ErrFileWrongSize)
	}
	if err := store.Write(tag, start, payload.Bytes()); err != nil {
		return writeError(reply, seq, ErrFileWrongSize)
	}
	return writeSuccess(reply, seq, nil)
}

func handleSLCRead(body wire.Window, seq uint16, store *tagstore.Store, reply wire.Window) (int, error) {
	transferSize, err := body.ReadUint8(0)
	if err != nil {
		return writeError(reply, seq, ErrFileWrongSize)
	}
	dataFileNum, _ := body.ReadUint8(1)
	dataFileType, _ := body.ReadUint8(2)
	dataFileElement, _ := body.ReadUint8(3)
	dataFileSubelement, _ := body.ReadUint8(4)

	if dataFileSubelement != 0 {
		return writeError(reply, seq, ErrAddressNotUsable)
	}

	tag, err := store.FindByDataFile(int(dataFileNum))
	if err != nil {
		return writeError(reply, seq, ErrAddressNotUsable)
	}
	if uint16(dataFileType) != uint16(tag.Type) {
		return writeError(reply, seq, ErrAddressNotUsable)
	}

	tagSize := tag.ElemCount * tag.ElemSize
	start := int(dataFileElement) * tag.ElemSize
	end := start + int(transferSize)

	if start >= tagSize || end > tagSize || int(transferSize) > maxResponseBytes {
		return writeError(reply, seq, ErrFileWrongSize)
	}

	data, err := store.Read(tag, start, int(transferSize))
	if err != nil {
		return writeError(reply, seq, ErrFileWrongSize)
	}
	return writeSuccess(reply, seq, data)
}

func handleSLCWrite(body wire.Window, seq uint16, store *tagstore.Store, reply wire.Window) (int, error) {
	transferSize, err := body.ReadUint8(0)
	if err != nil {
		return writeError(reply, seq, ErrFileWrongSize)
	}
	dataFileNum, _ := body.ReadUint8(1)
	dataFileType, _ := body.ReadUint8(2)
	dataFileElement, _ := body.ReadUint8(3)
	dataFileSubelement, _ := body.ReadUint8(4)

	if dataFileSubelement != 0 {
		return writeError(reply, seq, ErrAddressNotUsable)
	}

	tag, err := store.FindByDataFile(int(dataFileNum))
	if err != nil {
		return writeError(reply, seq, ErrAddressNotUsable)
	}
	if uint16(dataFileType) != uint16(tag.Type) {
		return writeError(reply, seq, ErrAddressNotUsable)
	}

	tagSize := tag.ElemCount * tag.ElemSize
	start := int(dataFileElement) * tag.ElemSize
	end := start + int(transferSize)

	if start >= tagSize || end > tagSize {
		return writeError(reply, seq, ErrFileWrongSize)
	}

	payload, err := body.Sub(5, body.Len()-5)
	if err != nil || payload.Len() != int(transferSize) {
		return writeError(reply, seq, ErrFileWrongSize)
	}
	if err := store.Write(tag, start, payload.Bytes()); err != nil {
		return writeError(reply, seq, ErrFileWrongSize)
	}
	return writeSuccess(reply, seq, nil)
}
