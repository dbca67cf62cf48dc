// Package cpf implements Common Packet Format framing: the item-list
// layer nested inside an EIP Send RR Data (unconnected) or Send Unit Data
// (connected) payload.
package cpf

import (
	"errors"

	"github.com/tturner/absim/internal/wire"
)

// CPF item type codes.
const (
	ItemNullAddress      uint16 = 0x0000
	ItemConnectedAddress uint16 = 0x00A1
	ItemConnectedData    uint16 = 0x00B1
	ItemUnconnectedData  uint16 = 0x00B2
)

const requiredItemCount = 2

var (
	// ErrBadFrame covers any structural CPF violation: wrong item count,
	// wrong item type, a length field that disagrees with the actual
	// payload. It is always recoverable at this layer.
	ErrBadFrame = errors.New("cpf: malformed frame")
)

// UnconnectedRequest is a decoded Send RR Data payload: everything but
// the CIP bytes nested inside it.
type UnconnectedRequest struct {
	InterfaceHandle uint32
	RouterTimeout   uint16
	CIP             wire.Window
}

// unconnectedHeaderSize is interface_handle(4) + router_timeout(2) +
// item_count(2) + addr_item_type(2) + addr_item_length(2) +
// data_item_type(2) + data_item_length(2).
const unconnectedHeaderSize = 16

// DecodeUnconnected parses a CPF unconnected frame out of payload (the
// bytes carried by a Send RR Data request).
func DecodeUnconnected(payload wire.Window) (UnconnectedRequest, error) {
	if payload.Len() < unconnectedHeaderSize {
		return UnconnectedRequest{}, ErrBadFrame
	}
	ifaceHandle, _ := payload.ReadUint32(0)
	routerTimeout, _ := payload.ReadUint16(4)
	itemCount, _ := payload.ReadUint16(6)
	addrType, _ := payload.ReadUint16(8)
	addrLen, _ := payload.ReadUint16(10)
	dataType, _ := payload.ReadUint16(12)
	dataLen, _ := payload.ReadUint16(14)

	if itemCount != requiredItemCount {
		return UnconnectedRequest{}, ErrBadFrame
	}
	if addrType != ItemNullAddress || addrLen != 0 {
		return UnconnectedRequest{}, ErrBadFrame
	}
	if dataType != ItemUnconnectedData {
		return UnconnectedRequest{}, ErrBadFrame
	}

	cip, err := payload.Sub(unconnectedHeaderSize, payload.Len()-unconnectedHeaderSize)
	if err != nil {
		return UnconnectedRequest{}, ErrBadFrame
	}
	if int(dataLen) != cip.Len() {
		return UnconnectedRequest{}, ErrBadFrame
	}

	return UnconnectedRequest{
		InterfaceHandle: ifaceHandle,
		RouterTimeout:   routerTimeout,
		CIP:             cip,
	}, nil
}

// EncodeUnconnected writes a CPF unconnected reply frame into w, echoing
// req's interface_handle and router_timeout, with data_item_length left
// at 0. Returns the header window and the sub-window the caller should
// have the CIP layer encode its reply into; call FinishUnconnected after
// the CIP layer reports how many bytes it wrote.
func EncodeUnconnected(w wire.Window, req UnconnectedRequest) (header, cipWindow wire.Window, err error) {
	header, cipWindow, err = w.Split(unconnectedHeaderSize)
	if err != nil {
		return wire.Window{}, wire.Window{}, err
	}
	if err := writeUnconnectedHeader(header, req.InterfaceHandle, req.RouterTimeout, 0); err != nil {
		return wire.Window{}, wire.Window{}, err
	}
	return header, cipWindow, nil
}

// FinishUnconnected back-patches data_item_length once the CIP layer has
// reported cipLen, the number of bytes it actually wrote.
func FinishUnconnected(header wire.Window, ifaceHandle uint32, routerTimeout uint16, cipLen int) error {
	return writeUnconnectedHeader(header, ifaceHandle, routerTimeout, cipLen)
}

func writeUnconnectedHeader(header wire.Window, ifaceHandle uint32, routerTimeout uint16, dataLen int) error {
	if header.Len() != unconnectedHeaderSize {
		return wire.ErrShortBuffer
	}
	if err := header.WriteUint32(0, ifaceHandle); err != nil {
		return err
	}
	if err := header.WriteUint16(4, routerTimeout); err != nil {
		return err
	}
	if err := header.WriteUint16(6, requiredItemCount); err != nil {
		return err
	}
	if err := header.WriteUint16(8, ItemNullAddress); err != nil {
		return err
	}
	if err := header.WriteUint16(10, 0); err != nil {
		return err
	}
	if err := header.WriteUint16(12, ItemUnconnectedData); err != nil {
		return err
	}
	return header.WriteUint16(14, uint16(dataLen))
}

// ConnectedRequest is a decoded Send Unit Data payload.
type ConnectedRequest struct {
	InterfaceHandle    uint32
	RouterTimeout      uint16
	ConnectionID       uint32
	ConnectionSequence uint16
	CIP                wire.Window
}

// connectedHeaderSize is unconnectedHeaderSize plus the 4-byte
// connection_id inserted between the address and data items.
const connectedHeaderSize = unconnectedHeaderSize + 4

// DecodeConnected parses a CPF connected frame out of payload (the bytes
// carried by a Send Unit Data request). expectedConnID is the
// session's server_connection_id from the paired Forward Open.
func DecodeConnected(payload wire.Window, expectedConnID uint32) (ConnectedRequest, error) {
	if payload.Len() < connectedHeaderSize+2 {
		return ConnectedRequest{}, ErrBadFrame
	}
	ifaceHandle, _ := payload.ReadUint32(0)
	routerTimeout, _ := payload.ReadUint16(4)
	itemCount, _ := payload.ReadUint16(6)
	addrType, _ := payload.ReadUint16(8)
	addrLen, _ := payload.ReadUint16(10)
	connID, _ := payload.ReadUint32(12)
	dataType, _ := payload.ReadUint16(16)
	dataLen, _ := payload.ReadUint16(18)

	if itemCount != requiredItemCount {
		return ConnectedRequest{}, ErrBadFrame
	}
	if addrType != ItemConnectedAddress || addrLen != 4 {
		return ConnectedRequest{}, ErrBadFrame
	}
	if dataType != ItemConnectedData {
		return ConnectedRequest{}, ErrBadFrame
	}
	if connID != expectedConnID {
		return ConnectedRequest{}, ErrBadFrame
	}

	rest, err := payload.Sub(connectedHeaderSize, payload.Len()-connectedHeaderSize)
	if err != nil {
		return ConnectedRequest{}, ErrBadFrame
	}
	if int(dataLen) != rest.Len() {
		return ConnectedRequest{}, ErrBadFrame
	}

	seq, err := rest.ReadUint16(0)
	if err != nil {
		return ConnectedRequest{}, ErrBadFrame
	}
	cip, err := rest.Sub(2, rest.Len()-2)
	if err != nil {
		return ConnectedRequest{}, ErrBadFrame
	}

	return ConnectedRequest{
		InterfaceHandle:    ifaceHandle,
		RouterTimeout:      routerTimeout,
		ConnectionID:       connID,
		ConnectionSequence: seq,
		CIP:                cip,
	}, nil
}

// EncodeConnected reserves and fills the connected reply header in w
// (echoing req's framing fields and connection sequence), returning the
// sub-window the CIP layer should encode its reply into.
func EncodeConnected(w wire.Window, req ConnectedRequest) (header, cipWindow wire.Window, err error) {
	fixed, err := w.Sub(0, connectedHeaderSize)
	if err != nil {
		return wire.Window{}, wire.Window{}, err
	}
	seq, err := w.Sub(connectedHeaderSize, 2)
	if err != nil {
		return wire.Window{}, wire.Window{}, err
	}
	cipWindow, err = w.Sub(connectedHeaderSize+2, w.Len()-connectedHeaderSize-2)
	if err != nil {
		return wire.Window{}, wire.Window{}, err
	}
	if err := writeConnectedHeader(fixed, req.InterfaceHandle, req.RouterTimeout, req.ConnectionID, 0); err != nil {
		return wire.Window{}, wire.Window{}, err
	}
	if err := seq.WriteUint16(0, req.ConnectionSequence); err != nil {
		return wire.Window{}, wire.Window{}, err
	}
	return fixed, cipWindow, nil
}

// FinishConnected back-patches data_item_length once the CIP layer has
// reported cipLen, the number of bytes it actually wrote (the connection
// sequence is part of the data item, so dataLen = 2 + cipLen).
func FinishConnected(header wire.Window, req ConnectedRequest, cipLen int) error {
	return writeConnectedHeader(header, req.InterfaceHandle, req.RouterTimeout, req.ConnectionID, 2+cipLen)
}

func writeConnectedHeader(header wire.Window, ifaceHandle uint32, routerTimeout uint16, connID uint32, dataLen int) error {
	if header.Len() != connectedHeaderSize {
		return wire.ErrShortBuffer
	}
	if err := header.WriteUint32(0, ifaceHandle); err != nil {
		return err
	}
	if err := header.WriteUint16(4, routerTimeout); err != nil {
		return err
	}
	if err := header.WriteUint16(6, requiredItemCount); err != nil {
		return err
	}
	if err := header.WriteUint16(8, ItemConnectedAddress); err != nil {
		return err
	}
	if err := header.WriteUint16(10, 4); err != nil {
		return err
	}
	if err := header.WriteUint32(12, connID); err != nil {
		return err
	}
	if err := header.WriteUint16(16, ItemConnectedData); err != nil {
		return err
	}
	return header.WriteUint16(18, uint16(dataLen))
}
