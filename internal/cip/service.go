// Package cip implements the Common Industrial Protocol command
// dispatcher: Forward Open/Close, Read Tag/Fragmented, Write
// Tag/Fragmented, and EPATH parsing.
package cip

import (
	"github.com/tturner/absim/internal/wire"
)

// ServiceCode is the first byte of a CIP request, and (with bit 0x80 set)
// of its reply.
type ServiceCode uint8

const (
	ServiceForwardOpen         ServiceCode = 0x54
	ServiceForwardOpenExtended ServiceCode = 0x5B
	ServiceForwardClose        ServiceCode = 0x4E
	ServiceReadTag             ServiceCode = 0x4C
	ServiceReadTagFragmented   ServiceCode = 0x52
	ServiceWriteTag            ServiceCode = 0x4D
	ServiceWriteTagFragmented  ServiceCode = 0x53
	ServiceExecutePCCC         ServiceCode = 0x4B

	replyBit ServiceCode = 0x80
)

// General status codes, per the error taxonomy.
const (
	StatusSuccess              uint8 = 0x00
	StatusPathDestUnknown      uint8 = 0x05 // EPATH mismatch
	StatusUnsupportedService   uint8 = 0x08
	StatusInsufficientData     uint8 = 0x13
	StatusPartialTransfer      uint8 = 0x06 // reply data too large
	StatusInvalidParameter     uint8 = 0x20
	StatusConnectionFailure    uint8 = 0x01 // Forward Open rejection
	StatusExtended             uint8 = 0xFF
)

// Extended status words.
const (
	ExtTooMuchData         uint16 = 0x2105
	ExtDuplicateConnection uint16 = 0x0100
)

// responseHeaderSize is service(1) + reserved(1) + general_status(1) +
// extended_status_word_count(1), before any extended status words.
const responseHeaderSize = 4

// EncodeResponse writes the CIP reply header (service|0x80, reserved=0,
// generalStatus, len(extWords), extWords...) into the front of w and
// returns the sub-window for service-specific reply data.
func EncodeResponse(w wire.Window, service ServiceCode, generalStatus uint8, extWords []uint16) (wire.Window, error) {
	headerLen := responseHeaderSize + 2*len(extWords)
	header, data, err := w.Split(headerLen)
	if err != nil {
		return wire.Window{}, err
	}
	if err := header.WriteUint8(0, uint8(service)|uint8(replyBit)); err != nil {
		return wire.Window{}, err
	}
	if err := header.WriteUint8(1, 0); err != nil {
		return wire.Window{}, err
	}
	if err := header.WriteUint8(2, generalStatus); err != nil {
		return wire.Window{}, err
	}
	if err := header.WriteUint8(3, uint8(len(extWords))); err != nil {
		return wire.Window{}, err
	}
	for i, ew := range extWords {
		if err := header.WriteUint16(responseHeaderSize+2*i, ew); err != nil {
			return wire.Window{}, err
		}
	}
	return data, nil
}
