package cip

import (
	"github.com/tturner/absim/internal/randid"
	"github.com/tturner/absim/internal/wire"
)

const (
	classicFixedFieldsLen  = 35
	extendedFixedFieldsLen = 39
	classicMinBody         = classicFixedFieldsLen + 1  // fixed fields + conn_path_size byte
	extendedMinBody        = extendedFixedFieldsLen + 1

	classicParamMask  uint32 = 0x1FF
	extendedParamMask uint32 = 0x0FFF
	otClassicOffset   uint32 = 64
)

type forwardOpenFixed struct {
	clientConnectionID    uint32
	connSerialNumber      uint16
	vendorID              uint16
	originatorSerialNumber uint32
	otRPI                  uint32
	otParams               uint32
	toRPI                  uint32
	toParams               uint32
}

// parseForwardOpenBody skips the leading (path_size, CM EPATH) prefix,
// validates the remaining body length, parses the fixed fields, and
// returns the trailing connection EPATH bytes.
func parseForwardOpenBody(payload wire.Window, extended bool) (forwardOpenFixed, []byte, error) {
	pathSizeWords, err := payload.ReadUint8(0)
	if err != nil {
		return forwardOpenFixed{}, nil, ErrMalformedEPATH
	}
	cmEPATHLen := int(pathSizeWords) * 2
	body, err := payload.Sub(1+cmEPATHLen, payload.Len()-1-cmEPATHLen)
	if err != nil {
		return forwardOpenFixed{}, nil, ErrMalformedEPATH
	}

	min := classicMinBody
	if extended {
		min = extendedMinBody
	}
	if body.Len() < min {
		return forwardOpenFixed{}, nil, ErrMalformedEPATH
	}

	var f forwardOpenFixed
	// priority/time_tick(1), timeout_ticks(1), O->T connid(4, ignored —
	// the server mints its own), T->O connid(4, client-supplied, echoed
	// back verbatim on every connected reply).
	pos := 2 + 4
	f.clientConnectionID, _ = body.ReadUint32(pos)
	pos += 4
	f.connSerialNumber, _ = body.ReadUint16(pos)
	pos += 2
	f.vendorID, _ = body.ReadUint16(pos)
	pos += 2
	f.originatorSerialNumber, _ = body.ReadUint32(pos)
	pos += 4
	pos += 1 + 3 // conn_timeout_multiplier + reserved
	f.otRPI, _ = body.ReadUint32(pos)
	pos += 4
	if extended {
		f.otParams, _ = body.ReadUint32(pos)
		pos += 4
	} else {
		v, _ := body.ReadUint16(pos)
		f.otParams = uint32(v)
		pos += 2
	}
	f.toRPI, _ = body.ReadUint32(pos)
	pos += 4
	if extended {
		f.toParams, _ = body.ReadUint32(pos)
		pos += 4
	} else {
		v, _ := body.ReadUint16(pos)
		f.toParams = uint32(v)
		pos += 2
	}
	pos += 1 // transport_class_and_trigger

	connPathSizeWords, err := body.ReadUint8(pos)
	if err != nil {
		return forwardOpenFixed{}, nil, ErrMalformedEPATH
	}
	pos++
	connEPATHLen := int(connPathSizeWords) * 2
	connEPATH, err := body.CopyOut(pos, connEPATHLen)
	if err != nil {
		return forwardOpenFixed{}, nil, ErrMalformedEPATH
	}

	return f, connEPATH, nil
}

func epathsEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func negotiateMaxPacket(params uint32, extended, otDirection bool) int {
	mask := classicParamMask
	if extended {
		mask = extendedParamMask
	}
	offset := uint32(0)
	if otDirection && !extended {
		offset = otClassicOffset
	}
	return int(params&mask) + int(offset)
}

// HandleForwardOpen parses and executes a Forward Open (classic or
// extended) request against conn, writing the CIP reply into respWindow.
// It returns the number of bytes written.
func HandleForwardOpen(conn *Connection, service ServiceCode, reqPayload wire.Window, respWindow wire.Window, expectedEPATH []byte, ids *randid.Source) (int, error) {
	extended := service == ServiceForwardOpenExtended

	fixed, connEPATH, err := parseForwardOpenBody(reqPayload, extended)
	if err != nil {
		data, werr := EncodeResponse(respWindow, service, StatusInsufficientData, nil)
		if werr != nil {
			return 0, werr
		}
		return respWindow.Len() - data.Len(), nil
	}

	if !epathsEqual(connEPATH, expectedEPATH) {
		data, werr := EncodeResponse(respWindow, service, StatusPathDestUnknown, nil)
		if werr != nil {
			return 0, werr
		}
		return respWindow.Len() - data.Len(), nil
	}

	if conn.RejectRemaining > 0 {
		conn.RejectRemaining--
		data, werr := EncodeResponse(respWindow, service, StatusConnectionFailure, []uint16{ExtDuplicateConnection})
		if werr != nil {
			return 0, werr
		}
		return respWindow.Len() - data.Len(), nil
	}

	conn.Open = true
	conn.ServerConnectionID = ids.Uint32()
	conn.ClientConnectionID = fixed.clientConnectionID
	conn.ConnectionSequence = ids.Uint16()
	conn.ConnSerialNumber = fixed.connSerialNumber
	conn.VendorID = fixed.vendorID
	conn.OriginatorSerialNumber = fixed.originatorSerialNumber
	conn.OTRPI = fixed.otRPI
	conn.TORPI = fixed.toRPI
	conn.OTMaxPacket = negotiateMaxPacket(fixed.otParams, extended, true)
	conn.TOMaxPacket = negotiateMaxPacket(fixed.toParams, extended, false)

	data, err := EncodeResponse(respWindow, service, StatusSuccess, nil)
	if err != nil {
		return 0, err
	}
	headerLen := respWindow.Len() - data.Len()
	if err := data.WriteUint32(0, conn.ServerConnectionID); err != nil {
		return 0, err
	}
	if err := data.WriteUint32(4, conn.ClientConnectionID); err != nil {
		return 0, err
	}
	if err := data.WriteUint16(8, conn.ConnSerialNumber); err != nil {
		return 0, err
	}
	if err := data.WriteUint16(10, conn.VendorID); err != nil {
		return 0, err
	}
	if err := data.WriteUint32(12, conn.OriginatorSerialNumber); err != nil {
		return 0, err
	}
	if err := data.WriteUint32(16, conn.OTRPI); err != nil {
		return 0, err
	}
	if err := data.WriteUint32(20, conn.TORPI); err != nil {
		return 0, err
	}
	if err := data.WriteUint8(24, 0); err != nil { // application_reply_size
		return 0, err
	}
	if err := data.WriteUint8(25, 0); err != nil { // reserved
		return 0, err
	}
	const bodyLen = 26
	return headerLen + bodyLen, nil
}
