package cip

import "github.com/tturner/absim/internal/wire"

// forwardCloseMinBody is priority/tick(1) + timeout_ticks(1) +
// conn_serial(2) + vendor_id(2) + orig_serial(4) + path_size(1) +
// pad(1) + minimum 2-word connection EPATH(4).
const forwardCloseMinBody = 1 + 1 + 2 + 2 + 4 + 1 + 1 + 4

// HandleForwardClose parses and executes a Forward Close request against
// conn, writing the CIP reply into respWindow. It returns the number of
// bytes written; on success it marks conn closed.
func HandleForwardClose(conn *Connection, reqPayload wire.Window, respWindow wire.Window, expectedEPATH []byte) (int, error) {
	pathSizeWords, err := reqPayload.ReadUint8(0)
	if err != nil {
		n, werr := writeForwardCloseStatus(respWindow, StatusInsufficientData, nil)
		return n, werr
	}
	cmEPATHLen := int(pathSizeWords) * 2
	body, err := reqPayload.Sub(1+cmEPATHLen, reqPayload.Len()-1-cmEPATHLen)
	if err != nil || body.Len() < forwardCloseMinBody {
		return writeForwardCloseStatus(respWindow, StatusInsufficientData, nil)
	}

	connSerial, _ := body.ReadUint16(2)
	vendorID, _ := body.ReadUint16(4)
	originatorSerial, _ := body.ReadUint32(6)

	// path_size(1) + pad(1), then the padded connection EPATH.
	connPathSizeWords, _ := body.ReadUint8(10)
	connEPATH, err := body.CopyOut(12, int(connPathSizeWords)*2)
	if err != nil {
		return writeForwardCloseStatus(respWindow, StatusInsufficientData, nil)
	}

	if !epathsEqual(connEPATH, expectedEPATH) {
		return writeForwardCloseStatus(respWindow, StatusPathDestUnknown, nil)
	}

	if connSerial != conn.ConnSerialNumber || vendorID != conn.VendorID || originatorSerial != conn.OriginatorSerialNumber {
		return writeForwardCloseStatus(respWindow, StatusInvalidParameter, nil)
	}

	conn.Open = false

	data, err := EncodeResponse(respWindow, ServiceForwardClose, StatusSuccess, nil)
	if err != nil {
		return 0, err
	}
	headerLen := respWindow.Len() - data.Len()
	if err := data.WriteUint16(0, connSerial); err != nil {
		return 0, err
	}
	if err := data.WriteUint16(2, vendorID); err != nil {
		return 0, err
	}
	if err := data.WriteUint32(4, originatorSerial); err != nil {
		return 0, err
	}
	if err := data.WriteUint8(8, 0); err != nil { // application_reply_size
		return 0, err
	}
	if err := data.WriteUint8(9, 0); err != nil { // reserved
		return 0, err
	}
	return headerLen + 10, nil
}

func writeForwardCloseStatus(respWindow wire.Window, status uint8, extWords []uint16) (int, error) {
	data, err := EncodeResponse(respWindow, ServiceForwardClose, status, extWords)
	if err != nil {
		return 0, err
	}
	return respWindow.Len() - data.Len(), nil
}
