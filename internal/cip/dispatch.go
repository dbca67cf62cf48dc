package cip

import (
	"github.com/tturner/absim/internal/family"
	"github.com/tturner/absim/internal/randid"
	"github.com/tturner/absim/internal/tagstore"
	"github.com/tturner/absim/internal/wire"
)

// Dispatch routes a decoded CIP request (req, the bytes following the
// service code) to its service handler and writes the reply into
// respWindow. It returns the number of bytes written. PCCC (service
// 0x4B) is not handled here — the caller routes that to the pccc
// package, which shares this package's response header encoding.
func Dispatch(service ServiceCode, req wire.Window, respWindow wire.Window, conn *Connection, store *tagstore.Store, fam family.Family, expectedEPATH []byte, ids *randid.Source) (int, error) {
	switch service {
	case ServiceForwardOpen, ServiceForwardOpenExtended:
		return HandleForwardOpen(conn, service, req, respWindow, expectedEPATH, ids)
	case ServiceForwardClose:
		return HandleForwardClose(conn, req, respWindow, expectedEPATH)
	case ServiceReadTag, ServiceReadTagFragmented:
		return HandleReadTag(service, req, respWindow, store, fam)
	case ServiceWriteTag, ServiceWriteTagFragmented:
		return HandleWriteTag(service, req, respWindow, store)
	default:
		return writeStatusOnly(respWindow, service, StatusUnsupportedService, nil)
	}
}
