package simserver

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/tturner/absim/internal/eip"
	"github.com/tturner/absim/internal/family"
	"github.com/tturner/absim/internal/logging"
	"github.com/tturner/absim/internal/randid"
	"github.com/tturner/absim/internal/tagstore"
)

func newTestServer(t *testing.T, fam family.Family, expectedEPATH []byte, tags []*tagstore.Tag) (*Server, net.Conn) {
	t.Helper()
	logger, err := logging.NewLogger(logging.LogLevelSilent, "")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	store := tagstore.NewStore(tags)
	srv := NewServer(Config{
		Family:        fam,
		ExpectedEPATH: expectedEPATH,
		Port:          0,
		Logger:        logger,
		Store:         store,
	}, randid.NewSource(1))
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	return srv, conn
}

func sendRecv(t *testing.T, conn net.Conn, req []byte) []byte {
	t.Helper()
	if _, err := conn.Write(req); err != nil {
		t.Fatalf("write: %v", err)
	}
	hdr := make([]byte, eip.HeaderSize)
	if _, err := readFull(conn, hdr); err != nil {
		t.Fatalf("read header: %v", err)
	}
	length := binary.LittleEndian.Uint16(hdr[2:4])
	payload := make([]byte, length)
	if length > 0 {
		if _, err := readFull(conn, payload); err != nil {
			t.Fatalf("read payload: %v", err)
		}
	}
	return append(hdr, payload...)
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func eipHeader(command uint16, length uint16, sessionHandle uint32, ctx uint64) []byte {
	h := make([]byte, eip.HeaderSize)
	binary.LittleEndian.PutUint16(h[0:], command)
	binary.LittleEndian.PutUint16(h[2:], length)
	binary.LittleEndian.PutUint32(h[4:], sessionHandle)
	binary.LittleEndian.PutUint64(h[12:], ctx)
	return h
}

func symbolicEPATH(name string, indices ...uint8) []byte {
	var out []byte
	out = append(out, 0x91, byte(len(name)))
	out = append(out, []byte(name)...)
	if len(name)%2 != 0 {
		out = append(out, 0x00)
	}
	for _, idx := range indices {
		out = append(out, 0x28, idx)
	}
	return out
}

// TestLoopbackRegisterForwardOpenWriteRead drives the full stack end to
// end over a real TCP socket: Register Session, Forward Open, Write Tag,
// Read Tag, and asserts read-after-write returns the bytes just written.
func TestLoopbackRegisterForwardOpenWriteRead(t *testing.T) {
	expectedEPATH := []byte{0x20, 0x02, 0x24, 0x01} // Micro800: no --path required
	tag, err := tagstore.NewCIPTag("MyTag", tagstore.TypeDINT, []int{1}, false)
	if err != nil {
		t.Fatalf("NewCIPTag: %v", err)
	}
	_, conn := newTestServer(t, family.Micro800, expectedEPATH, []*tagstore.Tag{tag})

	// Register Session.
	regReq := append(eipHeader(eip.CommandRegisterSession, 4, 0, 0x0102030405060708), 0x01, 0x00, 0x00, 0x00)
	regResp := sendRecv(t, conn, regReq)
	if len(regResp) != eip.HeaderSize+4 {
		t.Fatalf("register session reply len = %d", len(regResp))
	}
	status := binary.LittleEndian.Uint32(regResp[8:12])
	if status != eip.StatusSuccess {
		t.Fatalf("register session status = 0x%X, want 0", status)
	}
	sessionHandle := binary.LittleEndian.Uint32(regResp[4:8])
	if sessionHandle == 0 {
		t.Fatal("session handle must be non-zero")
	}
	if binary.LittleEndian.Uint64(regResp[12:20]) != 0x0102030405060708 {
		t.Fatal("sender_context not echoed verbatim")
	}

	// Forward Open (classic), wrapped in an unconnected CPF frame inside
	// Send RR Data.
	foBody := buildForwardOpenBody(expectedEPATH, false)
	cipReq := append([]byte{0x54}, foBody...)
	cpfReq := buildUnconnectedCPF(cipReq)
	sendRRReq := append(eipHeader(eip.CommandSendRRData, uint16(len(cpfReq)), sessionHandle, 0), cpfReq...)
	sendRRResp := sendRecv(t, conn, sendRRReq)
	cipResp := sendRRResp[eip.HeaderSize+16:] // skip EIP header + CPF unconnected header
	if cipResp[0] != 0xD4 {                   // 0x54 | 0x80
		t.Fatalf("forward open service = 0x%02X", cipResp[0])
	}
	if cipResp[2] != 0x00 {
		t.Fatalf("forward open status = 0x%02X, want 0", cipResp[2])
	}
	connID := binary.LittleEndian.Uint32(cipResp[4:8])
	if connID == 0 {
		t.Fatal("server connection id must be non-zero")
	}

	// Write Tag, connected, over Send Unit Data.
	writeBody := buildWriteTagBody("MyTag", uint16(tagstore.TypeDINT), 1, []byte{0xEF, 0xBE, 0xAD, 0xDE})
	writeCIP := append([]byte{0x4D}, writeBody...)
	connSeq := uint16(1)
	writeCPF := buildConnectedCPF(connID, connSeq, writeCIP)
	writeReq := append(eipHeader(eip.CommandSendUnitData, uint16(len(writeCPF)), sessionHandle, 0), writeCPF...)
	writeResp := sendRecv(t, conn, writeReq)
	writeCIPResp := writeResp[eip.HeaderSize+22:]
	if writeCIPResp[2] != 0x00 {
		t.Fatalf("write tag status = 0x%02X, want 0", writeCIPResp[2])
	}

	// Read it back.
	readBody := buildReadTagBody("MyTag", 1)
	readCIP := append([]byte{0x4C}, readBody...)
	connSeq++
	readCPF := buildConnectedCPF(connID, connSeq, readCIP)
	readReq := append(eipHeader(eip.CommandSendUnitData, uint16(len(readCPF)), sessionHandle, 0), readCPF...)
	readResp := sendRecv(t, conn, readReq)
	readCIPResp := readResp[eip.HeaderSize+22:]
	if readCIPResp[2] != 0x00 {
		t.Fatalf("read tag status = 0x%02X, want 0", readCIPResp[2])
	}
	got := readCIPResp[6:10]
	want := []byte{0xEF, 0xBE, 0xAD, 0xDE}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("read-after-write mismatch: got %x, want %x", got, want)
		}
	}
}

func buildForwardOpenBody(connEPATH []byte, extended bool) []byte {
	req := make([]byte, 0, 64)
	req = append(req, 0x03) // CM path_size
	req = append(req, make([]byte, 6)...)
	req = append(req, 0x0A, 0x0A) // priority, timeout_ticks
	req = append(req, 0, 0, 0, 0) // O->T connid (ignored)
	req = append(req, 1, 0, 0, 0) // T->O connid
	req = append(req, 0x22, 0x11) // conn_serial
	req = append(req, 0x34, 0x12) // vendor id
	req = append(req, 1, 2, 3, 4) // originator serial
	req = append(req, 1)          // timeout multiplier
	req = append(req, 0, 0, 0)    // reserved
	req = append(req, 0x10, 0x27, 0x00, 0x00)
	if extended {
		req = append(req, 0xF4, 0x01, 0x00, 0x00)
	} else {
		req = append(req, 0xF4, 0x43)
	}
	req = append(req, 0x10, 0x27, 0x00, 0x00)
	if extended {
		req = append(req, 0xF4, 0x01, 0x00, 0x00)
	} else {
		req = append(req, 0xF4, 0x43)
	}
	req = append(req, 0xA3)
	req = append(req, byte(len(connEPATH)/2))
	req = append(req, connEPATH...)
	return req
}

func buildWriteTagBody(name string, dataType uint16, elementCount uint16, data []byte) []byte {
	epath := symbolicEPATH(name)
	req := []byte{byte(len(epath) / 2)}
	req = append(req, epath...)
	req = append(req, byte(dataType), byte(dataType>>8))
	req = append(req, byte(elementCount), byte(elementCount>>8))
	req = append(req, data...)
	return req
}

func buildReadTagBody(name string, elementCount uint16) []byte {
	epath := symbolicEPATH(name)
	req := []byte{byte(len(epath) / 2)}
	req = append(req, epath...)
	req = append(req, byte(elementCount), byte(elementCount>>8))
	return req
}

func buildUnconnectedCPF(cip []byte) []byte {
	out := make([]byte, 16)
	binary.LittleEndian.PutUint16(out[6:], 2)      // item_count
	binary.LittleEndian.PutUint16(out[8:], 0x0000) // null address
	binary.LittleEndian.PutUint16(out[12:], 0x00B2)
	binary.LittleEndian.PutUint16(out[14:], uint16(len(cip)))
	return append(out, cip...)
}

func buildConnectedCPF(connID uint32, seq uint16, cip []byte) []byte {
	out := make([]byte, 20)
	binary.LittleEndian.PutUint16(out[6:], 2) // item_count
	binary.LittleEndian.PutUint16(out[8:], 0x00A1)
	binary.LittleEndian.PutUint16(out[10:], 4)
	binary.LittleEndian.PutUint32(out[12:], connID)
	binary.LittleEndian.PutUint16(out[16:], 0x00B1)
	binary.LittleEndian.PutUint16(out[18:], uint16(2+len(cip)))
	seqBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(seqBytes, seq)
	out = append(out, seqBytes...)
	return append(out, cip...)
}
