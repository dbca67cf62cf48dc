package cpf

import (
	"testing"

	"github.com/tturner/absim/internal/wire"
)

func TestUnconnectedRoundTrip(t *testing.T) {
	cipBytes := []byte{0x4C, 0x01, 0x02, 0x03}

	buf := make([]byte, unconnectedHeaderSize+len(cipBytes))
	w := wire.NewWindow(buf)
	req := UnconnectedRequest{InterfaceHandle: 0, RouterTimeout: 5}
	header, cipWindow, err := EncodeUnconnected(w, req)
	if err != nil {
		t.Fatalf("EncodeUnconnected: %v", err)
	}
	if err := cipWindow.CopyIn(0, cipBytes); err != nil {
		t.Fatalf("CopyIn: %v", err)
	}
	if err := FinishUnconnected(header, req.InterfaceHandle, req.RouterTimeout, len(cipBytes)); err != nil {
		t.Fatalf("FinishUnconnected: %v", err)
	}

	decoded, err := DecodeUnconnected(w)
	if err != nil {
		t.Fatalf("DecodeUnconnected: %v", err)
	}
	if decoded.RouterTimeout != 5 {
		t.Fatalf("router timeout = %d, want 5", decoded.RouterTimeout)
	}
	if decoded.CIP.Len() != len(cipBytes) {
		t.Fatalf("cip len = %d, want %d", decoded.CIP.Len(), len(cipBytes))
	}
}

func TestUnconnectedRejectsWrongItemCount(t *testing.T) {
	buf := make([]byte, unconnectedHeaderSize)
	w := wire.NewWindow(buf)
	w.WriteUint16(6, 3) // item_count
	w.WriteUint16(8, ItemNullAddress)
	w.WriteUint16(12, ItemUnconnectedData)
	if _, err := DecodeUnconnected(w); err != ErrBadFrame {
		t.Fatalf("expected ErrBadFrame, got %v", err)
	}
}

func TestConnectedRoundTrip(t *testing.T) {
	cipBytes := []byte{0xCC, 0x00, 0x00, 0x00, 0xC4, 0x00, 0xEF, 0xBE, 0xAD, 0xDE}
	connID := uint32(0xAABBCCDD)

	buf := make([]byte, connectedHeaderSize+2+len(cipBytes))
	w := wire.NewWindow(buf)
	req := ConnectedRequest{
		InterfaceHandle:    0,
		RouterTimeout:      0,
		ConnectionID:       connID,
		ConnectionSequence: 7,
	}
	header, cipWindow, err := EncodeConnected(w, req)
	if err != nil {
		t.Fatalf("EncodeConnected: %v", err)
	}
	if err := cipWindow.CopyIn(0, cipBytes); err != nil {
		t.Fatalf("CopyIn: %v", err)
	}
	if err := FinishConnected(header, req, len(cipBytes)); err != nil {
		t.Fatalf("FinishConnected: %v", err)
	}

	decoded, err := DecodeConnected(w, connID)
	if err != nil {
		t.Fatalf("DecodeConnected: %v", err)
	}
	if decoded.ConnectionSequence != 7 {
		t.Fatalf("sequence = %d, want 7", decoded.ConnectionSequence)
	}
	if decoded.CIP.Len() != len(cipBytes) {
		t.Fatalf("cip len = %d, want %d", decoded.CIP.Len(), len(cipBytes))
	}
}

func TestConnectedRejectsWrongConnectionID(t *testing.T) {
	buf := make([]byte, connectedHeaderSize+2)
	w := wire.NewWindow(buf)
	req := ConnectedRequest{ConnectionID: 1, ConnectionSequence: 1}
	header, _, _ := EncodeConnected(w, req)
	_ = header
	if _, err := DecodeConnected(w, 2); err != ErrBadFrame {
		t.Fatalf("expected ErrBadFrame for connection-id mismatch, got %v", err)
	}
}
