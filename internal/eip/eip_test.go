package eip

import (
	"testing"

	"github.com/tturner/absim/internal/wire"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Command:       CommandRegisterSession,
		Length:        4,
		SessionHandle: 0x12345678,
		Status:        0,
		SenderContext: [8]byte{1, 2, 3, 4, 5, 6, 7, 8},
		Options:       0,
	}
	buf := make([]byte, HeaderSize)
	if err := EncodeHeader(wire.NewWindow(buf), h); err != nil {
		t.Fatalf("EncodeHeader: %v", err)
	}
	got, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if got != h {
		t.Fatalf("got %+v, want %+v", got, h)
	}
}

func TestDecodeHeaderIncomplete(t *testing.T) {
	if _, err := DecodeHeader([]byte{0x01, 0x02, 0x03}); err != ErrIncomplete {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
}

func TestRegisterSessionScenario(t *testing.T) {
	// Concrete scenario from the external interface: the Register Session
	// request decodes to command 0x0065, length 4, and the sender context
	// 01..08.
	req := []byte{
		0x65, 0x00, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x01, 0x02, 0x03, 0x04,
		0x05, 0x06, 0x07, 0x08, 0x00, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00,
	}
	h, err := DecodeHeader(req)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if h.Command != CommandRegisterSession {
		t.Fatalf("command = 0x%04X, want 0x0065", h.Command)
	}
	if h.Length != 4 {
		t.Fatalf("length = %d, want 4", h.Length)
	}
	want := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	if h.SenderContext != want {
		t.Fatalf("sender context = %v, want %v", h.SenderContext, want)
	}
}
