package simserver

import (
	"io"
	"net"
	"time"

	"github.com/tturner/absim/internal/capture"
	"github.com/tturner/absim/internal/cip"
	"github.com/tturner/absim/internal/cpf"
	"github.com/tturner/absim/internal/eip"
	"github.com/tturner/absim/internal/family"
	"github.com/tturner/absim/internal/pccc"
	"github.com/tturner/absim/internal/protoerr"
	"github.com/tturner/absim/internal/wire"
)

// maxDeviceBufferSize bounds the per-connection request and response
// buffers.
const maxDeviceBufferSize = 8192

// readDeadline bounds each socket read so a worker observes shutdown
// promptly even on an idle connection; per the concurrency model, no
// connection is ever closed for inactivity alone.
const readDeadline = 200 * time.Millisecond

// session holds the per-TCP-connection state: the EIP session handle
// lifecycle and the single CIP connection it may open. Neither is ever
// shared across connections.
type session struct {
	handle     uint32
	registered bool
	cipConn    cip.Connection
	flow       *capture.Flow
}

func (s *Server) handleConnection(conn *net.TCPConn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	s.cfg.Logger.Info("accepted connection from %s", remote)
	s.stats.onAccept(remote)
	defer s.stats.onClose(remote)

	sess := &session{cipConn: cip.Connection{RejectRemaining: s.rejectFOCount()}}
	if s.cfg.Capture != nil {
		if local, ok := conn.LocalAddr().(*net.TCPAddr); ok {
			if remoteAddr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
				sess.flow = capture.NewFlow(remoteAddr, local)
			}
		}
	}

	buf := make([]byte, 0, maxDeviceBufferSize)
	readChunk := make([]byte, 4096)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(readDeadline))
		n, err := conn.Read(readChunk)
		if err != nil {
			if err == io.EOF {
				s.cfg.Logger.Info("connection closed by client: %s", remote)
				return
			}
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			s.cfg.Logger.Error("read from %s: %v", remote, err)
			return
		}
		if n == 0 {
			continue
		}
		buf = append(buf, readChunk[:n]...)
		if s.cfg.Capture != nil && sess.flow != nil {
			s.cfg.Capture.RecordClient(sess.flow, readChunk[:n])
		}

		for {
			frame, rest, ok, err := splitFrame(buf)
			if err != nil {
				s.cfg.Logger.Error("%s: %v", remote, err)
				return
			}
			if !ok {
				break
			}
			buf = rest
			s.cfg.Logger.LogHex("request from "+remote, frame)

			resp, closeConn := s.dispatchFrame(sess, frame, remote)
			s.stats.update(remote, sess)

			if s.cfg.Delay > 0 {
				time.Sleep(s.cfg.Delay)
			}
			if len(resp) > 0 {
				s.cfg.Logger.LogHex("response to "+remote, resp)
				if _, err := conn.Write(resp); err != nil {
					s.cfg.Logger.Error("write to %s: %v", remote, err)
					return
				}
				if s.cfg.Capture != nil && sess.flow != nil {
					s.cfg.Capture.RecordServer(sess.flow, resp)
				}
			}
			if closeConn {
				return
			}
		}
	}
}

// splitFrame carves one complete EIP frame off the front of buf, if one
// is available. It returns ok=false when more bytes are needed, and a
// protoerr.Fatal error when the header's length field claims more
// payload than the per-connection buffer can ever hold (the header
// itself cannot be answered with a syntactically valid reply, per the
// error taxonomy's fatal-error case).
func splitFrame(buf []byte) (frame, rest []byte, ok bool, err error) {
	header, err := eip.DecodeHeader(buf)
	if err != nil {
		return nil, buf, false, nil
	}
	total := eip.HeaderSize + int(header.Length)
	if total > maxDeviceBufferSize {
		return nil, buf, false, protoerr.NewFatal(eip.ErrLengthOverflow)
	}
	if len(buf) < total {
		return nil, buf, false, nil
	}
	return buf[:total], buf[total:], true, nil
}

// dispatchFrame decodes one EIP frame, dispatches its command, and
// encodes the reply. It returns the reply bytes (nil if none should be
// sent) and whether the connection should be closed afterward.
func (s *Server) dispatchFrame(sess *session, frame []byte, remote string) ([]byte, bool) {
	header, err := eip.DecodeHeader(frame)
	if err != nil {
		return nil, true
	}
	reqPayload := wire.NewWindow(frame[eip.HeaderSize:])

	if sess.registered && header.SessionHandle != 0 && header.SessionHandle != sess.handle {
		return s.encodeEIPStatus(header, eip.StatusInvalidSessionHandle), false
	}

	switch header.Command {
	case eip.CommandRegisterSession:
		return s.handleRegisterSession(sess, header, reqPayload)
	case eip.CommandUnregisterSession:
		s.cfg.Logger.Info("unregister session from %s", remote)
		return nil, true
	case eip.CommandSendRRData:
		if !sess.registered {
			return s.encodeEIPStatus(header, eip.StatusInvalidLength), true
		}
		return s.handleSendRRData(sess, header, reqPayload)
	case eip.CommandSendUnitData:
		if !sess.registered {
			return s.encodeEIPStatus(header, eip.StatusInvalidLength), true
		}
		return s.handleSendUnitData(sess, header, reqPayload)
	default:
		return s.encodeEIPStatus(header, eip.StatusInvalidCommand), false
	}
}

func (s *Server) handleRegisterSession(sess *session, header eip.Header, payload wire.Window) ([]byte, bool) {
	if payload.Len() != 4 {
		return s.encodeEIPStatus(header, eip.StatusInvalidLength), false
	}
	version, _ := payload.ReadUint16(0)
	optionFlags, _ := payload.ReadUint16(2)
	if version != 1 || optionFlags != 0 {
		return s.encodeEIPStatus(header, eip.StatusInvalidLength), false
	}
	sess.handle = s.ids.Uint32()
	sess.registered = true

	out := make([]byte, eip.HeaderSize+4)
	w := wire.NewWindow(out)
	respHeader, respPayload, _ := w.Split(eip.HeaderSize)
	respPayload.CopyIn(0, payload.Bytes())
	eip.EncodeHeader(respHeader, eip.Header{
		Command:       header.Command,
		Length:        4,
		SessionHandle: sess.handle,
		Status:        eip.StatusSuccess,
		SenderContext: header.SenderContext,
		Options:       header.Options,
	})
	return out, false
}

func (s *Server) handleSendRRData(sess *session, header eip.Header, payload wire.Window) ([]byte, bool) {
	out := make([]byte, maxDeviceBufferSize)
	w := wire.NewWindow(out)
	respHeader, respPayload, _ := w.Split(eip.HeaderSize)

	req, err := cpf.DecodeUnconnected(payload)
	if err != nil {
		return s.finishEIP(respHeader, respPayload, header, sess, eip.StatusInvalidLength, 0), false
	}

	cpfHeader, cipWindow, err := cpf.EncodeUnconnected(respPayload, req)
	if err != nil {
		return s.finishEIP(respHeader, respPayload, header, sess, eip.StatusInvalidLength, 0), false
	}

	cipLen, err := s.dispatchCIP(sess, req.CIP, cipWindow)
	if err != nil {
		return s.finishEIP(respHeader, respPayload, header, sess, eip.StatusInvalidLength, 0), false
	}
	cpf.FinishUnconnected(cpfHeader, req.InterfaceHandle, req.RouterTimeout, cipLen)

	payloadLen := cpfHeaderUnconnectedLen() + cipLen
	return s.finishEIP(respHeader, respPayload, header, sess, eip.StatusSuccess, payloadLen), false
}

func (s *Server) handleSendUnitData(sess *session, header eip.Header, payload wire.Window) ([]byte, bool) {
	out := make([]byte, maxDeviceBufferSize)
	w := wire.NewWindow(out)
	respHeader, respPayload, _ := w.Split(eip.HeaderSize)

	req, err := cpf.DecodeConnected(payload, sess.cipConn.ServerConnectionID)
	if err != nil {
		return s.finishEIP(respHeader, respPayload, header, sess, eip.StatusInvalidLength, 0), false
	}

	cpfHeader, cipWindow, err := cpf.EncodeConnected(respPayload, req)
	if err != nil {
		return s.finishEIP(respHeader, respPayload, header, sess, eip.StatusInvalidLength, 0), false
	}

	cipLen, err := s.dispatchCIP(sess, req.CIP, cipWindow)
	if err != nil {
		return s.finishEIP(respHeader, respPayload, header, sess, eip.StatusInvalidLength, 0), false
	}
	cpf.FinishConnected(cpfHeader, req, cipLen)

	payloadLen := cpfHeaderConnectedLen() + 2 + cipLen
	return s.finishEIP(respHeader, respPayload, header, sess, eip.StatusSuccess, payloadLen), false
}

// dispatchCIP strips the service byte off cipReq and routes to the CIP
// dispatcher or, for Execute PCCC, the PCCC dispatcher. The response
// window handed down is capped at the server-to-client max packet (the
// family default until a Forward Open negotiates one), which is what
// forces large reads into fragmentation.
func (s *Server) dispatchCIP(sess *session, cipReq, respWindow wire.Window) (int, error) {
	limit := family.Configs[s.cfg.Family].MaxPacket
	if sess.cipConn.Open && sess.cipConn.TOMaxPacket > 0 {
		limit = sess.cipConn.TOMaxPacket
	}
	if limit < respWindow.Len() {
		respWindow, _ = respWindow.Truncate(limit)
	}
	serviceByte, err := cipReq.ReadUint8(0)
	if err != nil {
		return 0, err
	}
	body, err := cipReq.Sub(1, cipReq.Len()-1)
	if err != nil {
		return 0, err
	}

	if cip.ServiceCode(serviceByte) == cip.ServiceExecutePCCC {
		return pccc.HandleExecutePCCC(body, respWindow, s.cfg.Store)
	}
	rejectBefore := sess.cipConn.RejectRemaining
	n, err := cip.Dispatch(cip.ServiceCode(serviceByte), body, respWindow, &sess.cipConn, s.cfg.Store, s.cfg.Family, s.cfg.ExpectedEPATH, s.ids)
	if sess.cipConn.RejectRemaining < rejectBefore {
		s.cfg.Logger.Debug("Forward Open rejected (injected, %d remaining)", sess.cipConn.RejectRemaining)
	}
	return n, err
}

func (s *Server) encodeEIPStatus(header eip.Header, status uint32) []byte {
	out := make([]byte, eip.HeaderSize)
	eip.EncodeHeader(wire.NewWindow(out), eip.Header{
		Command:       header.Command,
		Length:        0,
		SessionHandle: header.SessionHandle,
		Status:        status,
		SenderContext: header.SenderContext,
		Options:       header.Options,
	})
	return out
}

func (s *Server) finishEIP(respHeader, respPayload wire.Window, reqHeader eip.Header, sess *session, status uint32, payloadLen int) []byte {
	eip.EncodeHeader(respHeader, eip.Header{
		Command:       reqHeader.Command,
		Length:        uint16(payloadLen),
		SessionHandle: sess.handle,
		Status:        status,
		SenderContext: reqHeader.SenderContext,
		Options:       reqHeader.Options,
	})
	total := eip.HeaderSize + payloadLen
	full := make([]byte, total)
	copy(full[:eip.HeaderSize], respHeader.Bytes())
	copy(full[eip.HeaderSize:], respPayload.Bytes()[:payloadLen])
	return full
}

func cpfHeaderUnconnectedLen() int { return 16 }
func cpfHeaderConnectedLen() int   { return 20 }
