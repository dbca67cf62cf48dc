// Package simserver is the accept loop and per-connection worker that
// wires the wire codec, EIP session layer, CPF framing, and the CIP/PCCC
// dispatchers into a running TCP server.
package simserver

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tturner/absim/internal/capture"
	"github.com/tturner/absim/internal/family"
	"github.com/tturner/absim/internal/logging"
	"github.com/tturner/absim/internal/randid"
	"github.com/tturner/absim/internal/tagstore"
)

// acceptDeadline bounds each Accept call so the accept loop can observe
// the shutdown context promptly, per the process-wide termination flag
// the core is handed rather than owns.
const acceptDeadline = 200 * time.Millisecond

// Config is the template connection the CLI collaborator builds: every
// setting a session inherits at accept time.
type Config struct {
	Family        family.Family
	ExpectedEPATH []byte
	Port          int
	RejectFOCount int
	Delay         time.Duration
	Logger        *logging.Logger
	Store         *tagstore.Store
	Capture       *capture.Recorder
}

// Server accepts TCP connections and runs one worker per connection.
type Server struct {
	mu       sync.Mutex
	cfg      Config
	ids      *randid.Source
	listener *net.TCPListener
	stats    *Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer builds a Server from cfg. The random-id source is process-
// wide, shared by every connection's worker, per the concurrency model.
func NewServer(cfg Config, ids *randid.Source) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{cfg: cfg, ids: ids, stats: newStats(), ctx: ctx, cancel: cancel}
}

// Start binds the listener and launches the accept loop. It returns once
// the listener is bound; the accept loop runs in the background.
func (s *Server) Start() error {
	addr, err := net.ResolveTCPAddr("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("simserver: resolve address: %w", err)
	}
	listener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return fmt.Errorf("simserver: listen: %w", err)
	}
	s.listener = listener

	s.cfg.Logger.Info("listening on %s as %s", listener.Addr(), s.cfg.Family)
	s.logBanner()

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop signals every worker to exit, closes the listener, and waits for
// all workers to return.
func (s *Server) Stop() error {
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	if s.cfg.Capture != nil {
		s.cfg.Capture.Close()
	}
	s.cfg.Logger.Info("stopped")
	return nil
}

// Addr returns the bound address, valid after a successful Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		s.listener.SetDeadline(time.Now().Add(acceptDeadline))
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if s.ctx.Err() != nil {
				return
			}
			s.cfg.Logger.Error("accept: %v", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) logBanner() {
	s.cfg.Logger.Info("family=%s port=%d epath=% X reject_fo=%d delay=%s", s.cfg.Family, s.cfg.Port, s.cfg.ExpectedEPATH, s.cfg.RejectFOCount, s.cfg.Delay)
	for _, tag := range s.cfg.Store.Tags() {
		if tag.DataFileNumber != 0 {
			s.cfg.Logger.Info("data file %d: type=0x%02X elements=%d (%d bytes)", tag.DataFileNumber, uint16(tag.Type), tag.ElemCount, len(tag.Data))
			continue
		}
		s.cfg.Logger.Info("tag %s: type=0x%04X dims=%v (%d bytes)", tag.Name, uint16(tag.Type), tag.Dims[:tag.NumDimensions], len(tag.Data))
	}
}
