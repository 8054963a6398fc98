package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"

	"netsentry/internal/core"
)

const logTag = "IPC"

// Handler processes one control request. Implementations must be safe
// for concurrent calls, one per connected client.
type Handler interface {
	Handle(ctx context.Context, req Request) Response
}

// Server accepts control connections and feeds their requests to a
// Handler. Requests on a single connection are served in order;
// connections are served concurrently.
type Server struct {
	handler Handler
	log     *core.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewServer creates a control server dispatching to h.
func NewServer(h Handler, log *core.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		handler: h,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		conns:   make(map[net.Conn]struct{}),
	}
}

// Serve accepts connections on ln until Close is called. It blocks and
// returns nil on a clean shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return errors.New("ipc: server closed")
	}
	s.listener = ln
	s.mu.Unlock()

	s.log.Infof(logTag, "Control server listening on %s", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ServeConn(conn)
		}()
	}
}

// ServeConn serves a single established connection until the peer
// disconnects or the server closes. Exposed so the dispatch loop can be
// exercised over an in-memory pipe.
func (s *Server) ServeConn(conn net.Conn) {
	if !s.track(conn) {
		conn.Close()
		return
	}
	defer func() {
		conn.Close()
		s.untrack(conn)
	}()

	s.log.Debugf(logTag, "Client connected (%d active)", s.connCount())
	defer s.log.Debugf(logTag, "Client disconnected")

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			if !errors.Is(err, io.EOF) && !s.isClosed() {
				s.log.Debugf(logTag, "Dropping client: %v", err)
			}
			return
		}
		s.log.Debugf(logTag, "Request %s", req.Op)
		resp := s.handler.Handle(s.ctx, req)
		if err := enc.Encode(resp); err != nil {
			if !s.isClosed() {
				s.log.Debugf(logTag, "Failed to answer %s: %v", req.Op, err)
			}
			return
		}
	}
}

// Close stops the accept loop, cancels in-flight handlers, disconnects
// every client, and waits for connection goroutines started by Serve.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	ln := s.listener
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.cancel()
	if ln != nil {
		ln.Close()
	}
	for _, c := range conns {
		c.Close()
	}
	s.wg.Wait()
	s.log.Infof(logTag, "Control server stopped")
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// track registers a live connection; false means the server is closing
// and the connection must be dropped.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
