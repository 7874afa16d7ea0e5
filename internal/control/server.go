// Package control implements the TCP link between the machine origin and
// the backbox daemon: a single-client listener feeding the dispatcher,
// and the outbound path for replies and display frames.
package control

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/pinstack/backbox/internal/logging"
	"github.com/pinstack/backbox/protocol"
)

// DefaultReadBuffer sizes the connection reader when Config leaves it zero.
const DefaultReadBuffer = 4096

// ErrNotConnected is reported when no origin connection is up.
var ErrNotConnected = errors.New("no origin connected")

// Sink consumes decoded inbound messages.
type Sink interface {
	Enqueue(m *protocol.Message) bool
}

// Config holds the listener settings.
type Config struct {
	Host       string
	Port       int
	ReadBuffer int
}

// Server accepts one origin connection at a time and pumps its decoded
// messages into the sink. Send and SendDMDFrame are safe from any
// goroutine.
type Server struct {
	mu       sync.Mutex
	conn     net.Conn
	closed   bool
	listener net.Listener
	sink     Sink
	readBuf  int
	closing  sync.Once
}

// NewServer binds the control listener. A bind failure is the only fatal
// startup error; call Start to begin accepting.
func NewServer(cfg Config, sink Sink) (*Server, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind control listener on %s: %w", addr, err)
	}
	readBuf := cfg.ReadBuffer
	if readBuf <= 0 {
		readBuf = DefaultReadBuffer
	}
	logging.Log.Infow("control listener bound", "addr", listener.Addr().String())
	return &Server{listener: listener, sink: sink, readBuf: readBuf}, nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Start launches the accept loop. The loop serves one origin at a time:
// it does not return to Accept until the current connection ends, and it
// exits when Close shuts the listener down.
func (s *Server) Start() {
	go s.serve()
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logging.Log.Warnw("accept failed", "error", err)
			continue
		}
		id := uuid.NewString()
		if !s.adopt(conn) {
			return
		}
		logging.Log.Infow("origin connected",
			"client_id", id, "remote_addr", conn.RemoteAddr().String())
		s.readLoop(conn, id)
		s.release(conn)
		logging.Log.Infow("origin disconnected", "client_id", id)
	}
}

// adopt installs conn as the active origin, unless the server closed
// while Accept was blocked.
func (s *Server) adopt(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = conn.Close()
		return false
	}
	s.conn = conn
	return true
}

func (s *Server) release(conn net.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
}

// readLoop reassembles newline-terminated frames and enqueues whatever
// decodes. A read error or EOF ends the connection; overflow drops are
// the sink's business.
func (s *Server) readLoop(conn net.Conn, id string) {
	defer conn.Close()
	reader := bufio.NewReaderSize(conn, s.readBuf)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				logging.Log.Warnw("read failed", "client_id", id, "error", err)
			}
			return
		}
		m, err := protocol.Decode(string(line))
		if err != nil {
			logging.Log.Debugw("discarding unparseable line", "client_id", id, "error", err)
			continue
		}
		s.sink.Enqueue(m)
	}
}

// Send transmits one message to the connected origin and reports whether
// the write succeeded. Failures are logged, never fatal.
func (s *Server) Send(m *protocol.Message) bool {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		logging.Log.Debugw("no origin connected, dropping message", "command", m.Command)
		return false
	}
	if _, err := conn.Write(m.ToPacket()); err != nil {
		logging.Log.Warnw("send failed", "command", m.Command, "error", err)
		return false
	}
	return true
}

// SendDMDFrame transmits one raw display frame, bypassing the text codec.
func (s *Server) SendDMDFrame(frame []byte) error {
	pkt, err := protocol.DMDFramePacket(frame)
	if err != nil {
		return err
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if _, err := conn.Write(pkt); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close says goodbye to a connected origin, then tears down the
// connection and the listener. Safe to call repeatedly and from any
// goroutine; teardown errors are swallowed.
func (s *Server) Close() {
	s.closing.Do(func() {
		s.mu.Lock()
		s.closed = true
		conn := s.conn
		s.conn = nil
		s.mu.Unlock()

		if conn != nil {
			_, _ = conn.Write(protocol.Goodbye().ToPacket())
			_ = conn.Close()
		}
		_ = s.listener.Close()
	})
}
