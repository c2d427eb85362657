package osc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	goosc "github.com/hypebeast/go-osc/osc"
)

// Logger abstracts logging so this package doesn't depend on a
// specific logging implementation.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ErrNotListening is returned by Run when Listen was not called or the
// bind failed.
var ErrNotListening = errors.New("osc: server is not listening")

// receiveTimeout bounds a single blocking read so the serve loop can
// notice context cancellation.
const receiveTimeout = 500 * time.Millisecond

// Server receives OSC packets over UDP and hands decoded messages to a
// callback. Bind errors are fatal and surface from Listen; decode
// errors on individual datagrams are logged and skipped.
type Server struct {
	addr   string
	logger Logger
	conn   net.PacketConn
}

// NewServer creates a server that will bind to ip:port.
func NewServer(ip string, port int) *Server {
	return &Server{
		addr:   net.JoinHostPort(ip, strconv.Itoa(port)),
		logger: noopLogger{},
	}
}

// SetLogger replaces the server's logger. Call before Run.
func (s *Server) SetLogger(l Logger) {
	if l != nil {
		s.logger = l
	}
}

// Listen binds the UDP socket. A failed bind, usually a port already
// in use, is returned to the caller so startup can abort.
func (s *Server) Listen() error {
	conn, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return fmt.Errorf("binding osc listener on %s: %w", s.addr, err)
	}
	s.conn = conn
	s.logger.Info("osc server listening", "addr", conn.LocalAddr().String())
	return nil
}

// LocalAddr returns the bound address, or nil before Listen.
func (s *Server) LocalAddr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Run receives packets until ctx is cancelled, invoking handle for
// every decoded message. Bundles are flattened into their messages.
func (s *Server) Run(ctx context.Context, handle func(*goosc.Message)) error {
	if s.conn == nil {
		return ErrNotListening
	}
	reader := &goosc.Server{}
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := s.conn.SetReadDeadline(time.Now().Add(receiveTimeout)); err != nil {
			return fmt.Errorf("setting read deadline: %w", err)
		}
		packet, err := reader.ReceivePacket(s.conn)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			// Malformed datagram. Drop it and keep serving.
			s.logger.Warn("discarding undecodable osc packet", "error", err)
			continue
		}
		for _, msg := range flatten(packet) {
			handle(msg)
		}
	}
}

// Close releases the socket. Safe to call more than once.
func (s *Server) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func flatten(packet goosc.Packet) []*goosc.Message {
	switch p := packet.(type) {
	case *goosc.Message:
		return []*goosc.Message{p}
	case *goosc.Bundle:
		var messages []*goosc.Message
		messages = append(messages, p.Messages...)
		for _, b := range p.Bundles {
			messages = append(messages, flatten(b)...)
		}
		return messages
	default:
		return nil
	}
}
