package net

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const defaultIdleTimeout = 30 * time.Second

// StreamFunc consumes the byte stream of one feed connection.
type StreamFunc = func(ctx context.Context, r io.Reader) error

// Server accepts TCP connections carrying a recorded or relayed feed and
// hands each stream to a StreamFunc. Connections are served one at a time,
// as a session must see its packets in order.
//
// A client that goes quiet for longer than the idle timeout, or whose
// connection fails, is dropped and the server waits for the next one. Any
// other error from the StreamFunc stops the server.
type Server struct {
	address string
	handle  StreamFunc
	idle    time.Duration

	addr  net.Addr
	ready chan struct{}
}

func NewServer(address string, handle StreamFunc) *Server {
	return &Server{
		address: address,
		handle:  handle,
		idle:    defaultIdleTimeout,
		ready:   make(chan struct{}),
	}
}

// SetIdleTimeout changes the per-read deadline. Zero disables it.
func (s *Server) SetIdleTimeout(d time.Duration) {
	s.idle = d
}

// Ready is closed once the server is listening.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr is the bound address, valid after Ready.
func (s *Server) Addr() net.Addr {
	return s.addr
}

func (s *Server) Run(ctx context.Context) error {
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.address)
	if err != nil {
		return fmt.Errorf("unable to start listener: %w", err)
	}
	s.addr = listener.Addr()
	close(s.ready)
	log.Info().Str("address", s.addr.String()).Msg("feed server running")

	// Closing the listener is what unblocks Accept.
	t.Go(func() error {
		<-t.Dying()
		return listener.Close()
	})
	t.Go(func() error {
		return s.accept(ctx, listener)
	})

	err = t.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info().Err(err).Msg("feed server shutting down")
	return err
}

func (s *Server) accept(ctx context.Context, listener net.Listener) error {
	for {
		log.Info().Msg("listening for feed connections")
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("error accepting client: %w", err)
		}
		if err := s.serve(ctx, conn); err != nil {
			return err
		}
	}
}

func (s *Server) serve(ctx context.Context, conn net.Conn) error {
	address := conn.RemoteAddr().String()
	log.Info().Str("address", address).Msg("feed client connected")

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Error().Str("address", address).Err(err).Msg("unable to close connection")
		}
	}()

	err := s.handle(ctx, &deadlineReader{conn: conn, idle: s.idle})
	var netErr net.Error
	switch {
	case err == nil:
		log.Info().Str("address", address).Msg("feed client finished")
		return nil
	case ctx.Err() != nil:
		return nil
	case errors.As(err, &netErr), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
		log.Warn().Str("address", address).Err(err).Msg("feed client dropped")
		return nil
	default:
		return fmt.Errorf("feed from %s: %w", address, err)
	}
}

// deadlineReader pushes the read deadline forward before every read.
type deadlineReader struct {
	conn net.Conn
	idle time.Duration
}

func (r *deadlineReader) Read(p []byte) (int, error) {
	if r.idle > 0 {
		if err := r.conn.SetReadDeadline(time.Now().Add(r.idle)); err != nil {
			return 0, err
		}
	}
	return r.conn.Read(p)
}
