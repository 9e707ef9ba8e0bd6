package daemon

import (
	"bufio"
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ct-tools/ctd/internal/protocol"
	"github.com/ct-tools/ctd/internal/transport"
)

const (
	readTimeout  = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// Server owns the listener and the accept loop around a Daemon.
type Server struct {
	daemon   *Daemon
	listener net.Listener
	addr     string

	shutdownCh chan struct{}
	stopOnce   sync.Once
	readyCh    chan struct{}
	wg         sync.WaitGroup
}

// NewServer opens the listener for the daemon's configured transport.
func NewServer(d *Daemon, kind transport.Kind, addr string) (*Server, error) {
	l, err := transport.Listen(kind, addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		daemon:     d,
		listener:   l,
		addr:       addr,
		shutdownCh: make(chan struct{}),
		readyCh:    make(chan struct{}),
	}, nil
}

// WaitReady blocks until the accept loop has started listening.
func (s *Server) WaitReady() {
	<-s.readyCh
}

// Serve runs the accept loop until Stop is called or ctx is done. It also
// installs SIGINT/SIGTERM handling so a daemon run from a terminal shuts
// down cleanly, matching the signal-driven shutdown shape of the teacher's
// event loop.
func (s *Server) Serve(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			s.daemon.log.Info("received shutdown signal")
			s.Stop()
		case <-ctx.Done():
			s.Stop()
		case <-s.shutdownCh:
		}
	}()

	close(s.readyCh)

	var acceptErr error
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isShuttingDown() {
				acceptErr = nil
				break
			}
			acceptErr = err
			break
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}

	s.wg.Wait()
	return acceptErr
}

func (s *Server) isShuttingDown() bool {
	select {
	case <-s.shutdownCh:
		return true
	default:
		return false
	}
}

// Stop signals shutdown and closes the listener so no new connections are
// accepted. It does not wait: Serve drains in-flight connections before it
// returns, and the Daemon's watcher and store are released by Close.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.shutdownCh)
		_ = s.listener.Close()
	})
}

// Close finalizes shutdown after Serve has returned: drains connections
// (already joined by Serve's wg.Wait) and releases daemon resources.
func (s *Server) Close() {
	s.daemon.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	for {
		if s.isShuttingDown() {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		req, err := protocol.UnmarshalRequest(line)
		if err != nil {
			resp := protocol.Error("", protocol.ErrProtocol, err)
			s.writeResponse(conn, writer, resp)
			continue
		}
		if req.ProtocolVersion != 0 && req.ProtocolVersion != protocol.Version {
			resp := protocol.Error(req.RequestID, protocol.ErrProtocol, errors.New("unsupported protocol version"))
			s.writeResponse(conn, writer, resp)
			continue
		}

		resp := s.daemon.Dispatch(context.Background(), req)
		if !s.writeResponse(conn, writer, resp) {
			return
		}
	}
}

func (s *Server) writeResponse(conn net.Conn, writer *bufio.Writer, resp protocol.Response) bool {
	line, err := protocol.Marshal(resp)
	if err != nil {
		line, _ = protocol.Marshal(protocol.Error(resp.RequestID, protocol.ErrInternal, err))
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := writer.WriteString(line + "\n"); err != nil {
		return false
	}
	return writer.Flush() == nil
}
