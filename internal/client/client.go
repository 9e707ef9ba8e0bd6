// Package client is the Query Client: a synchronous one-request-per-
// connection RPC wrapper around the transport layer. Starting or
// supervising the daemon process is out of scope here — a caller that
// finds no daemon listening gets a DAEMON_UNAVAILABLE error and decides
// for itself whether to autostart one.
package client

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/ct-tools/ctd/internal/protocol"
	"github.com/ct-tools/ctd/internal/transport"
)

// DefaultDialTimeout bounds how long Send waits to connect before giving
// up and reporting the daemon unavailable.
const DefaultDialTimeout = 2 * time.Second

// DefaultRequestTimeout bounds a round trip once connected.
const DefaultRequestTimeout = 30 * time.Second

// Client sends one Command per connection and reads back its Response.
type Client struct {
	Kind           transport.Kind
	Addr           string
	DialTimeout    time.Duration
	RequestTimeout time.Duration
}

// New builds a Client targeting the given transport backend and address.
func New(kind transport.Kind, addr string) *Client {
	return &Client{
		Kind:           kind,
		Addr:           addr,
		DialTimeout:    DefaultDialTimeout,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// Send dials the daemon, writes one request envelope with a fresh
// request_id, reads exactly one response line, and closes the connection.
// A dial failure is reported as ErrDaemonUnavailable so callers
// can distinguish "no daemon" from a request the daemon itself rejected.
func (c *Client) Send(cmd protocol.Command) (protocol.Response, error) {
	conn, err := transport.Dial(c.Kind, c.Addr, c.dialTimeout())
	if err != nil {
		return protocol.Response{}, fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	defer conn.Close()

	req := protocol.Request{
		Cmd:             cmd,
		RequestID:       uuid.NewString(),
		ProtocolVersion: protocol.Version,
	}
	line, err := protocol.Marshal(req)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("marshal request: %w", err)
	}

	_ = conn.SetDeadline(time.Now().Add(c.requestTimeout()))
	if _, err := fmt.Fprintln(conn, line); err != nil {
		return protocol.Response{}, fmt.Errorf("write request: %w", err)
	}

	respLine, err := readLine(conn)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("read response: %w", err)
	}

	resp, err := protocol.UnmarshalResponse(respLine)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

func (c *Client) dialTimeout() time.Duration {
	if c.DialTimeout > 0 {
		return c.DialTimeout
	}
	return DefaultDialTimeout
}

func (c *Client) requestTimeout() time.Duration {
	if c.RequestTimeout > 0 {
		return c.RequestTimeout
	}
	return DefaultRequestTimeout
}

func readLine(conn net.Conn) (string, error) {
	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return line, nil
}

// ErrDaemonUnavailable wraps any dial failure, including "no daemon
// listening" and "connection refused".
var ErrDaemonUnavailable = fmt.Errorf("client: %s", protocol.ErrDaemonUnavailable)
