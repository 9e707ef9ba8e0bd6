package client

import (
	"bufio"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ct-tools/ctd/internal/protocol"
	"github.com/ct-tools/ctd/internal/transport"
)

// serveOnce accepts a single connection, decodes one request, and replies
// with resp.
func serveOnce(t *testing.T, addr string, handle func(protocol.Request) protocol.Response) {
	t.Helper()
	l, err := transport.Listen(transport.KindUnix, addr)
	require.NoError(t, err)

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		defer l.Close()

		reader := bufio.NewReader(conn)
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		req, err := protocol.UnmarshalRequest(line)
		if err != nil {
			return
		}
		resp := handle(req)
		out, err := protocol.Marshal(resp)
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte(out + "\n"))
	}()
}

func TestSendRoundTripsRequestAndResponse(t *testing.T) {
	addr := filepath.Join(t.TempDir(), "ctd.sock")
	var gotOp string
	serveOnce(t, addr, func(req protocol.Request) protocol.Response {
		gotOp = req.Cmd.Op
		assert.NotEmpty(t, req.RequestID)
		assert.Equal(t, protocol.Version, req.ProtocolVersion)
		resp, err := protocol.Success(req.RequestID, map[string]string{"ok": "yes"})
		require.NoError(t, err)
		return resp
	})

	c := New(transport.KindUnix, addr)
	resp, err := c.Send(protocol.Command{Op: "diag"})
	require.NoError(t, err)
	assert.False(t, resp.IsError())
	assert.Equal(t, "diag", gotOp)
}

func TestSendReportsDaemonUnavailableWhenNothingListens(t *testing.T) {
	addr := filepath.Join(t.TempDir(), "nobody-home.sock")
	c := New(transport.KindUnix, addr)
	c.DialTimeout = 100 * time.Millisecond

	_, err := c.Send(protocol.Command{Op: "diag"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDaemonUnavailable))
}

func TestSendPropagatesErrorResponse(t *testing.T) {
	addr := filepath.Join(t.TempDir(), "ctd.sock")
	serveOnce(t, addr, func(req protocol.Request) protocol.Response {
		return protocol.Error(req.RequestID, protocol.ErrInvalidArg, errors.New("name or path required"))
	})

	c := New(transport.KindUnix, addr)
	resp, err := c.Send(protocol.Command{Op: "find"})
	require.NoError(t, err)
	assert.True(t, resp.IsError())
	assert.Equal(t, protocol.ErrInvalidArg, resp.ErrCode)
}
