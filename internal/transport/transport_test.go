package transport

import (
	"bufio"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAutoPicksUnixOnPosix(t *testing.T) {
	if runtimeIsWindows() {
		t.Skip("this assertion only holds on posix")
	}
	assert.Equal(t, KindUnix, Resolve(KindAuto))
}

func TestResolvePassesThroughExplicitKind(t *testing.T) {
	assert.Equal(t, KindTCP, Resolve(KindTCP))
}

func TestSocketNameUsesFirst8HexCharsAndStripsScheme(t *testing.T) {
	name := SocketName("blake3:0123456789abcdef")
	assert.Equal(t, "ctd-01234567.sock", name)
}

func TestSocketNameHandlesShortFingerprint(t *testing.T) {
	name := SocketName("blake3:ab")
	assert.Equal(t, "ctd-ab.sock", name)
}

func TestUnixListenAndDialRoundTrip(t *testing.T) {
	if runtimeIsWindows() {
		t.Skip("unix sockets only")
	}
	sockPath := filepath.Join(t.TempDir(), "ctd-test.sock")

	l, err := Listen(KindUnix, sockPath)
	require.NoError(t, err)
	defer l.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		line, _ := bufio.NewReader(conn).ReadString('\n')
		_, _ = conn.Write([]byte("echo:" + line))
	}()

	conn, err := Dial(KindUnix, sockPath, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("hello\n"))
	require.NoError(t, err)

	reply, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "echo:hello\n", reply)
	<-done
}

func TestListenUnixRemovesStaleSocket(t *testing.T) {
	if runtimeIsWindows() {
		t.Skip("unix sockets only")
	}
	sockPath := filepath.Join(t.TempDir(), "ctd-stale.sock")

	l1, err := Listen(KindUnix, sockPath)
	require.NoError(t, err)
	require.NoError(t, l1.Close())

	// l1 is closed, so the file on disk is now stale; a second Listen on
	// the same path must detect and remove it rather than fail.
	l2, err := Listen(KindUnix, sockPath)
	require.NoError(t, err)
	defer l2.Close()
}

func TestPipeBackendUnsupportedOffWindows(t *testing.T) {
	if runtimeIsWindows() {
		t.Skip("pipe backend is implemented on windows")
	}
	_, err := Listen(KindPipe, filepath.Join(t.TempDir(), "pipe"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
}
