// Package transport abstracts the connection-oriented byte stream ctd's
// protocol layer runs over: a Unix domain socket, a TCP loopback port, or
// (on Windows) a loopback TCP listener located through an endpoint file,
// selected by configuration.
package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Kind names a transport backend.
type Kind string

const (
	KindAuto Kind = "auto"
	KindUnix Kind = "unix"
	KindPipe Kind = "pipe"
	KindTCP  Kind = "tcp"
)

// DefaultTCPAddr is the loopback address/port used when the TCP backend is
// selected without an explicit tcp_addr.
const DefaultTCPAddr = "127.0.0.1:48732"

// ErrUnsupportedPlatform is returned by the named-pipe backend on any
// non-Windows build.
var ErrUnsupportedPlatform = errors.New("transport: named pipe backend is only available on windows")

// Resolve turns "auto" into the concrete backend for the current platform:
// Unix socket on POSIX, named pipe on Windows. An explicit Kind passes
// through unchanged.
func Resolve(kind Kind) Kind {
	if kind != KindAuto {
		return kind
	}
	if runtime.GOOS == "windows" {
		return KindPipe
	}
	return KindUnix
}

// SocketName builds the per-workspace address the way §4.4 specifies: the
// first 8 hex characters of the workspace fingerprint (with any "blake3:"
// scheme prefix stripped) identify the workspace so multiple daemons can
// coexist on one host.
func SocketName(workspaceFingerprint string) string {
	short := shortFingerprint(workspaceFingerprint)
	switch runtime.GOOS {
	case "windows":
		return `\\.\pipe\ctd-` + short
	default:
		return "ctd-" + short + ".sock"
	}
}

func shortFingerprint(fp string) string {
	for i := 0; i < len(fp); i++ {
		if fp[i] == ':' {
			fp = fp[i+1:]
			break
		}
	}
	if len(fp) > 8 {
		return fp[:8]
	}
	return fp
}

// Listen opens a listener for the given backend and address. For KindUnix
// the address is a filesystem path; stale sockets are detected and removed
// the same way the directory and permissions are prepared. For KindTCP the
// address is a host:port. KindPipe is implemented in the Windows-only
// build-tagged file and returns ErrUnsupportedPlatform elsewhere.
func Listen(kind Kind, addr string) (net.Listener, error) {
	switch Resolve(kind) {
	case KindUnix:
		return listenUnix(addr)
	case KindTCP:
		return net.Listen("tcp", addr)
	case KindPipe:
		return listenPipe(addr)
	default:
		return nil, fmt.Errorf("transport: unknown backend %q", kind)
	}
}

// Dial connects to a listener opened with Listen using the same backend and
// address, with a bounded connect timeout.
func Dial(kind Kind, addr string, timeout time.Duration) (net.Conn, error) {
	switch Resolve(kind) {
	case KindUnix:
		return net.DialTimeout("unix", addr, timeout)
	case KindTCP:
		return net.DialTimeout("tcp", addr, timeout)
	case KindPipe:
		return dialPipe(addr, timeout)
	default:
		return nil, fmt.Errorf("transport: unknown backend %q", kind)
	}
}

func listenUnix(path string) (net.Listener, error) {
	if err := ensureSocketDir(path); err != nil {
		return nil, fmt.Errorf("ensure socket dir: %w", err)
	}
	if err := removeStaleSocket(path); err != nil {
		return nil, err
	}

	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen unix %s: %w", path, err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("chmod socket %s: %w", path, err)
	}
	return l, nil
}

func ensureSocketDir(socketPath string) error {
	dir := filepath.Dir(socketPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	_ = os.Chmod(dir, 0700)
	return nil
}

// removeStaleSocket removes a leftover socket file only if no daemon is
// actually listening on it, mirroring the check-then-remove discipline
// that prevents two daemons from racing onto the same path.
func removeStaleSocket(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if conn, err := net.DialTimeout("unix", path, 500*time.Millisecond); err == nil {
		_ = conn.Close()
		return fmt.Errorf("transport: socket %s is in use by another daemon", path)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket %s: %w", path, err)
	}
	return nil
}
