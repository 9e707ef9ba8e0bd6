//go:build !windows

package transport

import (
	"net"
	"time"
)

func listenPipe(_ string) (net.Listener, error) {
	return nil, ErrUnsupportedPlatform
}

func dialPipe(_ string, _ time.Duration) (net.Conn, error) {
	return nil, ErrUnsupportedPlatform
}
