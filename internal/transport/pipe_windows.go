//go:build windows

package transport

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"
	"time"
)

// endpointInfo is written to the address path Listen receives: Windows gets a
// loopback TCP listener underneath and a small JSON file recording where it
// actually bound, rather than a literal named pipe.
type endpointInfo struct {
	Network string `json:"network"`
	Address string `json:"address"`
}

func listenPipe(pipePath string) (net.Listener, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen pipe-backed tcp: %w", err)
	}

	info := endpointInfo{Network: "tcp", Address: listener.Addr().String()}
	data, err := json.Marshal(info)
	if err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("marshal endpoint info: %w", err)
	}
	if err := os.WriteFile(pipePath, data, 0o600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("write endpoint info %s: %w", pipePath, err)
	}
	return listener, nil
}

func validateEndpoint(info endpointInfo) error {
	if info.Network != "" && info.Network != "tcp" {
		return fmt.Errorf("invalid endpoint: network must be tcp, got %q", info.Network)
	}
	if info.Address == "" {
		return fmt.Errorf("invalid endpoint: missing address")
	}
	if !strings.HasPrefix(info.Address, "127.0.0.1:") && !strings.HasPrefix(info.Address, "localhost:") {
		return fmt.Errorf("invalid endpoint: address must bind to localhost, got %q", info.Address)
	}
	return nil
}

func dialPipe(pipePath string, timeout time.Duration) (net.Conn, error) {
	data, err := os.ReadFile(pipePath)
	if err != nil {
		return nil, fmt.Errorf("read endpoint info %s: %w", pipePath, err)
	}
	var info endpointInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode endpoint info: %w", err)
	}
	if err := validateEndpoint(info); err != nil {
		return nil, err
	}
	return net.DialTimeout("tcp", info.Address, timeout)
}
