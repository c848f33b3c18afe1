//go:build linux

package wanagent

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// dialSite opens a blocking IPv4 TCP connection to (ip, port) and returns it
// as an *os.File so its descriptor can be registered directly on a poller
// alongside being read/written through the usual io.Reader/io.Writer
// interface. Grounded on the raw socket()/connect() sequence in
// other_examples/d6f88aa8_anamulislamshamim-go_raw_epoll_http_server,
// adapted from listen-side accept to connect-side dial.
func dialSite(ip string, port uint16) (*os.File, error) {
	addr, err := ipv4Bytes(ip)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: socket: %v", ErrConnect, err)
	}

	sa := &unix.SockaddrInet4{Port: int(port), Addr: addr}
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: connect %s:%d: %v", ErrConnect, ip, port, err)
	}

	return os.NewFile(uintptr(fd), fmt.Sprintf("%s:%d", ip, port)), nil
}

func ipv4Bytes(ip string) ([4]byte, error) {
	var out [4]byte
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return out, fmt.Errorf("invalid ip address %q", ip)
	}
	v4 := parsed.To4()
	if v4 == nil {
		return out, fmt.Errorf("only IPv4 addresses are supported, got %q", ip)
	}
	copy(out[:], v4)
	return out, nil
}
