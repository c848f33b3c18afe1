//go:build linux

package wanagent

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// setReuseAddr is the net.ListenConfig.Control hook that enables
// SO_REUSEADDR on the listening socket, matching spec.md §4.3's
// "enable address reuse" construction step and the original's
// setsockopt(fd, SOL_SOCKET, SO_REUSEADDR, ...) call.
func setReuseAddr(network, address string, c syscall.RawConn) error {
	var ctrlErr error
	err := c.Control(func(fd uintptr) {
		ctrlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return ctrlErr
}
