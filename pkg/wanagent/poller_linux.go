//go:build linux

package wanagent

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// poller wraps one epoll instance. SenderCore keeps two of these — one
// registered for EPOLLOUT across every peer socket, one for EPOLLIN — per
// spec.md §4.2's "create two pollers" and §9's instruction to preserve that
// separation rather than collapse it into one goroutine per connection.
// Grounded on the epoll calling convention used in
// other_examples/d6f88aa8_anamulislamshamim-go_raw_epoll_http_server.
type poller struct {
	epfd int

	closeOnce sync.Once
}

func newPoller() (*poller, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("%w: epoll_create1: %v", ErrConnect, err)
	}
	return &poller{epfd: fd}, nil
}

// add registers fd for the given epoll event mask (unix.EPOLLIN or
// unix.EPOLLOUT), level-triggered.
func (p *poller) add(fd int, events uint32) error {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("%w: epoll_ctl add: %v", ErrConnect, err)
	}
	return nil
}

// wait blocks until at least one registered fd is ready, and returns the
// ready file descriptors. It blocks indefinitely (timeout -1) as spec.md's
// poller-wait suspension points require. A wait started after close returns
// an error (EBADF). Closing the poller does not wake a wait already in
// progress; SenderCore.triggerShutdown wakes those by shutting down the
// registered sockets — see DESIGN.md's Open Question decision #4.
func (p *poller) wait() ([]int, error) {
	events := make([]unix.EpollEvent, 64)
	for {
		n, err := unix.EpollWait(p.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, err
		}
		ready := make([]int, 0, n)
		for i := 0; i < n; i++ {
			ready = append(ready, int(events[i].Fd))
		}
		return ready, nil
	}
}

// close releases the epoll fd, so any later wait returns an error and the
// owning goroutine can observe shutdown and exit. A wait already blocked is
// not woken by close.
func (p *poller) close() error {
	var err error
	p.closeOnce.Do(func() {
		err = unix.Close(p.epfd)
	})
	return err
}

// epollout and epollin expose the raw event masks to sender.go without
// requiring it to import golang.org/x/sys/unix directly.
func epollout() uint32 { return unix.EPOLLOUT }
func epollin() uint32  { return unix.EPOLLIN }
