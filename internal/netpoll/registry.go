// Package netpoll implements a thin epoll wrapper and non-blocking TCP
// listeners, meant to be driven entirely from a single goroutine's event
// loop rather than goroutine-per-connection.
package netpoll

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Event is a single ready file descriptor, with the raw readable/
// writable/error flags from the underlying epoll_event.
type Event struct {
	Fd       int32
	Readable bool
	Writable bool
	// Error reports EPOLLERR or EPOLLHUP: the caller should treat the fd
	// as failed and close it rather than trying to read/write.
	Error bool
}

// Registry is a dense wrapper over a single epoll instance. Every
// connection, listener, and CGI pipe fd the engine cares about is
// registered here exactly once.
type Registry struct {
	epfd int
}

// New creates a fresh epoll instance.
func New() (*Registry, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	return &Registry{epfd: epfd}, nil
}

// Close releases the epoll instance.
func (r *Registry) Close() error {
	return unix.Close(r.epfd)
}

func eventMask(read, write bool) uint32 {
	var mask uint32
	if read {
		mask |= unix.EPOLLIN
	}
	if write {
		mask |= unix.EPOLLOUT
	}
	return mask
}

// Add registers fd for read and/or write readiness. Re-adding an
// already-registered fd is treated as idempotent by retrying as Modify,
// matching the "idempotent duplicate add" requirement: a second Add for
// the same fd just updates its interest set instead of erroring.
func (r *Registry) Add(fd int, read, write bool) error {
	ev := &unix.EpollEvent{Events: eventMask(read, write), Fd: int32(fd)}
	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, ev)
	if err == unix.EEXIST {
		return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, ev)
	}
	if err != nil {
		return fmt.Errorf("epoll_ctl add fd %d: %w", fd, err)
	}
	return nil
}

// SetInterest changes the read/write interest of an already-registered
// fd (used to enable write readiness while draining an output buffer,
// and to drop it again once drained).
func (r *Registry) SetInterest(fd int, read, write bool) error {
	ev := &unix.EpollEvent{Events: eventMask(read, write), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, ev); err != nil {
		return fmt.Errorf("epoll_ctl mod fd %d: %w", fd, err)
	}
	return nil
}

// Remove deregisters fd. Callers still must close(fd) themselves; Remove
// only updates the poll set.
func (r *Registry) Remove(fd int) error {
	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err != nil && err != unix.ENOENT {
		return fmt.Errorf("epoll_ctl del fd %d: %w", fd, err)
	}
	return nil
}

// Wait blocks until at least one registered fd is ready, an EINTR is
// retried transparently, or timeoutMs elapses (-1 blocks indefinitely).
// buf is overwritten on every call; the returned slice is freshly
// allocated each time.
func (r *Registry) Wait(buf []unix.EpollEvent, timeoutMs int) ([]Event, error) {
	for {
		n, err := unix.EpollWait(r.epfd, buf, timeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, fmt.Errorf("epoll_wait: %w", err)
		}
		out := make([]Event, n)
		for i := 0; i < n; i++ {
			e := buf[i]
			out[i] = Event{
				Fd:       e.Fd,
				Readable: e.Events&unix.EPOLLIN != 0,
				Writable: e.Events&unix.EPOLLOUT != 0,
				Error:    e.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0,
			}
		}
		return out, nil
	}
}
