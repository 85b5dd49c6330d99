package netpoll

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Listener is one non-blocking TCP listening socket bound to a single
// port.
type Listener struct {
	Fd   int
	Port uint16
}

// NewListener creates a non-blocking TCP socket with SO_REUSEADDR, binds
// it to 0.0.0.0:port, and starts listening with a generous backlog.
func NewListener(port uint16) (*Listener, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set nonblocking: %w", err)
	}
	addr := &unix.SockaddrInet4{Port: int(port)}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind :%d: %w", port, err)
	}
	const backlog = 1024
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen :%d: %w", port, err)
	}
	return &Listener{Fd: fd, Port: port}, nil
}

func (l *Listener) Close() error {
	return unix.Close(l.Fd)
}

// AcceptAll accepts every pending connection on the listener until
// EAGAIN; accepted fds are already marked non-blocking. atCap is called
// once per accepted connection to check the max_clients cap; when it
// returns true the new fd is closed immediately instead of being
// returned.
func (l *Listener) AcceptAll(atCap func() bool) ([]int, error) {
	var out []int
	for {
		fd, _, err := unix.Accept(l.Fd)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return out, nil
			}
			if err == unix.EMFILE || err == unix.ENFILE {
				return out, err
			}
			return out, fmt.Errorf("accept: %w", err)
		}
		if atCap != nil && atCap() {
			unix.Close(fd)
			continue
		}
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fd)
			continue
		}
		out = append(out, fd)
	}
}

// ScratchFD is the reserved /dev/null descriptor opened at startup, held
// in reserve so that when accept fails with EMFILE/ENFILE the engine can
// briefly free it, accept-and-immediately-close the stuck connection (so
// the kernel stops edge-triggering it), then reopen it.
type ScratchFD struct {
	fd int
}

// OpenScratchFD opens /dev/null and returns a handle that can be
// released and reacquired around an EMFILE/ENFILE recovery.
func OpenScratchFD() (*ScratchFD, error) {
	f, err := os.OpenFile(os.DevNull, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open scratch fd: %w", err)
	}
	return &ScratchFD{fd: int(f.Fd())}, nil
}

// Release closes the scratch fd, freeing one slot in the process FD
// table so a stuck listener can accept-and-close.
func (s *ScratchFD) Release() {
	if s.fd >= 0 {
		unix.Close(s.fd)
		s.fd = -1
	}
}

// Reacquire reopens /dev/null into the scratch slot.
func (s *ScratchFD) Reacquire() error {
	f, err := os.OpenFile(os.DevNull, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("reopen scratch fd: %w", err)
	}
	s.fd = int(f.Fd())
	return nil
}

// RecoverFromExhaustion releases the scratch fd, accepts one connection
// solely to close it, then reacquires the scratch fd.
func (l *Listener) RecoverFromExhaustion(scratch *ScratchFD) error {
	scratch.Release()
	fd, _, err := unix.Accept(l.Fd)
	if err == nil {
		unix.Close(fd)
	}
	return scratch.Reacquire()
}

// MaxClients derives the concurrent-connection cap from the process FD
// limit minus a safety margin of 32 and the listener count, with a floor
// of 1.
func MaxClients(listenerCount int) (int, error) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		return 0, fmt.Errorf("getrlimit NOFILE: %w", err)
	}
	limit := int(rlimit.Cur) - 32 - listenerCount
	if limit < 1 {
		limit = 1
	}
	return limit, nil
}
