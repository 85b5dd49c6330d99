package engine

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
	"go.uber.org/zap"

	"github.com/ybouane/webservd/internal/netpoll"
)

// Run starts the single-threaded event loop and blocks until Stop is
// called, SIGINT/SIGTERM arrives, or a fatal error occurs. SIGPIPE is
// ignored process-wide so a broken client pipe never kills the process.
func (e *Engine) Run() error {
	signal.Ignore(syscall.SIGPIPE)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	eventBuf := make([]unix.EpollEvent, 256)
	for !e.stopped {
		select {
		case <-sigCh:
			e.stopped = true
			continue
		default:
		}

		events, err := e.poll.Wait(eventBuf, pollTimeout)
		if err != nil {
			return err
		}

		for _, ev := range events {
			fd := int(ev.Fd)

			if l, ok := e.listenerByFd[fd]; ok {
				e.handleListenerReadable(l)
				continue
			}

			if record, ok := e.cgiByFd[fd]; ok {
				e.dispatchCGIEvent(record, fd, ev)
				continue
			}

			conn, ok := e.conns.Get(fd)
			if !ok {
				continue
			}

			if ev.Error {
				e.closeConn(conn)
				continue
			}

			if ev.Readable {
				if !e.handleReadable(conn) {
					e.closeConn(conn)
					continue
				}
			}

			// Re-check presence: the read handler above may have closed
			// the connection (peer EOF before a complete request arrived).
			if _, stillPresent := e.conns.Get(fd); !stillPresent {
				continue
			}

			if ev.Writable {
				if !e.handleWritable(conn) {
					e.closeConn(conn)
				}
			}
		}

		e.runTimeouts()
		e.reapChildren()
	}
	return nil
}

// Stop requests the loop to exit at the top of its next iteration.
func (e *Engine) Stop() {
	e.stopped = true
}

func (e *Engine) handleListenerReadable(l *netpoll.Listener) {
	fds, err := l.AcceptAll(func() bool {
		return e.conns.Len() >= e.maxClients
	})
	if err != nil {
		e.log.Warn("accept exhausted file descriptors, recovering", zap.Error(err))
		if recErr := l.RecoverFromExhaustion(e.scratch); recErr != nil {
			e.log.Error("scratch fd recovery failed", zap.Error(recErr))
		}
	}

	defaultIdx := e.defaultServerForPort(l.Port)
	for _, fd := range fds {
		conn := &Conn{
			Fd:         fd,
			ListenPort: l.Port,
			ServerIdx:  defaultIdx,
			State:      StateReading,
			LastActivity: e.now(),
			ReadStarted:  e.now(),
		}
		e.conns.Add(conn)
		if err := e.poll.Add(fd, true, false); err != nil {
			e.log.Warn("registering accepted fd", zap.Int("fd", fd), zap.Error(err))
			e.closeConn(conn)
		}
	}
}

// closeConn kills and cleans up any CGI record owned by this connection,
// removes it from the poll registry, closes the fd, and erases it from
// the table.
func (e *Engine) closeConn(conn *Conn) {
	if conn.CGI != nil {
		e.killCGI(conn.CGI)
	}
	e.poll.Remove(conn.Fd)
	unix.Close(conn.Fd)
	e.conns.Remove(conn.Fd)
}
