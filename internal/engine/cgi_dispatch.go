package engine

import (
	"golang.org/x/sys/unix"
	"go.uber.org/zap"

	"github.com/ybouane/webservd/internal/cgi"
	"github.com/ybouane/webservd/internal/netpoll"
)

// dispatchCGIEvent routes one ready CGI pipe fd to the matching pump:
// readable on stdout/stderr reads, writable on stdin writes. An error or
// hangup condition is left for the pump itself to discover as EOF on its
// next call, so it is folded into the same read/write dispatch.
func (e *Engine) dispatchCGIEvent(record *cgi.Record, fd int, ev netpoll.Event) {
	switch fd {
	case record.StdinFd:
		if err := record.PumpStdin(); err != nil {
			e.log.Debug("cgi stdin pump", zap.String("invocation", record.InvocationID.String()), zap.Error(err))
		}
		if record.StdinClosed {
			e.poll.Remove(fd)
			delete(e.cgiByFd, fd)
		}
	case record.StdoutFd:
		if err := record.PumpStdout(); err != nil {
			e.log.Debug("cgi stdout pump", zap.String("invocation", record.InvocationID.String()), zap.Error(err))
		}
		if record.StdoutClosed {
			e.poll.Remove(fd)
			delete(e.cgiByFd, fd)
		}
	case record.StderrFd:
		if err := record.PumpStderr(); err != nil {
			e.log.Debug("cgi stderr pump", zap.String("invocation", record.InvocationID.String()), zap.Error(err))
		}
		if record.StderrClosed {
			e.poll.Remove(fd)
			delete(e.cgiByFd, fd)
		}
	}

	e.tryFinalizeCGI(record)
}

// tryFinalizeCGI installs the CGI-derived response on the owning
// connection once every completion flag (process exited, stdin/stdout/
// stderr all closed) holds.
func (e *Engine) tryFinalizeCGI(record *cgi.Record) {
	if !record.Finalizable() {
		return
	}

	conn, ok := e.conns.Get(record.ClientFD)
	if !ok {
		e.cleanupCGI(record)
		return
	}

	resp := cgi.Finalize(record)
	e.log.Debug("cgi finalized",
		zap.String("invocation", record.InvocationID.String()),
		zap.Int("status", resp.Status))
	e.cleanupCGI(record)

	conn.CGI = nil
	conn.State = StateReading
	if err := e.poll.Add(conn.Fd, true, false); err != nil {
		e.log.Warn("re-registering client fd after cgi finalize", zap.Error(err))
	}
	e.installResponse(conn, resp)
}

// killCGI is called when the owning connection closes before the CGI
// invocation finalizes.
func (e *Engine) killCGI(record *cgi.Record) {
	record.Kill()
	e.cleanupCGI(record)
}

// cleanupCGI force-closes any still-open pipe fds, removes them from the
// poll registry and the fd/pid lookup tables.
func (e *Engine) cleanupCGI(record *cgi.Record) {
	for _, fd := range []int{record.StdinFd, record.StdoutFd, record.StderrFd} {
		e.poll.Remove(fd)
		delete(e.cgiByFd, fd)
	}
	record.Cleanup()
	delete(e.cgiByPid, record.Pid)
}

// reapChildren drains exited CGI children with a non-blocking wait loop,
// marking each record exited and attempting finalization (a child can
// exit before its pipes drain).
func (e *Engine) reapChildren() {
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
		if err != nil || pid <= 0 {
			return
		}
		record, ok := e.cgiByPid[pid]
		if !ok {
			continue
		}
		record.MarkExited(ws.ExitStatus())
		e.tryFinalizeCGI(record)
	}
}

// runTimeouts enforces the idle/read/write timeouts on every client
// connection and the CGI timeout on every in-flight invocation. Client
// timeouts close the connection outright; a CGI timeout kills the child
// and reports it to the client as a 502 instead of dropping the socket
// silently.
func (e *Engine) runTimeouts() {
	now := e.now()
	var toClose []*Conn
	var toCGITimeout []*Conn

	e.conns.Each(func(conn *Conn) {
		switch conn.State {
		case StateReading:
			if now.Sub(conn.ReadStarted) > readTimeout || now.Sub(conn.LastActivity) > idleTimeout {
				toClose = append(toClose, conn)
			}
		case StateWriting:
			if now.Sub(conn.WriteStarted) > writeTimeout {
				toClose = append(toClose, conn)
			}
		case StateCGIPending:
			if conn.CGI != nil && now.Sub(conn.LastActivity) > cgiTimeout {
				toCGITimeout = append(toCGITimeout, conn)
			}
		}
	})

	for _, conn := range toClose {
		e.closeConn(conn)
	}
	for _, conn := range toCGITimeout {
		e.timeoutCGI(conn)
	}
}

// timeoutCGI kills a CGI child that has run past its deadline and
// installs a 502 response on the owning connection in place of the
// output the child never produced, rather than dropping the connection
// with no response.
func (e *Engine) timeoutCGI(conn *Conn) {
	record := conn.CGI
	e.log.Warn("cgi invocation timed out, killing child",
		zap.String("invocation", record.InvocationID.String()),
		zap.Int("pid", record.Pid))
	e.killCGI(record)
	conn.CGI = nil
	if err := e.poll.Add(conn.Fd, true, false); err != nil {
		e.log.Warn("re-registering client fd after cgi timeout", zap.Error(err))
	}
	e.sendSynthetic(conn, 502, "Bad Gateway")
}
