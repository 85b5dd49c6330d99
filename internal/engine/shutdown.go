package engine

import "golang.org/x/sys/unix"

// Shutdown releases the scratch fd, force-kills and cleans up every
// in-flight CGI invocation, reaps their children, closes every client
// connection, then closes and removes every listening socket. Called
// once Run returns.
func (e *Engine) Shutdown() {
	e.scratch.Release()

	for _, record := range e.cgiByPid {
		record.Kill()
	}
	e.reapChildren()
	for _, record := range e.cgiByFd {
		e.cleanupCGI(record)
	}

	var toClose []*Conn
	e.conns.Each(func(conn *Conn) {
		toClose = append(toClose, conn)
	})
	for _, conn := range toClose {
		if conn.CGI != nil {
			e.killCGI(conn.CGI)
		}
		e.poll.Remove(conn.Fd)
		unix.Close(conn.Fd)
		e.conns.Remove(conn.Fd)
	}

	e.closeListeners()
	e.poll.Close()
}
