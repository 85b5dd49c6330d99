package engine

import (
	"strings"

	"github.com/ybouane/webservd/internal/cgi"
	"github.com/ybouane/webservd/internal/httpmsg"
	"github.com/ybouane/webservd/internal/router"
	"go.uber.org/zap"
)

// handleReadable runs one READING-state read cycle for conn. It returns
// false if the connection should be closed immediately (peer reset or
// fatal error).
func (e *Engine) handleReadable(conn *Conn) bool {
	buf := make([]byte, 4096)
	for {
		n, err := rawRead(conn.Fd, buf)
		if n > 0 {
			conn.InBuffer = append(conn.InBuffer, buf[:n]...)
			conn.LastActivity = e.now()
		}
		if err != nil {
			if isEAGAIN(err) {
				break
			}
			return false
		}
		if n == 0 {
			conn.PeerClosed = true
			break
		}
	}

	e.processBuffer(conn)
	return true
}

// processBuffer runs header-completeness and Content-Length checks and,
// once a full request is available, routes it.
func (e *Engine) processBuffer(conn *Conn) {
	if conn.State != StateReading {
		return
	}

	if httpmsg.HeadersTooLarge(conn.InBuffer) {
		e.sendSynthetic(conn, 431, "Request Header Fields Too Large")
		return
	}

	srv := &e.servers[conn.ServerIdx]
	req, consumed, result := httpmsg.Parse(conn.InBuffer, srv.ClientMaxBodySize)

	switch result {
	case httpmsg.NeedMore:
		if conn.PeerClosed {
			e.closeConn(conn)
		}
		return
	case httpmsg.BadRequest:
		e.sendSynthetic(conn, 400, "Bad Request")
		return
	case httpmsg.TooLarge:
		e.sendSynthetic(conn, 413, "Payload Too Large")
		return
	case httpmsg.UnsupportedTransferEncoding:
		e.sendSynthetic(conn, 400, "Bad Request")
		return
	}

	conn.InBuffer = conn.InBuffer[consumed:]

	conn.ServerIdx = e.selectServer(conn.ListenPort, req.Header("host"), conn.ServerIdx)
	srv = &e.servers[conn.ServerIdx]

	result2 := router.Route(req, srv)
	if result2.CGI != nil {
		e.startCGI(conn, req, result2.CGI)
		return
	}

	if result2.LogReason != "" {
		e.log.Warn("request failed",
			zap.String("path", req.Path),
			zap.Int("status", result2.Response.Status),
			zap.String("reason", result2.LogReason))
	}

	e.installResponse(conn, result2.Response)
}

// sendSynthetic installs one of the engine's own error responses (used
// for oversized/malformed requests and CGI failures) without involving
// the router.
func (e *Engine) sendSynthetic(conn *Conn, status int, reason string) {
	resp := httpmsg.NewResponse(status, []byte(reason+"\n"))
	resp.SetHeader("Content-Type", "text/plain")
	e.installResponse(conn, resp)
}

// installResponse finalizes resp, writes it to the connection's output
// buffer, and transitions READING/CGI_PENDING -> WRITING.
func (e *Engine) installResponse(conn *Conn, resp *httpmsg.Response) {
	resp.Finalize()
	conn.AppendOutput(resp.Serialize())
	conn.CloseAfterWrite = true
	conn.State = StateWriting
	conn.WriteStarted = e.now()
	if err := e.poll.SetInterest(conn.Fd, false, true); err != nil {
		e.log.Warn("enabling write interest", zap.Int("fd", conn.Fd), zap.Error(err))
	}
}

// startCGI transitions a connection into CGI_PENDING, spawning the
// interpreter and registering its pipes.
func (e *Engine) startCGI(conn *Conn, req *httpmsg.Request, dispatch *router.CGIDispatch) {
	record, err := cgi.Spawn(dispatch.Interpreter, dispatch.ScriptPath, req, conn.Fd)
	if err != nil {
		e.log.Warn("cgi spawn failed", zap.String("script", dispatch.ScriptPath), zap.Error(err))
		e.sendSynthetic(conn, 502, "Bad Gateway")
		return
	}

	e.log.Debug("cgi spawned",
		zap.String("invocation", record.InvocationID.String()),
		zap.Int("pid", record.Pid),
		zap.String("script", dispatch.ScriptPath))

	conn.CGI = record
	conn.State = StateCGIPending
	e.cgiByFd[record.StdinFd] = record
	e.cgiByFd[record.StdoutFd] = record
	e.cgiByFd[record.StderrFd] = record
	e.cgiByPid[record.Pid] = record

	if err := e.poll.Remove(conn.Fd); err != nil {
		e.log.Warn("removing client fd from poll during cgi dispatch", zap.Error(err))
	}

	if !record.StdinClosed {
		e.poll.Add(record.StdinFd, false, true)
	}
	e.poll.Add(record.StdoutFd, true, false)
	e.poll.Add(record.StderrFd, true, false)
}

// handleWritable runs one WRITING-state write cycle.
func (e *Engine) handleWritable(conn *Conn) bool {
	for conn.PendingWrite() {
		n, err := rawWrite(conn.Fd, conn.OutBuffer[conn.WriteOffset:])
		if n > 0 {
			conn.WriteOffset += n
			conn.LastActivity = e.now()
		}
		if err != nil {
			if isEAGAIN(err) {
				return true
			}
			return false
		}
		if n == 0 {
			return true
		}
	}

	if conn.CloseAfterWrite || conn.PeerClosed {
		return false
	}

	conn.State = StateReading
	conn.ReadStarted = e.now()
	if err := e.poll.SetInterest(conn.Fd, true, false); err != nil {
		e.log.Warn("re-enabling read interest", zap.Int("fd", conn.Fd), zap.Error(err))
	}
	return true
}

// selectServer refines the accept-time default server index using the
// Host header, via the vhost selector.
func (e *Engine) selectServer(port uint16, hostHeader string, acceptDefault int) int {
	return e.vhost.Select(port, strings.TrimSpace(hostHeader), acceptDefault)
}
