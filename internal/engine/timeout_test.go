package engine

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ybouane/webservd/internal/cgi"
	"github.com/ybouane/webservd/internal/httpmsg"
	"github.com/ybouane/webservd/internal/netpoll"
)

func TestRunTimeoutsClosesStaleReadingConn(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()

	e := &Engine{
		log:   zap.NewNop(),
		conns: NewTable(),
	}
	poll, err := netpoll.New()
	require.NoError(t, err)
	defer poll.Close()
	e.poll = poll

	fd := int(r.Fd())
	require.NoError(t, poll.Add(fd, true, false))

	fixedNow := time.Now()
	e.nowFn = func() time.Time { return fixedNow }

	conn := &Conn{Fd: fd, State: StateReading, ReadStarted: fixedNow.Add(-readTimeout - time.Second), LastActivity: fixedNow}
	e.conns.Add(conn)

	e.runTimeouts()

	_, ok := e.conns.Get(fd)
	require.False(t, ok)
}

func TestRunTimeoutsLeavesFreshConnAlone(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	e := &Engine{log: zap.NewNop(), conns: NewTable()}
	poll, err := netpoll.New()
	require.NoError(t, err)
	defer poll.Close()
	e.poll = poll

	fd := int(r.Fd())
	require.NoError(t, poll.Add(fd, true, false))

	fixedNow := time.Now()
	e.nowFn = func() time.Time { return fixedNow }

	conn := &Conn{Fd: fd, State: StateReading, ReadStarted: fixedNow, LastActivity: fixedNow}
	e.conns.Add(conn)

	e.runTimeouts()

	_, ok := e.conns.Get(fd)
	require.True(t, ok)
}

func TestRunTimeoutsSends502ForStaleCGIConn(t *testing.T) {
	dir := t.TempDir()
	script := dir + "/sleep.sh"
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nsleep 5\n"), 0o755))

	req := &httpmsg.Request{Method: "GET", Path: "/cgi/sleep.sh", Version: "HTTP/1.1", Headers: map[string]string{}}

	clientR, clientW, err := os.Pipe()
	require.NoError(t, err)
	defer clientW.Close()
	clientFd := int(clientR.Fd())

	record, err := cgi.Spawn("/bin/sh", script, req, clientFd)
	require.NoError(t, err)

	e := &Engine{
		log:      zap.NewNop(),
		conns:    NewTable(),
		cgiByFd:  map[int]*cgi.Record{},
		cgiByPid: map[int]*cgi.Record{record.Pid: record},
	}
	poll, err := netpoll.New()
	require.NoError(t, err)
	defer poll.Close()
	e.poll = poll

	fixedNow := time.Now()
	e.nowFn = func() time.Time { return fixedNow }

	conn := &Conn{
		Fd:           clientFd,
		State:        StateCGIPending,
		CGI:          record,
		LastActivity: fixedNow.Add(-cgiTimeout - time.Second),
	}
	e.conns.Add(conn)

	e.runTimeouts()

	got, ok := e.conns.Get(clientFd)
	require.True(t, ok)
	require.Equal(t, StateWriting, got.State)
	require.Nil(t, got.CGI)
	require.Contains(t, string(got.OutBuffer), "502")

	state, err := record.Cmd.Process.Wait()
	require.NoError(t, err)
	require.True(t, state.Sys().(syscall.WaitStatus).Signaled(), "child should have been killed, not left running or exited on its own")
	require.Equal(t, syscall.SIGKILL, state.Sys().(syscall.WaitStatus).Signal())
}
