// Package engine wires the poll registry, connection table, request
// lifecycle state machine, router, and CGI coordinator into a single-
// threaded event loop: one goroutine owns every connection and CGI
// invocation outright, so none of it needs locking. Engine is the
// long-lived object a CLI command constructs and runs; the per-request
// handling lives in the FSM functions that operate on it.
package engine

import (
	"time"

	"github.com/ybouane/webservd/internal/cgi"
)

// ConnState is a connection's position in the request lifecycle.
type ConnState int

const (
	StateReading ConnState = iota
	StateWriting
	StateCGIPending
	StateClosing
)

func (s ConnState) String() string {
	switch s {
	case StateReading:
		return "READING"
	case StateWriting:
		return "WRITING"
	case StateCGIPending:
		return "CGI_PENDING"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// Conn is one client connection's table entry.
type Conn struct {
	Fd int

	ListenPort uint16
	ServerIdx  int // index into engine.servers, selected at accept time and refined on Host

	State ConnState

	InBuffer  []byte
	HeadersOK bool // "\r\n\r\n" has been seen; still may need more body

	OutBuffer       []byte
	WriteOffset     int // bytes [0:WriteOffset) of OutBuffer have already been sent
	CloseAfterWrite bool
	PeerClosed      bool

	CGI *cgi.Record // non-nil while StateCGIPending

	LastActivity time.Time
	ReadStarted  time.Time
	WriteStarted time.Time
}

// Table is the set of live connections, keyed by fd. It is process-local
// state that the single event-loop goroutine owns exclusively, so it
// needs no locking.
type Table struct {
	conns map[int]*Conn
}

func NewTable() *Table {
	return &Table{conns: map[int]*Conn{}}
}

func (t *Table) Add(c *Conn) {
	t.conns[c.Fd] = c
}

func (t *Table) Get(fd int) (*Conn, bool) {
	c, ok := t.conns[fd]
	return c, ok
}

func (t *Table) Remove(fd int) {
	delete(t.conns, fd)
}

func (t *Table) Len() int {
	return len(t.conns)
}

// Each calls fn for every connection currently in the table. fn must not
// mutate the table (use Remove via the caller's own loop index instead).
func (t *Table) Each(fn func(*Conn)) {
	for _, c := range t.conns {
		fn(c)
	}
}

// PendingWrite reports whether the connection still has unsent bytes in
// its output buffer.
func (c *Conn) PendingWrite() bool {
	return c.WriteOffset < len(c.OutBuffer)
}

// AppendOutput installs bytes to be written and resets the write cursor.
func (c *Conn) AppendOutput(b []byte) {
	c.OutBuffer = b
	c.WriteOffset = 0
}
