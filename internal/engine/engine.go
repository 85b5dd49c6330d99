package engine

import (
	"fmt"
	"time"

	"github.com/ybouane/webservd/internal/cgi"
	"github.com/ybouane/webservd/internal/netpoll"
	"github.com/ybouane/webservd/internal/vhost"
	"github.com/ybouane/webservd/internal/wsconfig"
	"go.uber.org/zap"
)

const (
	idleTimeout  = 120 * time.Second
	readTimeout  = 30 * time.Second
	writeTimeout = 30 * time.Second
	cgiTimeout   = 30 * time.Second
	pollTimeout  = 1000 // ms
)

// Engine owns the whole single-threaded event loop: the poll registry,
// the listener set, the connection table, and the CGI table.
type Engine struct {
	log *zap.Logger

	servers []wsconfig.ServerConfig
	vhost   *vhost.Selector

	poll         *netpoll.Registry
	listeners    []*netpoll.Listener
	listenerByFd map[int]*netpoll.Listener
	scratch      *netpoll.ScratchFD

	conns *Table

	cgiByFd  map[int]*cgi.Record
	cgiByPid map[int]*cgi.Record

	maxClients int
	stopped    bool

	nowFn func() time.Time
}

// New builds an Engine from a loaded configuration, creating one
// listener per distinct port and precomputing the virtual-host lookup
// tables.
func New(cfg *wsconfig.Config, log *zap.Logger) (*Engine, error) {
	poll, err := netpoll.New()
	if err != nil {
		return nil, fmt.Errorf("creating poll registry: %w", err)
	}

	scratch, err := netpoll.OpenScratchFD()
	if err != nil {
		poll.Close()
		return nil, fmt.Errorf("opening scratch fd: %w", err)
	}

	e := &Engine{
		log:          log,
		servers:      cfg.Servers,
		vhost:        vhost.Build(cfg.Servers),
		poll:         poll,
		scratch:      scratch,
		conns:        NewTable(),
		cgiByFd:      map[int]*cgi.Record{},
		cgiByPid:     map[int]*cgi.Record{},
		listenerByFd: map[int]*netpoll.Listener{},
		nowFn:        time.Now,
	}

	ports := distinctPorts(cfg.Servers)
	for _, port := range ports {
		l, err := netpoll.NewListener(port)
		if err != nil {
			e.closeListeners()
			poll.Close()
			return nil, fmt.Errorf("listening on port %d: %w", port, err)
		}
		if err := poll.Add(l.Fd, true, false); err != nil {
			l.Close()
			e.closeListeners()
			poll.Close()
			return nil, fmt.Errorf("registering listener fd: %w", err)
		}
		e.listeners = append(e.listeners, l)
		e.listenerByFd[l.Fd] = l
	}

	maxClients, err := netpoll.MaxClients(len(e.listeners))
	if err != nil {
		e.closeListeners()
		poll.Close()
		return nil, fmt.Errorf("computing max clients: %w", err)
	}
	e.maxClients = maxClients

	return e, nil
}

func (e *Engine) now() time.Time {
	return e.nowFn()
}

func (e *Engine) closeListeners() {
	for _, l := range e.listeners {
		e.poll.Remove(l.Fd)
		l.Close()
	}
	e.listeners = nil
	e.listenerByFd = map[int]*netpoll.Listener{}
}

// defaultServerForPort returns the index of the first server declared on
// port, used as the accept-time default before the Host header narrows
// it.
func (e *Engine) defaultServerForPort(port uint16) int {
	for i, srv := range e.servers {
		if srv.ListenPort == port {
			return i
		}
	}
	return 0
}

func distinctPorts(servers []wsconfig.ServerConfig) []uint16 {
	seen := map[uint16]bool{}
	var out []uint16
	for _, s := range servers {
		if !seen[s.ListenPort] {
			seen[s.ListenPort] = true
			out = append(out, s.ListenPort)
		}
	}
	return out
}
