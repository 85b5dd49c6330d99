// Package vhost implements virtual-host selection: mapping a listen port
// and Host header to a server config index, via a lookup table
// precomputed once at startup instead of scanning the server list on
// every request.
package vhost

import (
	"strings"

	"github.com/ybouane/webservd/internal/wsconfig"
)

// Selector resolves (port, Host header) pairs to a server index within
// the slice of servers it was built from.
type Selector struct {
	defaultByPort map[uint16]int
	byPortHost    map[portHost]int
}

type portHost struct {
	port uint16
	host string
}

// Build precomputes default_by_port and by_port_host from servers, in
// declaration order: the first server seen on a port becomes that port's
// default.
func Build(servers []wsconfig.ServerConfig) *Selector {
	s := &Selector{
		defaultByPort: map[uint16]int{},
		byPortHost:    map[portHost]int{},
	}
	for i, srv := range servers {
		port := srv.ListenPort
		if _, ok := s.defaultByPort[port]; !ok {
			s.defaultByPort[port] = i
		}
		for _, name := range srv.ServerNames {
			name = strings.ToLower(name)
			if name == "" {
				continue
			}
			key := portHost{port: port, host: name}
			if _, ok := s.byPortHost[key]; !ok {
				s.byPortHost[key] = i
			}
		}
	}
	return s
}

// Select returns the server index for a connection accepted on port,
// given the raw Host header value (possibly empty). acceptTimeDefault is
// the server index assigned when the connection was accepted (the
// default server for that listener), used as the final fallback.
func (s *Selector) Select(port uint16, hostHeader string, acceptTimeDefault int) int {
	host := normalizeHost(hostHeader)
	if host != "" {
		if idx, ok := s.byPortHost[portHost{port: port, host: host}]; ok {
			return idx
		}
	}
	if idx, ok := s.defaultByPort[port]; ok {
		return idx
	}
	return acceptTimeDefault
}

// normalizeHost strips a trailing ":port", strips IPv6 brackets, and
// lowercases.
func normalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if strings.HasPrefix(host, "[") {
		if end := strings.IndexByte(host, ']'); end != -1 {
			return strings.ToLower(host[1:end])
		}
	}
	if idx := strings.LastIndexByte(host, ':'); idx != -1 {
		host = host[:idx]
	}
	return strings.ToLower(host)
}
