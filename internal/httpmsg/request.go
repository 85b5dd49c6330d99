// Package httpmsg implements the HTTP/1.0 and HTTP/1.1 wire format this
// engine speaks: request parsing off an accumulating connection buffer
// and response serialization.
package httpmsg

import (
	"sort"
	"strings"
)

// Request is a fully parsed HTTP request.
type Request struct {
	Method  string
	Target  string // raw target from the request line
	Path    string // normalized, percent-decoded path; always starts with "/"
	Query   string // part after '?', without '?'
	Version string // "HTTP/1.0" or "HTTP/1.1"

	Headers map[string]string // lowercase keys, duplicates comma-joined
	Body    []byte
}

// Header returns the value of a lowercase header name, or "" if absent.
func (r *Request) Header(name string) string {
	return r.Headers[strings.ToLower(name)]
}

// KeepAlive reports whether the request asks for the connection to be
// kept open, per its HTTP version and any Connection header. The engine
// does not consult it: every response carries Connection: close and the
// connection is closed after it.
func (r *Request) KeepAlive() bool {
	conn := strings.ToLower(r.Header("connection"))
	switch r.Version {
	case "HTTP/1.0":
		return conn == "keep-alive"
	default:
		return conn != "close"
	}
}

// setHeader stores value under the lowercased key, comma-joining if the
// key was already present, matching HTTP's rule for repeated headers.
func setHeader(headers map[string]string, key, value string) {
	key = strings.ToLower(key)
	if existing, ok := headers[key]; ok {
		headers[key] = existing + "," + value
	} else {
		headers[key] = value
	}
}

// SortedHeaderNames returns the header keys in sorted order.
func (r *Request) SortedHeaderNames() []string {
	names := make([]string, 0, len(r.Headers))
	for k := range r.Headers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
