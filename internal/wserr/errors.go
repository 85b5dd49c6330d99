// Package wserr defines the error taxonomy used to map request-handling
// failures onto HTTP status codes without string matching on error text.
package wserr

import "fmt"

// Class identifies which row of the error taxonomy an error belongs to.
type Class int

const (
	// ClassProtocol covers malformed request lines, bad headers, and path
	// traversal above root.
	ClassProtocol Class = iota
	// ClassSize covers oversized headers or bodies.
	ClassSize
	// ClassMethod covers a method not allowed at the matched location.
	ClassMethod
	// ClassResource covers not-found, forbidden, and similar lookup failures.
	ClassResource
	// ClassServer covers internal routing or I/O inconsistencies.
	ClassServer
	// ClassGateway covers CGI spawn/parse failures.
	ClassGateway
	// ClassTransport covers recv/send failures and peer resets.
	ClassTransport
	// ClassTimeout covers idle, read, write, and CGI timeouts.
	ClassTimeout
)

// HTTPError is an error that carries the status code it should be reported
// to the client as, alongside the taxonomy class it belongs to.
type HTTPError struct {
	Class  Class
	Status int
	Reason string
	Err    error
	// Allow carries the Allow header value for ClassMethod errors.
	Allow string
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (status %d): %v", e.Reason, e.Status, e.Err)
	}
	return fmt.Sprintf("%s (status %d)", e.Reason, e.Status)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// New builds an HTTPError for the given class/status/reason, optionally
// wrapping a lower-level cause.
func New(class Class, status int, reason string, cause error) *HTTPError {
	return &HTTPError{Class: class, Status: status, Reason: reason, Err: cause}
}

func Protocol(status int, reason string, cause error) *HTTPError {
	return New(ClassProtocol, status, reason, cause)
}

func Size(status int, reason string) *HTTPError {
	return New(ClassSize, status, reason, nil)
}

func Method(allowed string) *HTTPError {
	e := New(ClassMethod, 405, "Method Not Allowed", nil)
	e.Allow = allowed
	return e
}

func Resource(status int, reason string, cause error) *HTTPError {
	return New(ClassResource, status, reason, cause)
}

func Server(reason string, cause error) *HTTPError {
	return New(ClassServer, 500, reason, cause)
}

func Gateway(reason string, cause error) *HTTPError {
	return New(ClassGateway, 502, reason, cause)
}

func Transport(reason string, cause error) *HTTPError {
	return New(ClassTransport, 0, reason, cause)
}

func Timeout(reason string) *HTTPError {
	return New(ClassTimeout, 408, reason, nil)
}
