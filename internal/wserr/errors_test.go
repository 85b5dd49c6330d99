package wserr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMethodCarriesAllowHeader(t *testing.T) {
	err := Method("GET, HEAD")
	require.Equal(t, 405, err.Status)
	require.Equal(t, ClassMethod, err.Class)
	require.Equal(t, "GET, HEAD", err.Allow)
}

func TestConstructorsSetExpectedStatusAndClass(t *testing.T) {
	cases := []struct {
		name  string
		err   *HTTPError
		class Class
		code  int
	}{
		{"resource", Resource(404, "Not Found", nil), ClassResource, 404},
		{"server", Server("boom", nil), ClassServer, 500},
		{"gateway", Gateway("cgi failed", nil), ClassGateway, 502},
		{"size", Size(413, "Payload Too Large"), ClassSize, 413},
		{"protocol", Protocol(400, "Bad Request", nil), ClassProtocol, 400},
		{"timeout", Timeout("read timed out"), ClassTimeout, 408},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.class, tc.err.Class)
			require.Equal(t, tc.code, tc.err.Status)
		})
	}
}

func TestErrorWrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Server("writing upload", cause)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "disk full")
}

func TestTransportHasNoFixedStatus(t *testing.T) {
	err := Transport("peer reset", nil)
	require.Equal(t, ClassTransport, err.Class)
	require.Equal(t, 0, err.Status)
}
