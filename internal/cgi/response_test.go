package cgi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFinalizeEmptyStdoutIsBadGateway(t *testing.T) {
	r := &Record{Method: "GET"}
	resp := Finalize(r)
	require.Equal(t, 502, resp.Status)
	require.Equal(t, "close", resp.Headers["Connection"])
}

func TestFinalizeParsesStatusLine(t *testing.T) {
	r := &Record{
		Method:    "GET",
		StdoutBuf: []byte("Status: 404 Not Found\r\nContent-Type: text/plain\r\n\r\nmissing\n"),
	}
	resp := Finalize(r)
	require.Equal(t, 404, resp.Status)
	require.Equal(t, "Not Found", resp.Reason)
	require.Equal(t, "text/plain", resp.Headers["Content-Type"])
	require.Equal(t, "missing\n", string(resp.Body))
}

func TestFinalizeDefaultsContentTypeAndLength(t *testing.T) {
	r := &Record{
		Method:    "GET",
		StdoutBuf: []byte("\r\n\r\nhello"),
	}
	resp := Finalize(r)
	require.Equal(t, 200, resp.Status)
	require.Equal(t, "text/plain", resp.Headers["Content-Type"])
	require.Equal(t, "5", resp.Headers["Content-Length"])
}

func TestFinalizeHeadClearsBody(t *testing.T) {
	r := &Record{
		Method:    "HEAD",
		StdoutBuf: []byte("Content-Type: text/html\r\n\r\n<html></html>"),
	}
	resp := Finalize(r)
	require.Empty(t, resp.Body)
	require.Equal(t, "text/html", resp.Headers["Content-Type"])
}

func TestFinalizeAcceptsLFOnlySeparator(t *testing.T) {
	r := &Record{
		Method:    "GET",
		StdoutBuf: []byte("Content-Type: text/plain\n\nok"),
	}
	resp := Finalize(r)
	require.Equal(t, "ok", string(resp.Body))
	require.Equal(t, "text/plain", resp.Headers["Content-Type"])
}

func TestFinalizeForwardsCustomHeaders(t *testing.T) {
	r := &Record{
		Method:    "GET",
		StdoutBuf: []byte("X-Powered-By: webservd\r\n\r\nbody"),
	}
	resp := Finalize(r)
	require.Equal(t, "webservd", resp.Headers["X-Powered-By"])
}
