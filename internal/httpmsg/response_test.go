package httpmsg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResponseSerialize(t *testing.T) {
	resp := NewResponse(200, []byte("hello"))
	resp.SetHeader("Content-Type", "text/plain")
	resp.SetHeader("Content-Length", "5")
	out := string(resp.Serialize())
	require.True(t, strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n"))
	require.True(t, strings.HasSuffix(out, "\r\n\r\nhello"))
	require.Contains(t, out, "Content-Type: text/plain\r\n")
}

func TestReasonPhraseKnownAndUnknown(t *testing.T) {
	require.Equal(t, "Not Found", ReasonPhrase(404))
	require.Equal(t, "Unknown", ReasonPhrase(799))
}
