package cgi

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ybouane/webservd/internal/httpmsg"
)

func TestBuildEnvSkipsDedicatedHeaders(t *testing.T) {
	req := &httpmsg.Request{
		Method:  "GET",
		Path:    "/cgi-bin/hello.cgi",
		Query:   "x=1",
		Version: "HTTP/1.1",
		Headers: map[string]string{
			"host":            "example.com",
			"content-type":    "text/plain",
			"content-length":  "0",
			"x-custom-header": "  value with spaces  ",
		},
	}
	env := BuildEnv(req, "/srv/www/cgi-bin/hello.cgi")

	require.Contains(t, env, "GATEWAY_INTERFACE=CGI/1.1")
	require.Contains(t, env, "SERVER_PROTOCOL=HTTP/1.1")
	require.Contains(t, env, "REQUEST_METHOD=GET")
	require.Contains(t, env, "SCRIPT_FILENAME=/srv/www/cgi-bin/hello.cgi")
	require.Contains(t, env, "SCRIPT_NAME=/cgi-bin/hello.cgi")
	require.Contains(t, env, "QUERY_STRING=x=1")
	require.Contains(t, env, "HTTP_HOST=example.com")
	require.Contains(t, env, "CONTENT_TYPE=text/plain")
	require.Contains(t, env, "CONTENT_LENGTH=0")
	require.Contains(t, env, "HTTP_X_CUSTOM_HEADER=value with spaces")

	for _, e := range env {
		require.NotContains(t, e, "HTTP_CONTENT_LENGTH")
		require.NotContains(t, e, "HTTP_HOST=example.com\n")
	}
}

func TestBuildEnvPostContentLength(t *testing.T) {
	req := &httpmsg.Request{
		Method:  "POST",
		Path:    "/cgi-bin/x.cgi",
		Version: "HTTP/1.1",
		Headers: map[string]string{},
		Body:    []byte("hello world"),
	}
	env := BuildEnv(req, "/x.cgi")
	require.Contains(t, env, "CONTENT_LENGTH=11")
}

func TestToHTTPKeyDashToUnderscore(t *testing.T) {
	require.Equal(t, "HTTP_X_FORWARDED_FOR", toHTTPKey("x-forwarded-for"))
}
