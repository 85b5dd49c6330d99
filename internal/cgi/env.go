// Package cgi implements CGI/1.1 subprocess handling: spawning the
// interpreter over three pipes, pumping those pipes without blocking the
// caller, building the CGI environment, and parsing the finished
// subprocess's output into an HTTP response. os/exec.Cmd drives the
// fork+exec and argv/envp marshaling; the pipe fds it hands back are then
// switched to non-blocking mode and pumped directly with
// golang.org/x/sys/unix so the poll-driven engine can register them.
package cgi

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ybouane/webservd/internal/httpmsg"
)

// BuildEnv constructs the CGI/1.1 environment for a request, following
// CgiRunner::buildCgiEnv: Host, Content-Type, and Content-Length get
// their own dedicated variables and are skipped in the generic HTTP_*
// loop; every other header becomes HTTP_<UPPER_SNAKE_CASE>, with values
// whitespace-stripped.
func BuildEnv(req *httpmsg.Request, scriptPath string) []string {
	env := make([]string, 0, len(req.Headers)+8)
	env = append(env,
		"GATEWAY_INTERFACE=CGI/1.1",
		"SERVER_PROTOCOL="+req.Version,
		"REQUEST_METHOD="+req.Method,
		"SCRIPT_FILENAME="+scriptPath,
		"SCRIPT_NAME="+req.Path,
		"QUERY_STRING="+req.Query,
	)

	if host := req.Header("host"); host != "" {
		env = append(env, "HTTP_HOST="+stripSpaces(host))
	}
	if ct := req.Header("content-type"); ct != "" {
		env = append(env, "CONTENT_TYPE="+stripSpaces(ct))
	}

	if req.Method == "POST" {
		env = append(env, "CONTENT_LENGTH="+strconv.Itoa(len(req.Body)))
	} else {
		env = append(env, "CONTENT_LENGTH=0")
	}

	for _, key := range sortedKeys(req.Headers) {
		if key == "host" || key == "content-type" || key == "content-length" {
			continue
		}
		env = append(env, toHTTPKey(key)+"="+stripSpaces(req.Headers[key]))
	}

	return env
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toHTTPKey(lowerKey string) string {
	var b strings.Builder
	b.WriteString("HTTP_")
	for _, c := range lowerKey {
		if c == '-' {
			b.WriteByte('_')
		} else {
			b.WriteRune(toUpperASCII(c))
		}
	}
	return b.String()
}

func toUpperASCII(c rune) rune {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}

func stripSpaces(s string) string {
	return strings.Trim(s, " \t")
}
