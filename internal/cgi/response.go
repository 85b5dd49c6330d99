package cgi

import (
	"strconv"
	"strings"

	"github.com/ybouane/webservd/internal/httpmsg"
)

// Finalize builds the HTTP response for a finished CGI invocation,
// following CgiResponseParser::parse: an empty stdout is a gateway
// failure (502); otherwise the header block (ending at the first
// "\r\n\r\n" or "\n\n") is parsed, a "Status: CCC Reason" line sets the
// response status, every other header is forwarded verbatim, and
// Content-Length/Content-Type are filled in if the script didn't set
// them. Connection: close is always forced. A HEAD request gets its body
// cleared but keeps its headers.
func Finalize(r *Record) *httpmsg.Response {
	if len(r.StdoutBuf) == 0 {
		resp := httpmsg.NewResponse(502, []byte("Bad Gateway\n"))
		resp.SetHeader("Content-Type", "text/plain")
		resp.Finalize()
		return resp
	}

	out := string(r.StdoutBuf)
	sep := strings.Index(out, "\r\n\r\n")
	sepLen := 4
	if sep == -1 {
		sep = strings.Index(out, "\n\n")
		sepLen = 2
	}
	if sep == -1 {
		// No header/body separator at all: treat the whole thing as a
		// plain-text body, matching the permissive original parser's
		// fallback behavior of producing a 200 if finalization were ever
		// reached without one.
		resp := httpmsg.NewResponse(200, r.StdoutBuf)
		resp.SetHeader("Content-Type", "text/plain")
		if r.Method == "HEAD" {
			resp.Body = nil
		}
		resp.Finalize()
		return resp
	}

	head := out[:sep]
	body := []byte(out[sep+sepLen:])

	resp := &httpmsg.Response{
		Version: "HTTP/1.1",
		Status:  200,
		Reason:  "OK",
		Headers: map[string]string{},
		Body:    body,
	}

	for _, line := range splitLines(head) {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon == -1 {
			continue
		}
		key := line[:colon]
		val := strings.TrimLeft(line[colon+1:], " \t")

		if strings.EqualFold(key, "status") {
			applyStatusLine(resp, val)
			continue
		}
		resp.Headers[key] = val
	}

	if _, ok := resp.Headers["Content-Length"]; !ok {
		resp.Headers["Content-Length"] = strconv.Itoa(len(resp.Body))
	}
	if _, ok := resp.Headers["Content-Type"]; !ok {
		resp.Headers["Content-Type"] = "text/plain"
	}

	resp.Headers["Connection"] = "close"

	if r.Method == "HEAD" {
		resp.Body = nil
	}

	return resp
}

func applyStatusLine(resp *httpmsg.Response, val string) {
	sp := strings.IndexByte(val, ' ')
	codeStr := val
	reason := "OK"
	if sp != -1 {
		codeStr = val[:sp]
		if sp+1 < len(val) {
			reason = val[sp+1:]
		}
	}
	if code, err := strconv.Atoi(codeStr); err == nil && code > 0 {
		resp.Status = code
		resp.Reason = reason
	}
}

func splitLines(s string) []string {
	return strings.Split(s, "\n")
}
