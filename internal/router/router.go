// Package router implements request routing: location matching, method
// gating, redirects, CGI dispatch detection, uploads, deletes, and
// static file/autoindex serving. Every failure branch reports through
// httpmsg.Response and the wserr.HTTPError status/class mapping instead
// of building responses inline at each branch.
package router

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ybouane/webservd/internal/autoindex"
	"github.com/ybouane/webservd/internal/fsutil"
	"github.com/ybouane/webservd/internal/httpmsg"
	"github.com/ybouane/webservd/internal/mimetype"
	"github.com/ybouane/webservd/internal/wserr"
	"github.com/ybouane/webservd/internal/wsconfig"
)

// CGIDispatch is returned instead of a Response when the matched
// location resolves to a CGI script.
type CGIDispatch struct {
	Interpreter string
	ScriptPath  string
}

// Result is the outcome of routing a request: exactly one of Response or
// CGI is non-nil.
type Result struct {
	Response *httpmsg.Response
	CGI      *CGIDispatch

	// LogReason carries the internal cause of a server-error response
	// (e.g. "writing upload: permission denied") for the caller to log.
	// It is never sent on the wire.
	LogReason string
}

// uploadCounter gives every upload within this process a distinct
// monotonically increasing sequence number, used in the
// upload_<time>_<pid>_<counter>.bin filename pattern.
var uploadCounter uint64

func nextUploadCounter() uint64 {
	return atomic.AddUint64(&uploadCounter, 1)
}

// Route dispatches req against srv and returns either a ready response or
// a CGI dispatch order for the caller (the CGI coordinator) to spawn.
func Route(req *httpmsg.Request, srv *wsconfig.ServerConfig) *Result {
	loc := matchLocation(srv.Locations, req.Path)
	if loc == nil {
		return respondError(srv, wserr.Server("no location matched request path", nil))
	}

	if !loc.Allows(req.Method) {
		return methodNotAllowedResult(loc)
	}

	if loc.HasReturn {
		return redirectResult(loc)
	}

	fsPath := resolveFSPath(srv, loc, req.Path)

	if interp, ok := cgiInterpreter(srv, fsPath); ok {
		return &Result{CGI: &CGIDispatch{Interpreter: interp, ScriptPath: fsPath}}
	}

	switch req.Method {
	case "POST":
		return handleUpload(srv, req.Body)
	case "DELETE":
		return handleDelete(srv, fsPath)
	default: // GET, HEAD
		return handleGet(srv, loc, req, fsPath)
	}
}

// matchLocation finds the longest prefix match with segment-boundary
// semantics: a prefix only matches if it is the whole path or is
// followed by a "/". srv.Locations is already sorted longest-prefix-
// first by wsconfig.normalize, with "/" guaranteed present as the final
// fallback.
func matchLocation(locations []wsconfig.Location, path string) *wsconfig.Location {
	for i := range locations {
		loc := &locations[i]
		pre := loc.Prefix
		if pre == "/" {
			return loc
		}
		if !strings.HasPrefix(path, pre) {
			continue
		}
		if len(path) == len(pre) {
			return loc
		}
		if strings.HasSuffix(pre, "/") || path[len(pre)] == '/' {
			return loc
		}
	}
	return nil
}

// resolveFSPath computes the filesystem path for a request: the
// location's own root if set, else the server root, joined with the
// request path minus the location prefix; when the location has no root
// override, the prefix folder is re-added so files still sit at
// server_root/<prefix>/...
func resolveFSPath(srv *wsconfig.ServerConfig, loc *wsconfig.Location, path string) string {
	baseRoot := srv.Root
	if loc.Root != "" {
		baseRoot = loc.Root
	}

	relative := strings.TrimPrefix(path, loc.Prefix)
	relative = strings.TrimPrefix(relative, "/")

	if loc.Root == "" && loc.Prefix != "/" {
		relative = fsutil.Join(strings.TrimPrefix(loc.Prefix, "/"), relative)
	}

	return fsutil.Join(baseRoot, relative)
}

func cgiInterpreter(srv *wsconfig.ServerConfig, fsPath string) (string, bool) {
	if len(srv.CGI) == 0 {
		return "", false
	}
	dot := strings.LastIndexByte(fsPath, '.')
	if dot == -1 {
		return "", false
	}
	ext := fsPath[dot:]
	interp, ok := srv.CGI[ext]
	if !ok {
		return "", false
	}
	if !fsutil.IsRegular(fsPath) {
		return "", false
	}
	return interp, true
}

func handleUpload(srv *wsconfig.ServerConfig, body []byte) *Result {
	name := fsutil.UploadFilename(time.Now().Unix(), os.Getpid(), nextUploadCounter())
	dest := fsutil.Join(srv.UploadDir, name)
	if err := fsutil.WriteFile(dest, body); err != nil {
		return respondError(srv, wserr.Server("writing upload", err))
	}
	resp := httpmsg.NewResponse(201, []byte(name+"\n"))
	resp.SetHeader("Content-Type", "text/plain")
	return &Result{Response: resp}
}

func handleDelete(srv *wsconfig.ServerConfig, fsPath string) *Result {
	if fsutil.IsDir(fsPath) {
		return respondError(srv, wserr.Resource(403, "Forbidden", nil))
	}
	err := os.Remove(fsPath)
	if err == nil {
		resp := httpmsg.NewResponse(204, nil)
		return &Result{Response: resp}
	}
	switch {
	case errors.Is(err, os.ErrNotExist):
		return respondError(srv, wserr.Resource(404, "Not Found", err))
	case errors.Is(err, os.ErrPermission):
		return respondError(srv, wserr.Resource(403, "Forbidden", err))
	default:
		return respondError(srv, wserr.Server("deleting file", err))
	}
}

func handleGet(srv *wsconfig.ServerConfig, loc *wsconfig.Location, req *httpmsg.Request, fsPath string) *Result {
	if fsutil.IsDir(fsPath) {
		if !strings.HasSuffix(req.Path, "/") {
			resp := httpmsg.NewResponse(301, nil)
			resp.SetHeader("Location", req.Path+"/")
			return &Result{Response: resp}
		}

		indexPath := fsutil.Join(fsPath, loc.Index)
		if fsutil.IsRegular(indexPath) {
			return serveFile(srv, req, indexPath)
		}

		if loc.Autoindex {
			html, err := autoindex.Generate(req.Path, fsPath)
			if err != nil {
				return respondError(srv, wserr.Server("generating directory listing", err))
			}
			resp := httpmsg.NewResponse(200, []byte(html))
			resp.SetHeader("Content-Type", "text/html")
			if req.Method == "HEAD" {
				resp.Body = nil
				resp.SetHeader("Content-Length", fmt.Sprint(len(html)))
			}
			return &Result{Response: resp}
		}

		return respondError(srv, wserr.Resource(404, "Not Found", nil))
	}

	if !fsutil.IsRegular(fsPath) {
		return respondError(srv, wserr.Resource(404, "Not Found", nil))
	}
	return serveFile(srv, req, fsPath)
}

func serveFile(srv *wsconfig.ServerConfig, req *httpmsg.Request, fsPath string) *Result {
	data, err := fsutil.ReadFile(fsPath)
	if err != nil {
		return respondError(srv, wserr.Resource(404, "Not Found", err))
	}
	resp := httpmsg.NewResponse(200, data)
	resp.SetHeader("Content-Type", mimetype.ForPath(fsPath))
	resp.SetHeader("Content-Length", fmt.Sprint(len(data)))
	if req.Method == "HEAD" {
		resp.Body = nil
	}
	return &Result{Response: resp}
}

func methodNotAllowedResult(loc *wsconfig.Location) *Result {
	err := wserr.Method(strings.Join(loc.AllowedMethods(), ", "))
	resp := httpmsg.NewResponse(err.Status, []byte("Method Not Allowed\n"))
	resp.SetHeader("Content-Type", "text/plain")
	resp.SetHeader("Allow", err.Allow)
	return &Result{Response: resp}
}

func redirectResult(loc *wsconfig.Location) *Result {
	code := loc.ReturnCode
	if code <= 0 {
		code = 302
	}
	resp := httpmsg.NewResponse(code, nil)
	resp.SetHeader("Location", loc.ReturnURL)
	return &Result{Response: resp}
}

// respondError classifies err via the wserr taxonomy and builds the
// corresponding Result, so every failure branch in this file reports
// through the same status/class mapping instead of scattering literal
// status codes.
func respondError(srv *wsconfig.ServerConfig, err *wserr.HTTPError) *Result {
	reason := err.Reason
	if err.Err != nil {
		reason += ": " + err.Err.Error()
	}
	return errorResult(srv, err.Status, reason)
}

// errorResult builds a response for status, preferring the server's
// configured error_page if one is set and readable, falling back to the
// built-in HTML. reason is an internal cause for the caller to log; the
// response always carries the standard reason phrase for status, never
// reason itself.
func errorResult(srv *wsconfig.ServerConfig, status int, reason string) *Result {
	if path, ok := srv.ErrorPages[status]; ok {
		fsPath := fsutil.Join(srv.Root, strings.TrimPrefix(path, "/"))
		if data, err := fsutil.ReadFile(fsPath); err == nil {
			resp := httpmsg.NewResponse(status, data)
			resp.SetHeader("Content-Type", mimetype.ForPath(fsPath))
			return &Result{Response: resp, LogReason: reason}
		}
	}
	body := defaultErrorHTML(status, httpmsg.ReasonPhrase(status))
	resp := httpmsg.NewResponse(status, body)
	resp.SetHeader("Content-Type", "text/html")
	return &Result{Response: resp, LogReason: reason}
}
