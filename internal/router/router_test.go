package router

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ybouane/webservd/internal/httpmsg"
	"github.com/ybouane/webservd/internal/wsconfig"
)

func newTestServer(t *testing.T, extra func(*wsconfig.ServerConfig)) (*wsconfig.ServerConfig, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("home"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "page.html"), []byte("subpage"), 0o644))

	srv := &wsconfig.ServerConfig{
		ListenPort:        8080,
		Root:              root,
		Index:             "index.html",
		UploadDir:         filepath.Join(root, "uploads"),
		ClientMaxBodySize: 1 << 20,
		ErrorPages:        map[int]string{},
		CGI:               map[string]string{},
	}
	if extra != nil {
		extra(srv)
	}
	srv.Locations = append(srv.Locations, wsconfig.Location{
		Prefix: "/", Index: "index.html", AllowGet: true, AllowHead: true, AllowPost: true, AllowDelete: true,
	})
	return srv, root
}

func req(method, path string, body []byte) *httpmsg.Request {
	return &httpmsg.Request{Method: method, Path: path, Version: "HTTP/1.1", Headers: map[string]string{}, Body: body}
}

func TestRouteServesIndex(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	res := Route(req("GET", "/", nil), srv)
	require.NotNil(t, res.Response)
	require.Equal(t, 200, res.Response.Status)
	require.Equal(t, "home", string(res.Response.Body))
}

func TestRouteServesSubfile(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	res := Route(req("GET", "/sub/page.html", nil), srv)
	require.Equal(t, 200, res.Response.Status)
	require.Equal(t, "subpage", string(res.Response.Body))
}

func TestRouteDirectoryWithoutTrailingSlashRedirects(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	res := Route(req("GET", "/sub", nil), srv)
	require.Equal(t, 301, res.Response.Status)
	require.Equal(t, "/sub/", res.Response.Headers["Location"])
}

func TestRouteNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	res := Route(req("GET", "/missing.html", nil), srv)
	require.Equal(t, 404, res.Response.Status)
}

func TestRouteHeadEmptyBody(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	res := Route(req("HEAD", "/", nil), srv)
	require.Equal(t, 200, res.Response.Status)
	require.Empty(t, res.Response.Body)
}

func TestRouteMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, func(s *wsconfig.ServerConfig) {
		s.Locations = []wsconfig.Location{
			{Prefix: "/readonly", AllowGet: true},
		}
	})
	res := Route(req("DELETE", "/readonly", nil), srv)
	require.Equal(t, 405, res.Response.Status)
	require.Equal(t, "GET", res.Response.Headers["Allow"])
}

func TestRouteReturnDirective(t *testing.T) {
	srv, _ := newTestServer(t, func(s *wsconfig.ServerConfig) {
		s.Locations = []wsconfig.Location{
			{Prefix: "/old", AllowGet: true, HasReturn: true, ReturnCode: 301, ReturnURL: "/new"},
		}
	})
	res := Route(req("GET", "/old", nil), srv)
	require.Equal(t, 301, res.Response.Status)
	require.Equal(t, "/new", res.Response.Headers["Location"])
}

func TestRoutePostUpload(t *testing.T) {
	srv, root := newTestServer(t, nil)
	res := Route(req("POST", "/", []byte("uploaded data")), srv)
	require.Equal(t, 201, res.Response.Status)

	entries, err := os.ReadDir(filepath.Join(root, "uploads"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRouteDeleteExisting(t *testing.T) {
	srv, root := newTestServer(t, nil)
	target := filepath.Join(root, "to-delete.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	res := Route(req("DELETE", "/to-delete.txt", nil), srv)
	require.Equal(t, 204, res.Response.Status)
	require.NoFileExists(t, target)
}

func TestRouteDeleteMissing(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	res := Route(req("DELETE", "/nope.txt", nil), srv)
	require.Equal(t, 404, res.Response.Status)
}

func TestRouteDeleteDirectoryForbidden(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	res := Route(req("DELETE", "/sub", nil), srv)
	require.Equal(t, 403, res.Response.Status)
}

func TestRouteAutoindex(t *testing.T) {
	srv, _ := newTestServer(t, func(s *wsconfig.ServerConfig) {
		s.Locations = []wsconfig.Location{
			{Prefix: "/sub", AllowGet: true, AllowHead: true, Autoindex: true, Index: "nonexistent.html"},
		}
	})
	res := Route(req("GET", "/sub/", nil), srv)
	require.Equal(t, 200, res.Response.Status)
	require.Contains(t, string(res.Response.Body), "page.html")
}

func TestRouteCGIDispatch(t *testing.T) {
	srv, root := newTestServer(t, func(s *wsconfig.ServerConfig) {
		s.CGI[".cgi"] = "/usr/bin/env"
	})
	script := filepath.Join(root, "hello.cgi")
	require.NoError(t, os.WriteFile(script, []byte("#!/usr/bin/env python3\n"), 0o755))
	res := Route(req("GET", "/hello.cgi", nil), srv)
	require.Nil(t, res.Response)
	require.NotNil(t, res.CGI)
	require.Equal(t, "/usr/bin/env", res.CGI.Interpreter)
	require.Equal(t, script, res.CGI.ScriptPath)
}

func TestRouteUnmatchedLocationIs500(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	srv.Locations = nil
	res := Route(req("GET", "/", nil), srv)
	require.Equal(t, 500, res.Response.Status)
}
