package wsconfig

import (
	"sort"
	"strings"

	"github.com/ybouane/webservd/internal/fsutil"
)

// normalize fills in defaults and fixes up invariants that the parser
// doesn't enforce directly: root/index defaults, server_name casing,
// location prefix shape, and the synthetic root location.
func normalize(cfg *Config) {
	for i := range cfg.Servers {
		normalizeServer(&cfg.Servers[i])
	}
}

func normalizeServer(srv *ServerConfig) {
	if srv.Root == "" {
		srv.Root = "www"
	}
	if srv.Index == "" {
		srv.Index = "index.html"
	}
	if srv.UploadDir == "" {
		srv.UploadDir = fsutil.Join(srv.Root, "uploads")
	}
	if srv.ErrorPages == nil {
		srv.ErrorPages = map[int]string{}
	}
	if srv.CGI == nil {
		srv.CGI = map[string]string{}
	}

	srv.ServerNames = normalizeServerNames(srv.ServerNames)

	for i := range srv.Locations {
		normalizeLocation(srv, &srv.Locations[i])
	}

	hasRoot := false
	for i := range srv.Locations {
		if srv.Locations[i].Prefix == "/" {
			hasRoot = true
			break
		}
	}
	if !hasRoot {
		// The synthetic root location allows GET and HEAD only.
		srv.Locations = append(srv.Locations, Location{
			Prefix:    "/",
			Index:     srv.Index,
			AllowGet:  true,
			AllowHead: true,
		})
	}

	sort.SliceStable(srv.Locations, func(i, j int) bool {
		li, lj := srv.Locations[i].Prefix, srv.Locations[j].Prefix
		if len(li) != len(lj) {
			return len(li) > len(lj)
		}
		return li < lj
	})
}

func normalizeServerNames(names []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, n := range names {
		n = strings.ToLower(n)
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func normalizeLocation(srv *ServerConfig, loc *Location) {
	if !strings.HasPrefix(loc.Prefix, "/") {
		loc.Prefix = "/" + loc.Prefix
	}
	if loc.Prefix != "/" {
		loc.Prefix = strings.TrimRight(loc.Prefix, "/")
		if loc.Prefix == "" {
			loc.Prefix = "/"
		}
	}
	if loc.Index == "" {
		loc.Index = srv.Index
	}
	if !loc.AllowGet && !loc.AllowHead && !loc.AllowPost && !loc.AllowDelete && !loc.HasReturn {
		loc.AllowGet = true
		loc.AllowHead = true
	}
}
