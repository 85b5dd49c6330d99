// Package autoindex generates the HTML directory listing served when a
// location has autoindex enabled and no index file is present. Each entry
// is shown with its size, directories sort before files, and a parent-
// directory link is added below the listing's own root.
package autoindex

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/ybouane/webservd/internal/fsutil"
)

// Generate builds the directory listing for requestPath (the URL path, used
// to build links) backed by dirPath on disk. Returns an error only if the
// directory cannot be read.
func Generate(requestPath, dirPath string) (string, error) {
	entries, err := fsutil.ListDir(dirPath)
	if err != nil {
		return "", err
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})

	base := requestPath
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<!doctype html><html><head><meta charset=\"utf-8\"><title>Index of %s</title></head><body>", html.EscapeString(requestPath))
	fmt.Fprintf(&b, "<h1>Index of %s</h1><ul>", html.EscapeString(requestPath))
	if requestPath != "/" {
		b.WriteString(`<li><a href="../">../</a></li>`)
	}
	for _, e := range entries {
		name := e.Name
		if e.IsDir {
			name += "/"
		}
		escapedName := html.EscapeString(name)
		if e.IsDir {
			fmt.Fprintf(&b, "<li><a href=\"%s%s\">%s</a></li>", base, escapedName, escapedName)
		} else {
			fmt.Fprintf(&b, "<li><a href=\"%s%s\">%s</a> (%d bytes)</li>", base, escapedName, escapedName, e.Size)
		}
	}
	b.WriteString("</ul></body></html>")
	return b.String(), nil
}
