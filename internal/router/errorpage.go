package router

import "fmt"

// defaultErrorHTML renders the built-in error body used when no
// error_page directive covers a status.
func defaultErrorHTML(status int, reason string) []byte {
	return []byte(fmt.Sprintf(
		"<!doctype html><html><head><meta charset=\"utf-8\"></head><body><h1>%d %s</h1></body></html>",
		status, reason,
	))
}
