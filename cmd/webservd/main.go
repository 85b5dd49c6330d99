// Command webservd runs a single-threaded HTTP/1.1 origin server
// configured by an nginx-style config file.
package main

import "os"

func main() {
	os.Exit(Main())
}
