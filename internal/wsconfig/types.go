// Package wsconfig parses an nginx-style configuration file into a
// validated list of ServerConfig values, via a small rune-scanning
// lexer (quoted tokens, line tracking for diagnostics) feeding a
// recursive-descent parser over server/location blocks.
package wsconfig

// Location is a single `location` block inside a server block.
type Location struct {
	Prefix    string
	Root      string
	Index     string
	Autoindex bool

	AllowGet    bool
	AllowHead   bool
	AllowPost   bool
	AllowDelete bool

	HasReturn  bool
	ReturnCode int
	ReturnURL  string
}

// AllowedMethods returns the HTTP methods this location permits, in a
// fixed, deterministic order, for building an Allow header.
func (l *Location) AllowedMethods() []string {
	var out []string
	if l.AllowGet {
		out = append(out, "GET")
	}
	if l.AllowHead {
		out = append(out, "HEAD")
	}
	if l.AllowPost {
		out = append(out, "POST")
	}
	if l.AllowDelete {
		out = append(out, "DELETE")
	}
	return out
}

// Allows reports whether method is permitted by this location.
func (l *Location) Allows(method string) bool {
	switch method {
	case "GET":
		return l.AllowGet
	case "HEAD":
		return l.AllowHead
	case "POST":
		return l.AllowPost
	case "DELETE":
		return l.AllowDelete
	default:
		return false
	}
}

// ServerConfig is one `server { ... }` block.
type ServerConfig struct {
	ListenPort        uint16
	ServerNames       []string
	Root              string
	Index             string
	UploadDir         string
	ClientMaxBodySize int64

	ErrorPages map[int]string
	CGI        map[string]string // extension -> interpreter path

	SessionEnabled    bool
	SessionTimeout    int64
	SessionStorePath  string

	Locations []Location
}

// Config is the full set of server blocks loaded from a configuration file.
type Config struct {
	Servers []ServerConfig
}

// Default returns the fallback configuration used when no config file is
// present: a single default server on port 8080.
func Default() *Config {
	cfg := &Config{
		Servers: []ServerConfig{
			{
				ListenPort:        8080,
				Root:              "www",
				Index:             "index.html",
				UploadDir:         "www/uploads",
				ClientMaxBodySize: 1 << 20,
				ErrorPages:        map[int]string{},
				CGI:               map[string]string{},
			},
		},
	}
	normalize(cfg)
	return cfg
}
