package wsconfig

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// ParseError reports the line at which parsing failed, formatted as
// "line N: message".
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

func errf(line int, format string, args ...any) error {
	return &ParseError{Line: line, Message: fmt.Sprintf(format, args...)}
}

// LoadFile loads and parses the config file at path. A missing file is
// not an error: the caller gets Default() instead.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse parses a config document from r.
func Parse(r io.Reader) (*Config, error) {
	lex := newLexer(r)
	tokens, err := lex.tokenize()
	if err != nil {
		return nil, fmt.Errorf("tokenizing config: %w", err)
	}

	p := &parser{tokens: tokens}
	servers, err := p.parseTop()
	if err != nil {
		return nil, err
	}

	cfg := &Config{Servers: servers}
	normalize(cfg)
	return cfg, nil
}

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) peek() (Token, bool) {
	if p.pos >= len(p.tokens) {
		return Token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) advance() (Token, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

func (p *parser) lastLine() int {
	if len(p.tokens) == 0 {
		return 0
	}
	return p.tokens[len(p.tokens)-1].Line
}

func (p *parser) parseTop() ([]ServerConfig, error) {
	var servers []ServerConfig
	for {
		tok, ok := p.peek()
		if !ok {
			break
		}
		if tok.Text != "server" {
			return nil, errf(tok.Line, "unexpected token %q", tok.Text)
		}
		p.advance()
		srv := ServerConfig{
			Root:              "",
			Index:             "",
			ClientMaxBodySize: 1 << 20,
			ErrorPages:        map[int]string{},
			CGI:               map[string]string{},
		}
		if err := p.parseServerBlock(&srv); err != nil {
			return nil, err
		}
		servers = append(servers, srv)
	}
	return servers, nil
}

func (p *parser) expect(text string) (int, error) {
	tok, ok := p.advance()
	if !ok {
		return 0, errf(p.lastLine(), "unexpected end of file, expected %q", text)
	}
	if tok.Text != text {
		return 0, errf(tok.Line, "expected %q, got %q", text, tok.Text)
	}
	return tok.Line, nil
}

func (p *parser) parseServerBlock(srv *ServerConfig) error {
	if _, err := p.expect("{"); err != nil {
		return fmt.Errorf("%w (after 'server')", err)
	}

	for {
		tok, ok := p.peek()
		if !ok {
			return errf(p.lastLine(), "unexpected end of file in server block")
		}
		if tok.Text == "}" {
			p.advance()
			return nil
		}
		if tok.Text == "location" {
			p.advance()
			if err := p.parseLocationBlock(srv); err != nil {
				return err
			}
			continue
		}
		if err := p.parseDirective(srv, nil); err != nil {
			return err
		}
	}
}

func (p *parser) parseLocationBlock(srv *ServerConfig) error {
	prefixTok, ok := p.advance()
	if !ok {
		return errf(p.lastLine(), "unexpected end of file after 'location'")
	}
	if _, err := p.expect("{"); err != nil {
		return fmt.Errorf("%w (after location %s)", err, prefixTok.Text)
	}

	loc := getOrCreateLocation(srv, prefixTok.Text)

	for {
		tok, ok := p.peek()
		if !ok {
			return errf(prefixTok.Line, "unexpected end of file in location %s", prefixTok.Text)
		}
		if tok.Text == "}" {
			p.advance()
			return nil
		}
		if err := p.parseDirective(srv, loc); err != nil {
			return err
		}
	}
}

func getOrCreateLocation(srv *ServerConfig, prefix string) *Location {
	for i := range srv.Locations {
		if srv.Locations[i].Prefix == prefix {
			return &srv.Locations[i]
		}
	}
	srv.Locations = append(srv.Locations, Location{Prefix: prefix, AllowGet: true, AllowHead: true})
	return &srv.Locations[len(srv.Locations)-1]
}

func (p *parser) parseDirective(srv *ServerConfig, loc *Location) error {
	keyTok, ok := p.advance()
	if !ok {
		return errf(p.lastLine(), "unexpected end of file")
	}
	key := keyTok.Text

	var args []string
	for {
		tok, ok := p.peek()
		if !ok {
			return errf(keyTok.Line, "unexpected end of file after directive %s", key)
		}
		if tok.Text == ";" || tok.Text == "{" || tok.Text == "}" {
			break
		}
		p.advance()
		args = append(args, tok.Text)
	}

	if _, err := p.expect(";"); err != nil {
		return fmt.Errorf("%w (after directive %s)", err, key)
	}

	var applyErr error
	if loc != nil {
		applyErr = applyLocationDirective(loc, key, args)
	} else {
		applyErr = applyServerDirective(srv, key, args)
	}
	if applyErr != nil {
		return errf(keyTok.Line, "invalid directive %q: %v", key, applyErr)
	}
	return nil
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func parsePort(s string) (uint16, error) {
	host := s
	if idx := strings.LastIndexByte(s, ':'); idx >= 0 {
		host = s[idx+1:]
	}
	if !isNumber(host) {
		return 0, fmt.Errorf("not a valid port: %q", s)
	}
	n, err := strconv.Atoi(host)
	if err != nil || n < 1 || n > 65535 {
		return 0, fmt.Errorf("port out of range: %q", s)
	}
	return uint16(n), nil
}

func parseByteSize(s string) (int64, error) {
	if isNumber(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, err
		}
		return n, nil
	}
	// A bare k/m/g suffix is binary, as in nginx (10m = 10 MiB); humanize
	// alone would read it as a decimal SI unit.
	if s != "" && strings.ContainsRune("kKmMgG", rune(s[len(s)-1])) {
		s += "ib"
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("not a valid byte size: %q", s)
	}
	return int64(n), nil
}

func applyServerDirective(srv *ServerConfig, key string, args []string) error {
	switch key {
	case "listen":
		if len(args) != 1 {
			return fmt.Errorf("expects exactly one argument")
		}
		port, err := parsePort(args[0])
		if err != nil {
			return err
		}
		srv.ListenPort = port
		return nil

	case "server_name":
		if len(args) == 0 {
			return fmt.Errorf("expects at least one argument")
		}
		srv.ServerNames = append(srv.ServerNames, args...)
		return nil

	case "root":
		if len(args) != 1 {
			return fmt.Errorf("expects exactly one argument")
		}
		srv.Root = args[0]
		return nil

	case "index":
		if len(args) != 1 {
			return fmt.Errorf("expects exactly one argument")
		}
		srv.Index = args[0]
		return nil

	case "upload_dir":
		if len(args) != 1 {
			return fmt.Errorf("expects exactly one argument")
		}
		srv.UploadDir = args[0]
		return nil

	case "client_max_body_size":
		if len(args) != 1 {
			return fmt.Errorf("expects exactly one argument")
		}
		n, err := parseByteSize(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("expects a positive byte size")
		}
		srv.ClientMaxBodySize = n
		return nil

	case "error_page":
		if len(args) < 2 {
			return fmt.Errorf("expects at least a code and a path")
		}
		path := args[len(args)-1]
		codes := args[:len(args)-1]
		any := false
		for _, c := range codes {
			if !isNumber(c) {
				return fmt.Errorf("expects numeric status codes, got %q", c)
			}
			code, _ := strconv.Atoi(c)
			if code > 0 {
				srv.ErrorPages[code] = path
				any = true
			}
		}
		if !any {
			return fmt.Errorf("no valid status codes given")
		}
		return nil

	case "cgi":
		if len(args) != 2 {
			return fmt.Errorf("expects an extension and an interpreter path")
		}
		srv.CGI[args[0]] = args[1]
		return nil

	case "session":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return fmt.Errorf("expects 'on' or 'off'")
		}
		srv.SessionEnabled = args[0] == "on"
		return nil

	case "session_timeout":
		if len(args) != 1 {
			return fmt.Errorf("expects exactly one argument")
		}
		n, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("expects a positive integer")
		}
		srv.SessionTimeout = n
		return nil

	case "session_store_path":
		if len(args) != 1 {
			return fmt.Errorf("expects exactly one argument")
		}
		srv.SessionStorePath = args[0]
		return nil

	default:
		return fmt.Errorf("unknown directive")
	}
}

func applyLocationDirective(loc *Location, key string, args []string) error {
	switch key {
	case "root":
		if len(args) != 1 {
			return fmt.Errorf("expects exactly one argument")
		}
		loc.Root = args[0]
		return nil

	case "index":
		if len(args) != 1 {
			return fmt.Errorf("expects exactly one argument")
		}
		loc.Index = args[0]
		return nil

	case "autoindex":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return fmt.Errorf("expects 'on' or 'off'")
		}
		loc.Autoindex = args[0] == "on"
		return nil

	case "allowed_methods":
		if len(args) == 0 {
			return fmt.Errorf("expects at least one method")
		}
		setAllowedMethods(loc, args)
		return nil

	case "return", "redirect":
		if len(args) >= 2 && isNumber(args[0]) {
			code, _ := strconv.Atoi(args[0])
			loc.HasReturn = true
			loc.ReturnCode = code
			loc.ReturnURL = args[1]
			return nil
		}
		if len(args) == 1 {
			loc.HasReturn = true
			loc.ReturnCode = 302
			loc.ReturnURL = args[0]
			return nil
		}
		return fmt.Errorf("expects [CODE] URL")

	default:
		return fmt.Errorf("unknown directive")
	}
}

func setAllowedMethods(loc *Location, args []string) {
	loc.AllowGet = false
	loc.AllowHead = false
	loc.AllowPost = false
	loc.AllowDelete = false
	for _, m := range args {
		switch m {
		case "ALL":
			loc.AllowGet, loc.AllowHead, loc.AllowPost, loc.AllowDelete = true, true, true, true
		case "GET":
			loc.AllowGet = true
		case "HEAD":
			loc.AllowHead = true
		case "POST":
			loc.AllowPost = true
		case "DELETE":
			loc.AllowDelete = true
		}
	}
}
