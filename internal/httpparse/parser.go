// Package httpparse implements the request-line/headers/body parser state
// machine described at the connection's interface in spec.md §4.4. It is
// explicitly out of the connection engine's core scope -- the reactor only
// needs to know its four-phase shape and the bool it reports back.
//
// Grounded on original_source/code/http/httprequest.h (the PARSE_STATE
// enum, DEFAULT_HTML / DEFAULT_HTML_TAG rewrite tables, ParseFromUrlencoded_)
// and on server/protocol/parser.go's incremental, buffer-backed style.
package httpparse

import (
	"bytes"
	"errors"
	"strings"

	"github.com/Rainllll/MyWebServer/internal/buffer"
)

// Phase is one state of the four-phase machine.
type Phase int

const (
	RequestLine Phase = iota
	Headers
	Body
	Finish
)

var (
	ErrIncomplete = errors.New("httpparse: incomplete request")
	ErrInvalid    = errors.New("httpparse: invalid request")
)

// Verifier is the opaque, synchronous DB collaborator spec.md §6 calls
// user_verify. It is supplied by the caller (a worker-pool closure) so
// this package never imports the database layer directly.
type Verifier func(username, password string, isLogin bool) bool

// defaultHTMLTag rewrites a handful of known routes to their backing
// .html file, per spec.md §4.4 and original_source's DEFAULT_HTML_TAG.
// The rewrite is unconditional on method -- a plain GET /login must serve
// login.html exactly like POST /login does before user_verify runs.
var defaultHTMLTag = map[string]bool{
	"/register": true,
	"/login":    true,
}

// Parser is a four-phase request parser. Reset by Init; a connection
// embeds one Parser and reuses it across keep-alive requests.
type Parser struct {
	phase Phase

	Method, Path, Version string
	Headers               map[string]string
	Form                  map[string]string

	// route holds the pre-rewrite name ("/login" or "/register") when
	// Path was rewritten to its .html file, so parseBody can still tell
	// which form was posted after Path itself has been overwritten.
	route string

	contentLength int
	body          strings.Builder

	Verify Verifier
}

// Init (re)initializes the parser to RequestLine, discarding any
// in-progress accumulation. Matches HttpRequest::Init.
func (p *Parser) Init() {
	p.phase = RequestLine
	p.Method, p.Path, p.Version = "", "", ""
	p.route = ""
	p.Headers = make(map[string]string)
	p.Form = make(map[string]string)
	p.contentLength = 0
	p.body.Reset()
}

// Phase reports the parser's current state.
func (p *Parser) Phase() Phase { return p.phase }

// Parse consumes as much of ring's readable region as forms complete
// lines/body, advancing the ring's read cursor as it goes. Returns nil
// once Finish is reached (a full request has been parsed), ErrIncomplete
// if more input is needed, or ErrInvalid on a malformed request line or
// header.
func (p *Parser) Parse(ring *buffer.Ring) error {
	if p.Headers == nil {
		p.Init()
	}
	for p.phase != Finish {
		data := ring.ReadableSlice()
		switch p.phase {
		case RequestLine:
			line, ok := cutCRLF(data)
			if !ok {
				return ErrIncomplete
			}
			if err := p.parseRequestLine(line); err != nil {
				return err
			}
			ring.Retrieve(len(line) + 2)
			p.phase = Headers

		case Headers:
			line, ok := cutCRLF(data)
			if !ok {
				return ErrIncomplete
			}
			ring.Retrieve(len(line) + 2)
			if len(line) == 0 {
				if p.contentLength > 0 && p.Method == "POST" {
					p.phase = Body
				} else {
					p.phase = Finish
				}
				continue
			}
			if err := p.parseHeaderLine(line); err != nil {
				return err
			}

		case Body:
			data = ring.ReadableSlice()
			if len(data) < p.contentLength {
				return ErrIncomplete
			}
			p.body.Write(data[:p.contentLength])
			ring.Retrieve(p.contentLength)
			p.parseBody()
			p.phase = Finish
		}
	}
	return nil
}

// cutCRLF finds the first CRLF in data and returns the bytes before it
// (excluding the CRLF), or ok=false if no full line is present yet.
func cutCRLF(data []byte) ([]byte, bool) {
	idx := bytes.Index(data, []byte("\r\n"))
	if idx == -1 {
		return nil, false
	}
	return data[:idx], true
}

func (p *Parser) parseRequestLine(line []byte) error {
	parts := bytes.SplitN(line, []byte(" "), 3)
	if len(parts) != 3 {
		return ErrInvalid
	}
	p.Method = string(parts[0])
	p.Path = string(parts[1])
	p.Version = string(parts[2])
	if !strings.HasPrefix(p.Version, "HTTP/") {
		return ErrInvalid
	}

	if p.Path == "/" {
		p.Path = "/index.html"
	} else if defaultHTMLTag[p.Path] {
		p.route = p.Path
		p.Path += ".html"
	}
	return nil
}

func (p *Parser) parseHeaderLine(line []byte) error {
	idx := bytes.IndexByte(line, ':')
	if idx == -1 {
		return ErrInvalid
	}
	key := strings.TrimSpace(string(line[:idx]))
	val := strings.TrimSpace(string(line[idx+1:]))
	p.Headers[key] = val

	if strings.EqualFold(key, "Content-Length") {
		n := 0
		for _, c := range val {
			if c < '0' || c > '9' {
				continue
			}
			n = n*10 + int(c-'0')
		}
		p.contentLength = n
	}
	return nil
}

func (p *Parser) parseBody() {
	body := p.body.String()
	if !strings.EqualFold(p.Headers["Content-Type"], "application/x-www-form-urlencoded") {
		return
	}
	p.Form = decodeForm(body)

	// Only a POST to a known login/register route runs user_verify and
	// overrides the .html rewrite parseRequestLine already made; a GET to
	// either route just serves the static login/register page.
	if p.Method != "POST" || p.route == "" {
		return
	}
	username, password := p.Form["username"], p.Form["password"]
	isLogin := p.route == "/login"
	ok := true
	if p.Verify != nil {
		ok = p.Verify(username, password, isLogin)
	}
	if ok {
		p.Path = "/welcome.html"
	} else {
		p.Path = "/error.html"
	}
}

// decodeForm decodes an application/x-www-form-urlencoded body into a
// key/value map: '+' -> space, %HH -> byte, tolerating upper and lower
// case hex digits (spec.md §4.4).
func decodeForm(body string) map[string]string {
	form := make(map[string]string)
	for _, pair := range strings.Split(body, "&") {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		key := decodeURLComponent(kv[0])
		val := ""
		if len(kv) == 2 {
			val = decodeURLComponent(kv[1])
		}
		form[key] = val
	}
	return form
}

func decodeURLComponent(s string) string {
	var out strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '+':
			out.WriteByte(' ')
		case '%':
			if i+2 < len(s) {
				hi, okHi := hexDigit(s[i+1])
				lo, okLo := hexDigit(s[i+2])
				if okHi && okLo {
					out.WriteByte(byte(hi<<4 | lo))
					i += 2
					continue
				}
			}
			out.WriteByte(s[i])
		default:
			out.WriteByte(s[i])
		}
	}
	return out.String()
}

func hexDigit(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	default:
		return 0, false
	}
}

// KeepAlive reports whether the parsed request should keep the
// connection open: HTTP/1.1 and a case-insensitive "keep-alive"
// Connection header (spec.md §4.4).
func (p *Parser) KeepAlive() bool {
	if p.Version != "HTTP/1.1" {
		return false
	}
	return strings.EqualFold(p.Headers["Connection"], "keep-alive")
}
