package httpparse

import (
	"strconv"
	"testing"

	"github.com/Rainllll/MyWebServer/internal/buffer"
)

func feed(p *Parser, raw string) error {
	p.Init()
	ring := buffer.New()
	ring.Append([]byte(raw))
	return p.Parse(ring)
}

func TestParseSimpleGET(t *testing.T) {
	var p Parser
	err := feed(&p, "GET /index.html HTTP/1.1\r\nHost: example.com\r\nConnection: keep-alive\r\n\r\n")
	if err != nil {
		t.Fatalf("Parse() error = %v, want nil", err)
	}
	if p.Method != "GET" || p.Path != "/index.html" || p.Version != "HTTP/1.1" {
		t.Fatalf("got method=%q path=%q version=%q", p.Method, p.Path, p.Version)
	}
	if !p.KeepAlive() {
		t.Fatal("KeepAlive() = false, want true")
	}
}

func TestParseRootRewritesToIndex(t *testing.T) {
	var p Parser
	if err := feed(&p, "GET / HTTP/1.1\r\n\r\n"); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.Path != "/index.html" {
		t.Fatalf("Path = %q, want /index.html", p.Path)
	}
}

func TestParseIncompleteRequestLine(t *testing.T) {
	var p Parser
	p.Init()
	ring := buffer.New()
	ring.Append([]byte("GET /index.html HTTP/1.1\r\n"))
	if err := p.Parse(ring); err != ErrIncomplete {
		t.Fatalf("Parse() error = %v, want ErrIncomplete", err)
	}
}

func TestParseIncompleteBodyThenComplete(t *testing.T) {
	var p Parser
	p.Init()
	ring := buffer.New()
	ring.Append([]byte("POST /login HTTP/1.1\r\nContent-Length: 30\r\nContent-Type: application/x-www-form-urlencoded\r\n\r\nuser"))

	if err := p.Parse(ring); err != ErrIncomplete {
		t.Fatalf("Parse() error = %v, want ErrIncomplete", err)
	}

	ring.Append([]byte("name=bob&password=secret12"))
	if err := p.Parse(ring); err != nil {
		t.Fatalf("Parse() error = %v, want nil", err)
	}
	if p.Form["username"] != "bob" {
		t.Fatalf("Form[username] = %q, want bob", p.Form["username"])
	}
}

func TestGetLoginServesLoginPage(t *testing.T) {
	var p Parser
	if err := feed(&p, "GET /login HTTP/1.1\r\n\r\n"); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.Path != "/login.html" {
		t.Fatalf("Path = %q, want /login.html", p.Path)
	}
}

func TestGetRegisterServesRegisterPage(t *testing.T) {
	var p Parser
	if err := feed(&p, "GET /register HTTP/1.1\r\n\r\n"); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.Path != "/register.html" {
		t.Fatalf("Path = %q, want /register.html", p.Path)
	}
}

func TestParseInvalidRequestLine(t *testing.T) {
	var p Parser
	if err := feed(&p, "GARBAGE\r\n\r\n"); err != ErrInvalid {
		t.Fatalf("Parse() error = %v, want ErrInvalid", err)
	}
}

func TestParseInvalidHeaderLine(t *testing.T) {
	var p Parser
	if err := feed(&p, "GET / HTTP/1.1\r\nNotAHeader\r\n\r\n"); err != ErrInvalid {
		t.Fatalf("Parse() error = %v, want ErrInvalid", err)
	}
}

func TestLoginSuccessRewritesToWelcome(t *testing.T) {
	var p Parser
	p.Verify = func(username, password string, isLogin bool) bool {
		return isLogin && username == "bob" && password == "secret"
	}
	body := "username=bob&password=secret"
	req := "POST /login HTTP/1.1\r\nContent-Length: " + strconv.Itoa(len(body)) +
		"\r\nContent-Type: application/x-www-form-urlencoded\r\n\r\n" + body

	if err := feed(&p, req); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.Path != "/welcome.html" {
		t.Fatalf("Path = %q, want /welcome.html", p.Path)
	}
}

func TestLoginFailureRewritesToError(t *testing.T) {
	var p Parser
	p.Verify = func(username, password string, isLogin bool) bool { return false }
	body := "username=bob&password=wrong"
	req := "POST /login HTTP/1.1\r\nContent-Length: " + strconv.Itoa(len(body)) +
		"\r\nContent-Type: application/x-www-form-urlencoded\r\n\r\n" + body

	if err := feed(&p, req); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.Path != "/error.html" {
		t.Fatalf("Path = %q, want /error.html", p.Path)
	}
}

func TestDecodeFormURLEncoding(t *testing.T) {
	form := decodeForm("name=John+Doe&email=a%40b.com")
	if form["name"] != "John Doe" {
		t.Fatalf("name = %q, want %q", form["name"], "John Doe")
	}
	if form["email"] != "a@b.com" {
		t.Fatalf("email = %q, want %q", form["email"], "a@b.com")
	}
}

func TestNotKeepAliveUnderHTTP10(t *testing.T) {
	var p Parser
	if err := feed(&p, "GET / HTTP/1.0\r\nConnection: keep-alive\r\n\r\n"); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.KeepAlive() {
		t.Fatal("KeepAlive() = true for HTTP/1.0, want false")
	}
}
