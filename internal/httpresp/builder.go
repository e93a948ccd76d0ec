// Package httpresp implements the response-building side of a connection:
// stat the requested file, decide a status code, mmap the body, and
// produce the header bytes plus the mapped-file scatter/gather element.
// Deliberately out of the connection engine's core scope per spec.md §4.5
// -- the reactor only needs the two-element (header, mmap) vector this
// produces.
//
// Grounded on original_source/code/http/httpresponse.h/.cpp: the
// SUFFIX_TYPE MIME table, CODE_STATUS reason phrases, CODE_PATH error-page
// rewrite, and the mmap-private-readonly body strategy.
package httpresp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// mimeTypes mirrors HttpResponse::SUFFIX_TYPE.
var mimeTypes = map[string]string{
	".html":  "text/html",
	".xml":   "text/xml",
	".xhtml": "application/xhtml+xml",
	".txt":   "text/plain",
	".rtf":   "application/rtf",
	".pdf":   "application/pdf",
	".word":  "application/nsword",
	".png":   "image/png",
	".gif":   "image/gif",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".au":    "audio/basic",
	".mpeg":  "video/mpeg",
	".mpg":   "video/mpeg",
	".avi":   "video/x-msvideo",
	".gz":    "application/x-gzip",
	".tar":   "application/x-tar",
	".css":   "text/css",
	".js":    "text/javascript",
	".json":  "application/json",
}

// reasonPhrases mirrors HttpResponse::CODE_STATUS, extended with the few
// extra codes spec.md's status-line contract names.
var reasonPhrases = map[int]string{
	200: "OK",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	500: "Internal Server Error",
}

// errorPagePath mirrors HttpResponse::CODE_PATH, pinned to the exact
// names spec.md §6 mandates: /400.html, /403.html, /404.html.
var errorPagePath = map[int]string{
	400: "/400.html",
	403: "/403.html",
	404: "/404.html",
}

// Builder holds one connection's response state. Zero value is usable;
// call Init before each response and Reset (or let Init do it) between
// keep-alive requests. Invariant (spec.md §3): a non-nil mapping is
// always paired with a length equal to the stat size, and Init/Reset
// munmap any live mapping.
type Builder struct {
	docRoot   string
	path      string
	keepAlive bool
	code      int

	mapped []byte // non-nil iff a file is currently mmap'd
}

// Init configures the builder for one response. code == -1 means "derive
// from stat" per spec.md §4.5 step 1.
func (b *Builder) Init(docRoot, path string, keepAlive bool, code int) {
	b.unmap()
	b.docRoot = docRoot
	b.path = path
	b.keepAlive = keepAlive
	b.code = code
}

// Reset releases any file mapping, leaving the builder ready for reuse.
func (b *Builder) Reset() {
	b.unmap()
}

func (b *Builder) unmap() {
	if b.mapped != nil {
		unix.Munmap(b.mapped)
		b.mapped = nil
	}
}

// Result is the two-element scatter/gather vector spec.md §4.5 describes:
// header bytes in the connection's write buffer, and the mapped file (or
// an inlined error body) as the second element.
type Result struct {
	Header []byte
	Body   []byte
	Code   int
}

// Build runs the stat/rewrite/mmap algorithm of spec.md §4.5 and returns
// the header+body scatter/gather pair.
func (b *Builder) Build() (Result, error) {
	fullPath := filepath.Join(b.docRoot, b.path)
	info, err := os.Stat(fullPath)

	code := b.code
	switch {
	case err != nil || info.IsDir():
		code = 404
	case info.Mode().Perm()&0004 == 0:
		code = 403
	case code == -1:
		code = 200
	}

	if rewrite, ok := errorPagePath[code]; ok {
		fullPath = filepath.Join(b.docRoot, rewrite)
		info, err = os.Stat(fullPath)
		if err != nil {
			return b.inlineError(code), nil
		}
	}

	header := b.buildHeader(code, int(info.Size()), fullPath)

	body, ok := b.mmapFile(fullPath, info.Size())
	if !ok {
		return b.inlineError(500), nil
	}

	return Result{Header: header, Body: body, Code: code}, nil
}

func (b *Builder) buildHeader(code, contentLength int, fullPath string) []byte {
	var sb strings.Builder

	reason := reasonPhrases[code]
	if reason == "" {
		reason = reasonPhrases[400]
		code = 400
	}
	fmt.Fprintf(&sb, "HTTP/1.1 %d %s\r\n", code, reason)

	if b.keepAlive {
		sb.WriteString("Connection: keep-alive\r\n")
		sb.WriteString("keep-alive: max=6, timeout=120\r\n")
	} else {
		sb.WriteString("Connection: close\r\n")
	}

	ext := strings.ToLower(filepath.Ext(fullPath))
	mime := mimeTypes[ext]
	if mime == "" {
		mime = "text/plain"
	}
	fmt.Fprintf(&sb, "Content-type: %s\r\n", mime)
	fmt.Fprintf(&sb, "Content-length: %d\r\n\r\n", contentLength)

	return []byte(sb.String())
}

// mmapFile opens fullPath read-only and maps it private+read-only. On
// any failure it returns ok=false so the caller falls back to an inlined
// HTML error body, per spec.md §4.5 step 5 and §7. The mmap return is
// checked via Go's (nil, error) contract rather than comparing the
// returned address to -1, which is the bug the C++ original has (spec.md
// §9's redesign flag) and which this port deliberately does not
// reproduce.
func (b *Builder) mmapFile(fullPath string, size int64) ([]byte, bool) {
	if size == 0 {
		return []byte{}, true
	}
	f, err := os.Open(fullPath)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, false
	}
	b.unmap()
	b.mapped = data
	return data, true
}

// inlineError builds a small HTML body describing code directly into the
// header buffer, used when mmap fails or the error page itself is
// missing (spec.md §4.5 step 5, §7).
func (b *Builder) inlineError(code int) Result {
	reason := reasonPhrases[code]
	if reason == "" {
		reason = "Internal Server Error"
		code = 500
	}
	body := fmt.Sprintf("<html><title>%d %s</title><body>%d %s</body></html>", code, reason, code, reason)

	var sb strings.Builder
	fmt.Fprintf(&sb, "HTTP/1.1 %d %s\r\n", code, reason)
	if b.keepAlive {
		sb.WriteString("Connection: keep-alive\r\n")
		sb.WriteString("keep-alive: max=6, timeout=120\r\n")
	} else {
		sb.WriteString("Connection: close\r\n")
	}
	sb.WriteString("Content-type: text/html\r\n")
	fmt.Fprintf(&sb, "Content-length: %d\r\n\r\n", len(body))

	return Result{Header: []byte(sb.String()), Body: []byte(body), Code: code}
}
