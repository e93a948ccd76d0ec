package httpresp

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0644); err != nil {
		t.Fatalf("WriteFile(%s): %v", name, err)
	}
}

func TestBuildServesExistingFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.html", "<html>hi</html>")

	var b Builder
	b.Init(dir, "/index.html", true, -1)
	defer b.Reset()

	result, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if result.Code != 200 {
		t.Fatalf("Code = %d, want 200", result.Code)
	}
	if string(result.Body) != "<html>hi</html>" {
		t.Fatalf("Body = %q, want %q", result.Body, "<html>hi</html>")
	}
	if !strings.Contains(string(result.Header), "HTTP/1.1 200 OK") {
		t.Fatalf("Header missing status line: %q", result.Header)
	}
	if !strings.Contains(string(result.Header), "Connection: keep-alive") {
		t.Fatalf("Header missing keep-alive: %q", result.Header)
	}
	if !strings.Contains(string(result.Header), "Content-type: text/html") {
		t.Fatalf("Header missing content-type: %q", result.Header)
	}
}

func TestBuildMissingFileFallsBackTo404Page(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "404.html", "<html>not found</html>")

	var b Builder
	b.Init(dir, "/missing.html", false, -1)
	defer b.Reset()

	result, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if result.Code != 404 {
		t.Fatalf("Code = %d, want 404", result.Code)
	}
	if string(result.Body) != "<html>not found</html>" {
		t.Fatalf("Body = %q, want the 404 page contents", result.Body)
	}
}

func TestBuildMissingFileAndMissingErrorPageInlines(t *testing.T) {
	dir := t.TempDir()

	var b Builder
	b.Init(dir, "/missing.html", false, -1)
	defer b.Reset()

	result, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if result.Code != 404 {
		t.Fatalf("Code = %d, want 404", result.Code)
	}
	if !strings.Contains(string(result.Body), "404") {
		t.Fatalf("inlined body = %q, want it to mention 404", result.Body)
	}
}

func TestBuildUnreadableFileIsForbidden(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "secret.html", "top secret")
	if err := os.Chmod(filepath.Join(dir, "secret.html"), 0222); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	writeFile(t, dir, "403.html", "<html>forbidden</html>")

	var b Builder
	b.Init(dir, "/secret.html", false, -1)
	defer b.Reset()

	result, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if result.Code != 403 {
		t.Fatalf("Code = %d, want 403", result.Code)
	}
}

func TestBuildEmptyFileSkipsMmap(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.html", "")

	var b Builder
	b.Init(dir, "/empty.html", false, -1)
	defer b.Reset()

	result, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(result.Body) != 0 {
		t.Fatalf("Body = %q, want empty", result.Body)
	}
}

func TestUnknownExtensionDefaultsToPlainText(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "data.bin", "raw")

	var b Builder
	b.Init(dir, "/data.bin", false, -1)
	defer b.Reset()

	result, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !strings.Contains(string(result.Header), "Content-type: text/plain") {
		t.Fatalf("Header = %q, want text/plain for an unrecognized extension", result.Header)
	}
}
