package userstore

import (
	"context"
	"testing"
)

func TestOpenBuildsPooledHandle(t *testing.T) {
	// sql.Open never dials; it only validates the driver name and DSN
	// shape, so this exercises Open() without a live MySQL server.
	s, err := Open(Config{Host: "127.0.0.1", Port: 3306, User: "root", Name: "webserver", PoolSize: 4})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()
}

func TestVerifyRejectsEmptyCredentialsWithoutTouchingDB(t *testing.T) {
	s, err := Open(Config{Host: "127.0.0.1", Port: 3306, User: "root", Name: "webserver"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	ok, err := s.Verify(context.Background(), "", "", true)
	if err != nil {
		t.Fatalf("Verify() error = %v, want nil (short-circuited before any query)", err)
	}
	if ok {
		t.Fatal("Verify() = true for empty credentials, want false")
	}
}
