package epoll

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestWaitReportsReadablePipe(t *testing.T) {
	fds := make([]int, 2)
	if err := unix.Pipe(fds); err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	p, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	if err := p.Add(fds[0], Readable); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if n, _ := p.Wait(0); n != 0 {
		t.Fatalf("Wait(0) before any write = %d ready, want 0", n)
	}

	if _, err := unix.Write(fds[1], []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	n, err := p.Wait(1000)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("Wait() = %d ready, want 1", n)
	}
	if p.EventFD(0) != fds[0] {
		t.Fatalf("EventFD(0) = %d, want %d", p.EventFD(0), fds[0])
	}
	if p.EventMask(0)&Readable == 0 {
		t.Fatalf("EventMask(0) = %v, missing Readable", p.EventMask(0))
	}
}

func TestOneShotRequiresRearm(t *testing.T) {
	fds := make([]int, 2)
	if err := unix.Pipe(fds); err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	p, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	if err := p.Add(fds[0], Readable|OneShot); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	unix.Write(fds[1], []byte("x"))

	n, _ := p.Wait(1000)
	if n != 1 {
		t.Fatalf("first Wait() = %d, want 1", n)
	}

	unix.Write(fds[1], []byte("y"))
	n, _ = p.Wait(50)
	if n != 0 {
		t.Fatalf("Wait() after a fired one-shot event without Mod = %d, want 0", n)
	}

	if err := p.Mod(fds[0], Readable|OneShot); err != nil {
		t.Fatalf("Mod() error = %v", err)
	}
	n, _ = p.Wait(1000)
	if n != 1 {
		t.Fatalf("Wait() after Mod() rearm = %d, want 1", n)
	}
}

func TestDelStopsDelivery(t *testing.T) {
	fds := make([]int, 2)
	if err := unix.Pipe(fds); err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	p, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	if err := p.Add(fds[0], Readable); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := p.Del(fds[0]); err != nil {
		t.Fatalf("Del() error = %v", err)
	}

	unix.Write(fds[1], []byte("x"))
	n, _ := p.Wait(50)
	if n != 0 {
		t.Fatalf("Wait() after Del() = %d, want 0", n)
	}
}
