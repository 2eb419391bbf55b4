//go:build unix || windows

package instance

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "UCLLIU.lock")

	first, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer first.Release()

	if _, err := Acquire(path); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Acquire: expected ErrAlreadyRunning, got %v", err)
	}

	pid, err := Owner(path)
	if err != nil {
		t.Fatalf("Owner: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("owner = %d, want %d", pid, os.Getpid())
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "UCLLIU.lock")

	l, err := Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	if l.Path() != path {
		t.Errorf("Path = %s", l.Path())
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("marker should be removed, stat err = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}

	again, err := Acquire(path)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	again.Release()
}

func TestStaleMarkerIsTakenOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "UCLLIU.lock")
	if err := os.WriteFile(path, []byte("999999\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire over stale marker: %v", err)
	}
	defer l.Release()

	pid, err := Owner(path)
	if err != nil {
		t.Fatal(err)
	}
	if pid != os.Getpid() {
		t.Errorf("owner = %d", pid)
	}
}
