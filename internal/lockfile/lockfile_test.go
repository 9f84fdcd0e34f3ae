package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "dgtclock.lock")

	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read lock: %v", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		t.Error("lock file has no pid")
	}

	if runtime.GOOS == "linux" {
		if _, err := Acquire(path); !errors.Is(err, ErrLocked) {
			t.Errorf("second Acquire = %v, want ErrLocked", err)
		}
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}

	l2, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	_ = l2.Release()
}

func TestAcquireEmptyPath(t *testing.T) {
	l, err := Acquire("")
	if err != nil {
		t.Fatalf("Acquire(\"\"): %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("Release: %v", err)
	}
}
