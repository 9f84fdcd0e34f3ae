// Package lockfile — один экземпляр демона на систему.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrLocked — файл уже заблокирован другим процессом.
var ErrLocked = errors.New("another dgtclock instance is running")

// Lock — удерживаемая блокировка.
type Lock struct {
	f *os.File
}

// Acquire создаёт (при необходимости) и блокирует path. Пустой path — без блокировки.
func Acquire(path string) (*Lock, error) {
	if path == "" {
		return &Lock{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := lock(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	_ = f.Truncate(0)
	_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
	return &Lock{f: f}, nil
}

// Release снимает блокировку. Повторный вызов ничего не делает.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	f := l.f
	l.f = nil
	if err := unlock(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
