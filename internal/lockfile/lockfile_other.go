//go:build !linux

package lockfile

import "os"

// lock — заглушка на не-Linux (файл создаётся, блокировки нет).
func lock(f *os.File) error {
	_ = f
	return nil
}

// unlock — заглушка на не-Linux.
func unlock(f *os.File) error {
	_ = f
	return nil
}
