package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/shiwa/timecard-mini/dgtclock/internal/logger"
)

// pollInterval — запасной опрос mtime, если fsnotify недоступен.
const pollInterval = 5 * time.Second

// settleDelay — редакторы пишут файл в несколько приёмов; перечитываем после паузы.
const settleDelay = 200 * time.Millisecond

var log = logger.Named("config")

// Watch следит за файлом конфига и вызывает onChange с новым конфигом после каждого успешного перечитывания.
// Ошибки разбора логируются, старый конфиг остаётся в силе. Возвращается после отмены ctx.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("fsnotify: %v, fallback to polling", err)
		return watchPoll(ctx, path, onChange)
	}
	defer func() { _ = watcher.Close() }()

	// Следим за каталогом: редакторы заменяют файл через rename.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		log.Warn("watch %s: %v, fallback to polling", path, err)
		return watchPoll(ctx, path, onChange)
	}
	name := filepath.Clean(path)

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			settle = time.After(settleDelay)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher: %v", err)
		case <-settle:
			settle = nil
			reload(path, onChange)
		}
	}
}

func watchPoll(ctx context.Context, path string, onChange func(*Config)) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	last := modTime(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if mt := modTime(path); !mt.Equal(last) {
			last = mt
			reload(path, onChange)
		}
	}
}

func reload(path string, onChange func(*Config)) {
	c, err := Load(path)
	if err != nil {
		log.Error("reload %s: %v", path, err)
		return
	}
	log.Info("reloaded %s", path)
	onChange(c)
}

func modTime(path string) time.Time {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return fi.ModTime()
}
