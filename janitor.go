package main

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// janitor removes staged temp files that were never confirmed or discarded.
// New files are tracked via fsnotify; a periodic sweep deletes everything
// older than the TTL, falling back to mtime for files that predate the
// watcher.
type janitor struct {
	dir  string
	ttl  time.Duration
	stop chan struct{}
}

func newJanitor(dir string, ttl time.Duration) *janitor {
	return &janitor{dir: dir, ttl: ttl, stop: make(chan struct{})}
}

// Run blocks until Stop is called. Watcher setup failures degrade to
// sweep-only operation.
func (j *janitor) Run() {
	var events chan fsnotify.Event
	var werrs chan error
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("janitor: watcher unavailable, sweep only: %v", err)
	} else {
		if err := w.Add(j.dir); err != nil {
			log.Printf("janitor: watch %s: %v", j.dir, err)
		}
		events = w.Events
		werrs = w.Errors
		defer w.Close()
	}

	interval := j.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	born := map[string]time.Time{}
	for {
		select {
		case <-j.stop:
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Op&fsnotify.Create == fsnotify.Create {
				born[ev.Name] = time.Now()
			}
		case err, ok := <-werrs:
			if !ok {
				werrs = nil
				continue
			}
			log.Printf("janitor: watch error: %v", err)
		case <-ticker.C:
			if n := j.sweep(born, time.Now()); n > 0 {
				log.Printf("janitor: removed %d stale staged files", n)
			}
		}
	}
}

func (j *janitor) Stop() {
	close(j.stop)
}

// sweep deletes staged files older than the TTL and returns how many were
// removed.
func (j *janitor) sweep(born map[string]time.Time, now time.Time) int {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(j.dir, e.Name())
		birth, ok := born[path]
		if !ok {
			info, err := e.Info()
			if err != nil {
				continue
			}
			birth = info.ModTime()
		}
		if now.Sub(birth) < j.ttl {
			continue
		}
		if err := os.Remove(path); err == nil || errors.Is(err, fs.ErrNotExist) {
			removed++
			delete(born, path)
		}
	}
	return removed
}
