package risk

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/aegislabs/signalbridge/internal/observ"
)

// PanicStore reports whether the process-wide kill flag is set. Once a
// store has observed the flag it stays engaged for the process lifetime.
type PanicStore interface {
	Engaged() bool
}

// SentinelFile treats the mere existence of a file as the panic flag. The
// pipeline polls Engaged at its cooperative checkpoints; Watch additionally
// latches the flag the moment the sentinel appears, so a checkpoint between
// filesystem syncs still sees it.
type SentinelFile struct {
	path    string
	tripped atomic.Bool
}

func NewSentinelFile(path string) *SentinelFile {
	return &SentinelFile{path: path}
}

func (s *SentinelFile) Engaged() bool {
	if s.tripped.Load() {
		return true
	}
	if _, err := os.Stat(s.path); err == nil {
		s.tripped.Store(true)
		return true
	}
	return false
}

// Watch latches the flag on sentinel creation. Best-effort: if the watcher
// cannot start, the stat-based checkpoints still work.
func (s *SentinelFile) Watch(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		observ.Warn("panic_watch_unavailable", map[string]any{"error": err.Error()})
		return
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err == nil {
		if err := watcher.Add(dir); err != nil {
			observ.Warn("panic_watch_unavailable", map[string]any{"error": err.Error()})
			_ = watcher.Close()
			return
		}
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name == s.path && ev.Op.Has(fsnotify.Create|fsnotify.Write) {
					s.tripped.Store(true)
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
}
