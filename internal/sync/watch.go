package sync

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/attention-matters/am/internal/logger"
)

// debounceWindow absorbs the burst of write events a single transcript
// append tends to generate.
const debounceWindow = 500 * time.Millisecond

// WatchSessions watches projectDir for new or modified .jsonl transcripts
// and calls onSession with each changed session's path, debounced per
// file. Blocks until ctx is canceled.
func WatchSessions(ctx context.Context, projectDir string, onSession func(path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(projectDir); err != nil {
		return err
	}

	pending := make(map[string]*time.Timer)
	fire := make(chan string)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(ev.Name) != ".jsonl" {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			path := ev.Name
			if t, exists := pending[path]; exists {
				t.Stop()
			}
			pending[path] = time.AfterFunc(debounceWindow, func() {
				select {
				case fire <- path:
				case <-ctx.Done():
				}
			})

		case path := <-fire:
			delete(pending, path)
			onSession(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("session watcher error", "error", err)
		}
	}
}
