package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/gnolang/cprop/internal/irfile"
)

// settleDelay lets a burst of writes to one file finish before it is read.
const settleDelay = 100 * time.Millisecond

var errAlreadyWatching = errors.New("already watching")

// StartWatching re-runs the pass whenever an IR file below dirs is written
// or created. Results are delivered to OnResult.
func (e *Engine) StartWatching(ctx context.Context, dirs ...string) error {
	if e.isWatching {
		return errAlreadyWatching
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating watcher: %w", err)
	}

	for _, dir := range dirs {
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return watcher.Add(path)
			}
			return nil
		})
		if err != nil {
			watcher.Close()
			return fmt.Errorf("error adding directory to watcher: %w", err)
		}
	}

	e.watcher = watcher
	e.watchDirs = dirs
	e.isWatching = true
	e.done = make(chan struct{})
	e.EnableCache()

	e.logger.Info("watching", zap.Strings("dirs", e.watchDirs))
	go e.watchLoop(ctx, e.done)
	return nil
}

// WatchedDirs returns the directories passed to StartWatching, or nil when
// the engine is not watching.
func (e *Engine) WatchedDirs() []string {
	return e.watchDirs
}

// StopWatching stops the watch loop and releases the watcher.
func (e *Engine) StopWatching() error {
	if !e.isWatching {
		e.logger.Warn("not watching")
		return nil
	}

	e.logger.Info("stopped watching", zap.Strings("dirs", e.watchDirs))
	e.isWatching = false
	e.watchDirs = nil
	close(e.done)
	return e.watcher.Close()
}

func (e *Engine) watchLoop(ctx context.Context, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case event, ok := <-e.watcher.Events:
			if !ok {
				return
			}
			e.handleFileEvent(ctx, event)
		case err, ok := <-e.watcher.Errors:
			if !ok {
				return
			}
			e.logger.Error("watcher error", zap.Error(err))
		}
	}
}

func (e *Engine) handleFileEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !irfile.IsIRFile(event.Name) {
		return
	}

	time.Sleep(settleDelay)
	res, err := e.Run(ctx, event.Name)
	if err != nil {
		e.logger.Error("error processing file", zap.String("file", event.Name), zap.Error(err))
	} else {
		e.logger.Info("file processed",
			zap.String("file", event.Name),
			zap.Int("functions", len(res.Functions)),
		)
	}
	if e.OnResult != nil {
		e.OnResult(res, err)
	}
}
