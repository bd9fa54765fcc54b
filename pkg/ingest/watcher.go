// Copyright 2026 Lectern Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lectern-ai/lectern/pkg/config"
	"github.com/lectern-ai/lectern/pkg/document"
	"github.com/lectern-ai/lectern/pkg/parser"
)

// Watcher keeps the index synchronized with the source directory.
// fsnotify events are debounced so editors that write in bursts
// trigger a single re-ingest.
type Watcher struct {
	watcher       *fsnotify.Watcher
	pipeline      *Pipeline
	basePath      string
	filter        *parser.PatternFilter
	debounceDelay time.Duration

	mu         sync.Mutex
	isWatching bool
	cancel     context.CancelFunc
}

// NewWatcher creates a watcher over the configured source root.
func NewWatcher(cfg config.SourceConfig, pipeline *Pipeline) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:       w,
		pipeline:      pipeline,
		basePath:      cfg.Path,
		filter:        parser.NewPatternFilter(cfg.Path, cfg.IncludePatterns, cfg.ExcludePatterns),
		debounceDelay: 500 * time.Millisecond,
	}, nil
}

// Start begins watching. Events are processed until ctx is cancelled
// or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isWatching {
		return nil
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.isWatching = true

	if err := w.setupWatching(); err != nil {
		w.isWatching = false
		return err
	}

	go w.watchEvents(ctx)

	slog.Info("Started source watcher", "path", w.basePath)
	return nil
}

// Stop stops watching.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isWatching {
		return nil
	}
	w.cancel()
	w.isWatching = false

	if err := w.watcher.Close(); err != nil {
		return err
	}
	slog.Info("Stopped source watcher", "path", w.basePath)
	return nil
}

// setupWatching adds the base path and all subdirectories.
func (w *Watcher) setupWatching() error {
	return filepath.Walk(w.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if w.filter.ShouldExclude(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			slog.Warn("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// watchEvents coalesces rapid events per path before dispatching.
func (w *Watcher) watchEvents(ctx context.Context) {
	pendingEvents := make(map[string]fsnotify.Event)
	var pendingMu sync.Mutex
	var debounceTimer *time.Timer

	processEvents := func() {
		pendingMu.Lock()
		events := pendingEvents
		pendingEvents = make(map[string]fsnotify.Event)
		pendingMu.Unlock()

		for _, event := range events {
			w.handleFileEvent(ctx, event)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			processEvents()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}

			pendingMu.Lock()
			pendingEvents[event.Name] = event
			pendingMu.Unlock()

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounceDelay, processEvents)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Source watcher error", "path", w.basePath, "error", err)
		}
	}
}

// handleFileEvent reacts to a single coalesced event.
func (w *Watcher) handleFileEvent(ctx context.Context, event fsnotify.Event) {
	path := event.Name

	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		// New directories need watching; their files arrive as
		// separate events.
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				slog.Warn("Failed to watch new directory", "path", path, "error", err)
			}
			return
		}
		w.reingest(ctx, path)

	case event.Op&fsnotify.Write == fsnotify.Write:
		w.reingest(ctx, path)

	case event.Op&fsnotify.Remove == fsnotify.Remove,
		event.Op&fsnotify.Rename == fsnotify.Rename:
		if _, ok := document.FileTypeFor(path); !ok {
			return
		}
		slog.Info("Source file removed, tombstoning", "path", path)
		if err := w.pipeline.RemovePath(ctx, path); err != nil {
			slog.Warn("Tombstoning failed", "path", path, "error", err)
		}
	}
}

func (w *Watcher) reingest(ctx context.Context, path string) {
	if w.filter.ShouldExclude(path) || !w.filter.ShouldInclude(path) {
		return
	}
	if _, ok := document.FileTypeFor(path); !ok {
		return
	}

	slog.Info("Source file changed, re-ingesting", "path", path)
	if err := w.pipeline.ProcessPath(ctx, path); err != nil {
		slog.Warn("Re-ingest failed", "path", path, "error", err)
	}
}
