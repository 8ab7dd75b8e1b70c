package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceDelay = 100 * time.Millisecond

// fileWatcher 监听单个文件的写入
type fileWatcher struct {
	watcher *fsnotify.Watcher
	target  string
	logger  *slog.Logger
}

// newFileWatcher 监听文件所在目录，编辑器保存时可能替换文件
func newFileWatcher(path string, logger *slog.Logger) (*fileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	return &fileWatcher{watcher: watcher, target: abs, logger: logger}, nil
}

// Run 文件变更后调用 fn，同一时刻只有一次调用
func (w *fileWatcher) Run(ctx context.Context, fn func()) error {
	defer func() { _ = w.watcher.Close() }()

	var (
		mu            sync.Mutex
		debounceTimer *time.Timer
	)
	rerun := func() {
		mu.Lock()
		defer mu.Unlock()
		fn()
	}

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if name, err := filepath.Abs(event.Name); err != nil || name != w.target {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				w.logger.Debug("file changed, re-analyzing", "file", event.Name)
				rerun()
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// watch 持续监听 SQL 文件，每次保存后重新分析
func (p *pipeline) watch(ctx context.Context, sqlFile string) error {
	w, err := newFileWatcher(sqlFile, p.logger)
	if err != nil {
		return err
	}

	p.console.Info("👀 监听 %s 的变更，按 Ctrl+C 退出", sqlFile)
	return w.Run(ctx, func() {
		if err := p.analyzeFile(sqlFile); err != nil {
			p.console.Error(err)
		}
	})
}
