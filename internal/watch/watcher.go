// Package watch turns a drop folder into an archive inbox: anything that
// lands in the folder is extracted when it is a supported archive and
// compressed otherwise.
//
// Only the top level of the folder is watched, so writes deep inside a
// dropped directory raise no events. Before a directory is dispatched its
// tree is measured on every settle tick, and it waits until two consecutive
// measurements agree.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tech-arch1tect/ziphub/internal/archive"
	"github.com/tech-arch1tect/ziphub/internal/logging"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Dispatcher accepts an archive request. operations.Service satisfies it.
type Dispatcher interface {
	Start(ctx context.Context, req archive.OperationRequest) (string, error)
}

type DispatcherFunc func(ctx context.Context, req archive.OperationRequest) (string, error)

func (f DispatcherFunc) Start(ctx context.Context, req archive.OperationRequest) (string, error) {
	return f(ctx, req)
}

var partialSuffixes = []string{".part", ".crdownload", ".download", ".tmp", ".partial"}

// Watcher watches the top level of one directory. A path is dispatched once
// it has seen no create or write events for the settle delay, so files still
// being copied in are not picked up early. Directories additionally wait for
// their tree to stop changing.
type Watcher struct {
	dir        string
	settle     time.Duration
	dispatcher Dispatcher
	logger     *logging.Logger

	fsw     *fsnotify.Watcher
	mu      sync.Mutex
	pending map[string]*time.Timer
	trees   map[string]treeStat
	closed  bool
	done    chan struct{}
	wg      sync.WaitGroup
}

func New(dir string, settle time.Duration, dispatcher Dispatcher, logger *logging.Logger) *Watcher {
	return &Watcher{
		dir:        filepath.Clean(dir),
		settle:     settle,
		dispatcher: dispatcher,
		logger:     logger.Named("watcher").With(zap.String("watch_dir", dir)),
		pending:    make(map[string]*time.Timer),
		trees:      make(map[string]treeStat),
		done:       make(chan struct{}),
	}
}

func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create watch directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.fsw = fsw

	w.wg.Add(1)
	go w.loop()

	w.logger.Info("drop folder watcher started", zap.Duration("settle", w.settle))
	return nil
}

func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	clear(w.trees)
	w.mu.Unlock()

	close(w.done)
	var err error
	if w.fsw != nil {
		err = w.fsw.Close()
	}
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if Ignored(event.Name) {
		return
	}

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		w.schedule(event.Name)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.cancel(event.Name)
	}
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() { w.fire(path) })
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
		delete(w.pending, path)
	}
	delete(w.trees, path)
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	info, err := os.Lstat(path)
	if err != nil {
		w.cancel(path)
		w.logger.Debug("dropped path vanished before dispatch", zap.String("path", path))
		return
	}
	if info.IsDir() {
		if w.rearmIfGrowing(path) {
			return
		}
	} else {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
	}

	req := archive.OperationRequest{SourcePath: path, Kind: KindFor(path)}
	id, err := w.dispatcher.Start(context.Background(), req)
	if err != nil {
		w.logger.Error("failed to dispatch dropped path",
			zap.String("path", path),
			zap.String("kind", string(req.Kind)),
			zap.Error(err))
		return
	}

	w.logger.Info("dispatched dropped path",
		zap.String("path", path),
		zap.String("kind", string(req.Kind)),
		zap.String("operation_id", id))
}

type treeStat struct {
	files   int
	size    int64
	modTime time.Time
}

func measureTree(root string) (treeStat, error) {
	var st treeStat
	err := filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(st.modTime) {
			st.modTime = info.ModTime()
		}
		if !d.IsDir() {
			st.files++
			st.size += info.Size()
		}
		return nil
	})
	return st, err
}

// rearmIfGrowing measures a dropped directory and reports whether it was
// rescheduled. The pending entry is released once the tree is stable.
func (w *Watcher) rearmIfGrowing(path string) bool {
	st, err := measureTree(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return true
	}

	prev, seen := w.trees[path]
	if err == nil && seen && prev == st {
		delete(w.trees, path)
		delete(w.pending, path)
		return false
	}
	if err != nil {
		// a file vanished mid-walk; measure again next tick
		st = treeStat{}
	}
	w.trees[path] = st
	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settle)
	} else {
		w.pending[path] = time.AfterFunc(w.settle, func() { w.fire(path) })
	}
	w.logger.Debug("dropped directory still changing",
		zap.String("path", path),
		zap.Int("files", st.files),
		zap.Int64("bytes", st.size))
	return true
}

// KindFor extracts supported archives and compresses everything else.
func KindFor(path string) archive.Kind {
	if archive.IsArchive(path) {
		return archive.KindExtract
	}
	return archive.KindCompress
}

// Ignored reports hidden files and in-progress downloads.
func Ignored(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return true
	}
	lower := strings.ToLower(base)
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
