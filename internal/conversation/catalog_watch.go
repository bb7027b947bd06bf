package conversation

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 200 * time.Millisecond

// CatalogWatcher reloads an override file into a StaticCatalog whenever the
// file changes on disk.
type CatalogWatcher struct {
	path    string
	base    *Catalog
	target  *StaticCatalog
	logger  *zap.Logger
	watcher *fsnotify.Watcher
}

// NewCatalogWatcher loads path over base into target and prepares a watch.
// The parent directory is watched so editors that replace the file by rename
// are picked up.
func NewCatalogWatcher(path string, base *Catalog, target *StaticCatalog, logger *zap.Logger) (*CatalogWatcher, error) {
	merged, err := LoadCatalogFile(path, base)
	if err != nil {
		return nil, err
	}
	target.Store(merged)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return &CatalogWatcher{
		path:    filepath.Clean(path),
		base:    base,
		target:  target,
		logger:  logger,
		watcher: fsw,
	}, nil
}

// Run processes file events until ctx is done.
func (w *CatalogWatcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending = time.After(reloadDebounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("catalog watcher error", zap.Error(err))
		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

func (w *CatalogWatcher) reload() {
	merged, err := LoadCatalogFile(w.path, w.base)
	if err != nil {
		w.logger.Warn("catalog reload failed; keeping previous catalog", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.target.Store(merged)
	w.logger.Info("catalog reloaded", zap.String("path", w.path), zap.String("locale", merged.Locale))
}
