package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ritzau/circulation/pkg/logging"
	"github.com/ritzau/circulation/pkg/store"
)

// ChangeType represents the type of file change detected
type ChangeType int

const (
	// ChangeTypeModelWritten covers created, written and renamed-into-place model files
	ChangeTypeModelWritten ChangeType = iota
	// ChangeTypeModelRemoved covers deleted or renamed-away model files
	ChangeTypeModelRemoved
)

func (t ChangeType) String() string {
	switch t {
	case ChangeTypeModelWritten:
		return "written"
	case ChangeTypeModelRemoved:
		return "removed"
	default:
		return fmt.Sprintf("change(%d)", int(t))
	}
}

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// FileWatcher watches the directory of a file store for model file changes
type FileWatcher struct {
	watcher *fsnotify.Watcher
	store   *store.FileStore
	events  chan ChangeEvent
	logger  *slog.Logger

	stopOnce sync.Once
}

// NewFileWatcher creates a new file system watcher for a file store
func NewFileWatcher(fs *store.FileStore) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher: watcher,
		store:   fs,
		events:  make(chan ChangeEvent, 100),
		logger:  logging.New("watcher"),
	}, nil
}

// Start begins watching for file changes. The events channel closes when
// ctx is done or Stop is called.
func (fw *FileWatcher) Start(ctx context.Context) error {
	dir := fw.store.Dir()
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		fw.watcher.Close()
		return fmt.Errorf("cannot watch %s: not a directory", dir)
	}
	if err := fw.watcher.Add(dir); err != nil {
		fw.watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	fw.logger.Info("started watching model files", "path", dir)

	go fw.processEvents(ctx)
	return nil
}

// processEvents forwards model file events. Batching is left to the Debouncer.
func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer close(fw.events)

	for {
		select {
		case <-ctx.Done():
			fw.Stop()
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			// Filter to model files; temp files written by FileStore.Put are ignored
			if _, isModel := fw.store.ModelForPath(event.Name); !isModel {
				continue
			}

			changeType := ChangeTypeModelWritten
			switch {
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				changeType = ChangeTypeModelRemoved
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
			default:
				continue // chmod only
			}

			logging.Trace("model file changed", "path", event.Name, "op", event.Op.String())
			select {
			case fw.events <- ChangeEvent{Type: changeType, Paths: []string{event.Name}, Timestamp: time.Now()}:
			case <-ctx.Done():
				fw.Stop()
				return
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("watcher error", "error", err)
		}
	}
}

// Events returns the channel of change events
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Stop stops the file watcher
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		err = fw.watcher.Close()
	})
	return err
}
