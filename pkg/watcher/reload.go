package watcher

import (
	"context"
	"os"
	"time"

	"github.com/ritzau/circulation/pkg/graph"
	"github.com/ritzau/circulation/pkg/logging"
	"github.com/ritzau/circulation/pkg/store"
)

// Rebuilder is the part of a session the reloader drives
type Rebuilder interface {
	Model() string
	Rebuild(ctx context.Context) (*graph.Graph, error)
}

// Default debounce timings for model reloads
const (
	DefaultQuietPeriod = 250 * time.Millisecond
	DefaultMaxWait     = 2 * time.Second
)

// Reload watches fs and rebuilds r whenever the file of its active model
// changes. It blocks until ctx is done. Failed rebuilds are logged and the
// previous graph stays in service.
func Reload(ctx context.Context, fs *store.FileStore, r Rebuilder, quietPeriod, maxWait time.Duration) error {
	fw, err := NewFileWatcher(fs)
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		return err
	}
	defer fw.Stop()

	debouncer := NewDebouncer(fw.Events(), quietPeriod, maxWait)
	debouncer.Start(ctx)

	for event := range debouncer.Output() {
		analysis := AnalyzeChanges(event, fs, r.Model())
		logging.Debug("model files changed",
			"type", event.Type.String(),
			"models", analysis.Models,
			"files", len(analysis.ChangedFiles),
		)

		// Editors that save by rename report a removal while the file is back in place
		if analysis.ModelRemoved {
			if _, err := os.Stat(fs.PathFor(r.Model())); err == nil {
				analysis.ModelRemoved = false
				analysis.NeedRebuild = true
			}
		}

		switch {
		case analysis.ModelRemoved:
			logging.Warn("active model file removed, keeping current graph", "model", r.Model())
		case analysis.NeedRebuild:
			logging.Info("rebuilding after model change", "model", r.Model())
			if _, err := r.Rebuild(ctx); err != nil {
				logging.Error("rebuild failed, keeping current graph", "model", r.Model(), "error", err)
			}
		}
	}
	return ctx.Err()
}
