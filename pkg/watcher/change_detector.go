package watcher

import (
	"sort"

	"github.com/ritzau/circulation/pkg/store"
)

// ChangeAnalysis describes which models changed and whether the active one needs a rebuild
type ChangeAnalysis struct {
	NeedRebuild  bool     // the active model's file was written
	ModelRemoved bool     // the active model's file is gone; the current graph stays
	Models       []string // every model touched by the batch, sorted
	ChangedFiles []string
}

// AnalyzeChanges maps a debounced batch onto model ids and checks it against the active model
func AnalyzeChanges(event ChangeEvent, fs *store.FileStore, activeModel string) *ChangeAnalysis {
	analysis := &ChangeAnalysis{
		ChangedFiles: event.Paths,
	}

	models := make(map[string]bool)
	for _, path := range event.Paths {
		id, ok := fs.ModelForPath(path)
		if !ok {
			continue
		}
		models[id] = true
		if id != activeModel || activeModel == "" {
			continue
		}

		switch event.Type {
		case ChangeTypeModelWritten:
			analysis.NeedRebuild = true
		case ChangeTypeModelRemoved:
			analysis.ModelRemoved = true
		}
	}

	for id := range models {
		analysis.Models = append(analysis.Models, id)
	}
	sort.Strings(analysis.Models)
	return analysis
}
