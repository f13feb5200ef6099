package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// FileExt is the extension of model files inside a FileStore directory
const FileExt = ".toml"

// FileStore reads one TOML file per model from a directory.
//
// File format (<dir>/<model>.toml):
//
//	[[connection]]
//	source = "Lobby"
//	target = "Stair A"
//	distance = 4.5
//
// A row with a missing or non-numeric distance is returned with a NaN weight
// so the graph builder reports it as malformed instead of assuming zero.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Name() string {
	return "file:" + s.dir
}

// Dir returns the directory the store reads from
func (s *FileStore) Dir() string {
	return s.dir
}

// PathFor returns the file that holds a model's records
func (s *FileStore) PathFor(modelID string) string {
	return filepath.Join(s.dir, modelID+FileExt)
}

// ModelForPath maps a file path back to its model id. Returns false for unrelated files.
func (s *FileStore) ModelForPath(path string) (string, bool) {
	if filepath.Ext(path) != FileExt {
		return "", false
	}
	if filepath.Clean(filepath.Dir(path)) != filepath.Clean(s.dir) {
		return "", false
	}
	return strings.TrimSuffix(filepath.Base(path), FileExt), true
}

func (s *FileStore) Records(ctx context.Context, modelID string) ([]Record, error) {
	if err := checkModelID(modelID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := s.PathFor(modelID)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q (no file %s)", ErrModelNotFound, modelID, path)
		}
		return nil, fmt.Errorf("store: stat %s: %w", path, err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return nil, fmt.Errorf("store: parse %s: %w", path, err)
	}

	rows := k.Slices("connection")
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, Record{
			Source: strings.TrimSpace(row.String("source")),
			Target: strings.TrimSpace(row.String("target")),
			Weight: numeric(row.Get("distance")),
		})
	}
	return records, nil
}

// numeric converts a decoded TOML value to a float, NaN when absent or not a number
func numeric(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return math.NaN()
	}
}

// Put writes the model file, replacing any previous content
func (s *FileStore) Put(ctx context.Context, modelID string, records []Record) error {
	if err := checkModelID(modelID); err != nil {
		return err
	}

	rows := make([]interface{}, 0, len(records))
	for _, r := range records {
		rows = append(rows, map[string]interface{}{
			"source":   r.Source,
			"target":   r.Target,
			"distance": r.Weight,
		})
	}

	data, err := toml.Parser().Marshal(map[string]interface{}{"connection": rows})
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", modelID, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("store: create %s: %w", s.dir, err)
	}

	// Write then rename so a watcher never sees a half-written file
	path := s.PathFor(modelID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: rename %s: %w", tmp, err)
	}
	return nil
}

// Models lists the model files in the directory
func (s *FileStore) Models(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: read %s: %w", s.dir, err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != FileExt {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), FileExt))
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *FileStore) Close() error {
	return nil
}
