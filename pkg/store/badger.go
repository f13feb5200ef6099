package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/ritzau/circulation/pkg/logging"
)

const badgerModelPrefix = "model/"

// BadgerOptions configures an embedded Badger store
type BadgerOptions struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps everything in RAM, for tests
	InMemory bool
	// Logger receives Badger's internal messages; nil silences them
	Logger *slog.Logger
}

// BadgerStore persists each model's records as one JSON value under "model/<id>"
type BadgerStore struct {
	db   *badger.DB
	name string
}

// OpenBadgerStore opens (or creates) a Badger-backed store
func OpenBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	var bopts badger.Options
	name := "badger:memory"
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, errors.New("store: badger path is required")
		}
		bopts = badger.DefaultOptions(opts.Path)
		name = "badger:" + opts.Path
	}

	if opts.Logger != nil {
		bopts = bopts.WithLogger(&badgerLogger{logger: opts.Logger})
	} else {
		bopts = bopts.WithLogger(nil)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger: %w", err)
	}

	logging.Debug("opened badger store", "name", name)
	return &BadgerStore{db: db, name: name}, nil
}

func (s *BadgerStore) Name() string {
	return s.name
}

func modelKey(modelID string) []byte {
	return []byte(badgerModelPrefix + modelID)
}

func (s *BadgerStore) Records(ctx context.Context, modelID string) ([]Record, error) {
	if err := checkModelID(modelID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(modelKey(modelID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &records)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrModelNotFound, modelID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: read model %q: %w", modelID, err)
	}
	return records, nil
}

func (s *BadgerStore) Put(ctx context.Context, modelID string, records []Record) error {
	if err := checkModelID(modelID); err != nil {
		return err
	}
	if records == nil {
		records = []Record{}
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("store: encode model %q: %w", modelID, err)
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(modelKey(modelID), data)
	}); err != nil {
		return fmt.Errorf("store: write model %q: %w", modelID, err)
	}
	return nil
}

// Models returns all model ids in key order
func (s *BadgerStore) Models(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(badgerModelPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, strings.TrimPrefix(key, badgerModelPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: list models: %w", err)
	}
	return ids, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger adapts slog.Logger to Badger's Logger interface
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
