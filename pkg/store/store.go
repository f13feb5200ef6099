// Package store is the data-access boundary for circulation connectivity.
//
// A Store enumerates the connectivity records of one building model. The
// graph builder does not care where the records come from: memory, TOML
// files on disk, an embedded Badger database or a Neo4j graph.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ritzau/circulation/pkg/config"
)

var (
	// ErrModelNotFound indicates the model id does not resolve to a data set
	ErrModelNotFound = errors.New("store: model not found")
	// ErrInvalidModelID indicates an empty or unusable model id
	ErrInvalidModelID = errors.New("store: invalid model id")
	// ErrClosed indicates the store has been closed
	ErrClosed = errors.New("store: closed")
)

// Record is one bidirectional circulation connection between two named spaces
type Record struct {
	Source string  `json:"source" toml:"source" validate:"required,nefield=Target"`
	Target string  `json:"target" toml:"target" validate:"required"`
	Weight float64 `json:"weight" toml:"distance" validate:"gte=0"`
}

// Store supplies connectivity records for a building model
type Store interface {
	// Name identifies the backing source in logs, e.g. "file:data"
	Name() string

	// Records returns every record of the model in a stable order.
	// Returns an error wrapping ErrModelNotFound when the id does not resolve.
	Records(ctx context.Context, modelID string) ([]Record, error)

	// Close releases resources held by the store
	Close() error
}

// Writer is implemented by stores that can persist records
type Writer interface {
	Put(ctx context.Context, modelID string, records []Record) error
}

// Lister is implemented by stores that can enumerate their models
type Lister interface {
	Models(ctx context.Context) ([]string, error)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a single record and returns a readable error describing every problem
func (r Record) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		if math.IsInf(r.Weight, 0) {
			return errors.New("weight must be finite")
		}
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s name is required", field)
	case "nefield":
		return "source and target are the same space"
	case "gte":
		if f, ok := fe.Value().(float64); ok && math.IsNaN(f) {
			return fmt.Sprintf("%s is missing or not a number", field)
		}
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func checkModelID(modelID string) error {
	if strings.TrimSpace(modelID) == "" {
		return ErrInvalidModelID
	}
	if strings.ContainsAny(modelID, `/\`) || strings.Contains(modelID, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidModelID, modelID)
	}
	return nil
}

// Open creates the store selected by cfg.Source
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Source {
	case config.SourceMemory:
		return NewMemoryStore(), nil
	case config.SourceFile:
		return NewFileStore(cfg.Data), nil
	case config.SourceBadger:
		return OpenBadgerStore(BadgerOptions{Path: cfg.Data})
	case config.SourceNeo4j:
		return OpenNeo4jStore(ctx, Neo4jOptions{
			URI:      cfg.Neo4j.URI,
			Username: cfg.Neo4j.Username,
			Password: cfg.Neo4j.Password,
			Database: cfg.Neo4j.Database,
		})
	default:
		return nil, fmt.Errorf("store: unknown source %q", cfg.Source)
	}
}
