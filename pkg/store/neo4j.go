package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ErrMissingURI indicates the Neo4j store was configured without a bolt URI
var ErrMissingURI = errors.New("store: neo4j uri is required")

const (
	neo4jModelQuery = `MATCH (m:Model {id: $model}) RETURN count(m) AS models`

	neo4jConnectionQuery = `
MATCH (m:Model {id: $model})<-[:IN_MODEL]-(a:Space)-[c:CONNECTS]->(b:Space)
RETURN a.name AS source, b.name AS target, c.distance AS distance
ORDER BY c.seq, elementId(c)`
)

// Neo4jOptions configures the graph database connection
type Neo4jOptions struct {
	URI            string
	Username       string
	Password       string
	Database       string
	MaxConnections int
}

// Neo4jStore reads connectivity from a property graph of
// (:Space)-[:CONNECTS {distance}]->(:Space) where each space is linked to its
// (:Model {id}) by an IN_MODEL relationship.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	uri      string
}

// OpenNeo4jStore connects and verifies connectivity before returning
func OpenNeo4jStore(ctx context.Context, opts Neo4jOptions) (*Neo4jStore, error) {
	if opts.URI == "" {
		return nil, ErrMissingURI
	}

	auth := neo4j.NoAuth()
	if opts.Username != "" {
		auth = neo4j.BasicAuth(opts.Username, opts.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(opts.URI, auth, func(c *neo4j.Config) {
		if opts.MaxConnections > 0 {
			c.MaxConnectionPoolSize = opts.MaxConnections
		}
	})
	if err != nil {
		return nil, fmt.Errorf("store: create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("store: verify neo4j connectivity: %w", err)
	}

	return &Neo4jStore{driver: driver, database: opts.Database, uri: opts.URI}, nil
}

func (s *Neo4jStore) Name() string {
	return "neo4j:" + s.uri
}

func (s *Neo4jStore) Records(ctx context.Context, modelID string) ([]Record, error) {
	if strings.TrimSpace(modelID) == "" {
		return nil, ErrInvalidModelID
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	params := map[string]any{"model": modelID}

	// Both reads share one managed read transaction
	rows, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, neo4jModelQuery, params)
		if err != nil {
			return nil, err
		}
		single, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		if n, _ := single.Get("models"); toFloat(n) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrModelNotFound, modelID)
		}

		res, err = tx.Run(ctx, neo4jConnectionQuery, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		if errors.Is(err, ErrModelNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("store: read connections of %q: %w", modelID, err)
	}
	return recordsFromRows(rows.([]*neo4j.Record)), nil
}

// recordsFromRows converts connection query rows in result order
func recordsFromRows(rows []*neo4j.Record) []Record {
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		source, _ := row.Get("source")
		target, _ := row.Get("target")
		distance, _ := row.Get("distance")
		records = append(records, recordFromValues(source, target, distance))
	}
	return records
}

// recordFromValues maps loosely typed Cypher values onto a Record.
// Missing names become empty strings and a missing distance becomes NaN,
// both of which fail Record.Validate.
func recordFromValues(source, target, distance any) Record {
	name := func(v any) string {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
		return ""
	}
	return Record{
		Source: name(source),
		Target: name(target),
		Weight: toFloat(distance),
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return math.NaN()
	}
}

func (s *Neo4jStore) Close() error {
	return s.driver.Close(context.Background())
}
