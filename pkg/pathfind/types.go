package pathfind

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Path is a loopless route between two spaces
type Path struct {
	Nodes  []string `json:"nodes"`
	Weight float64  `json:"weight"`
}

// Empty reports whether the path holds no nodes (no route, or unknown endpoints)
func (p Path) Empty() bool {
	return len(p.Nodes) == 0
}

// Len returns the number of nodes on the path
func (p Path) Len() int {
	return len(p.Nodes)
}

// String renders the path as "A -> B -> C (3)"
func (p Path) String() string {
	if p.Empty() {
		return "(no route)"
	}
	return fmt.Sprintf("%s (%g)", strings.Join(p.Nodes, " -> "), p.Weight)
}

// PathSet holds ranked routes ordered by non-decreasing weight. Rank is index+1.
type PathSet []Path

// Best returns the first-ranked path, or an empty path
func (s PathSet) Best() Path {
	if len(s) == 0 {
		return Path{}
	}
	return s[0]
}

var (
	// ErrNodeNotFound is reported when a start or end name is not in the graph
	ErrNodeNotFound = errors.New("node not found")
	// ErrNoPath is reported when no route connects two known spaces
	ErrNoPath = errors.New("no route found")
	// ErrInvalidRank is reported when fewer than one route is requested
	ErrInvalidRank = errors.New("at least one route must be requested")
)

// Status tells why a search produced the routes it did
type Status int

const (
	// StatusFound means at least one route was found
	StatusFound Status = iota
	// StatusNodeNotFound means the start or end name is not in the graph
	StatusNodeNotFound
	// StatusNoPath means both names exist but no route connects them
	StatusNoPath
	// StatusInvalidRank means fewer than one route was requested
	StatusInvalidRank
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNodeNotFound:
		return "node_not_found"
	case StatusNoPath:
		return "no_route"
	case StatusInvalidRank:
		return "invalid_rank"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText encodes the status by name in JSON
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is the tagged result of a route search. Paths is empty unless Status is StatusFound.
type Outcome struct {
	Status  Status   `json:"status"`
	Paths   PathSet  `json:"paths"`
	Missing []string `json:"missing,omitempty"` // unresolved endpoint names for StatusNodeNotFound
}

// Best returns the first-ranked path of the outcome
func (o Outcome) Best() Path {
	return o.Paths.Best()
}

// Err returns nil for StatusFound and the matching sentinel error otherwise.
// A node-not-found error names the missing spaces.
func (o Outcome) Err() error {
	switch o.Status {
	case StatusFound:
		return nil
	case StatusNodeNotFound:
		if len(o.Missing) == 0 {
			return ErrNodeNotFound
		}
		return fmt.Errorf("%w: %s", ErrNodeNotFound, strings.Join(o.Missing, ", "))
	case StatusNoPath:
		return ErrNoPath
	case StatusInvalidRank:
		return ErrInvalidRank
	default:
		return fmt.Errorf("unknown search status %d", int(o.Status))
	}
}

// Options tune a Solver
type Options struct {
	// Timeout bounds each search. Zero means no limit beyond the caller's context.
	Timeout time.Duration
	// Parallel is the number of spur searches run concurrently per rank
	// when looking for alternative routes. Values <= 1 search sequentially.
	Parallel int
}

// Option configures a Solver
type Option func(*Options)

// WithTimeout bounds every search run by the solver
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithParallelSpurs runs up to n spur searches concurrently
func WithParallelSpurs(n int) Option {
	return func(o *Options) {
		o.Parallel = n
	}
}
