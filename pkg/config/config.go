package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// FileName is the optional config file read from the working directory
const FileName = "circulation.toml"

// EnvPrefix prefixes environment overrides, e.g. CIRCULATION_PORT=9090
const EnvPrefix = "CIRCULATION_"

// Source kinds understood by store.Open
const (
	SourceMemory = "memory"
	SourceFile   = "file"
	SourceBadger = "badger"
	SourceNeo4j  = "neo4j"
)

// Config holds all configuration for the application
type Config struct {
	Source    string        `koanf:"source"`    // connectivity data source kind
	Data      string        `koanf:"data"`      // directory (file) or path (badger) of the data source
	Model     string        `koanf:"model"`     // building model id to build on startup
	Label     string        `koanf:"label"`     // graph label used in diagnostics
	K         int           `koanf:"k"`         // default number of alternative routes
	MaxK      int           `koanf:"maxk"`      // largest k a single request may ask for
	Timeout   time.Duration `koanf:"timeout"`   // solver timeout, 0 disables
	Parallel  int           `koanf:"parallel"`  // concurrent spur searches per rank, <=1 is sequential
	Port      int           `koanf:"port"`      // HTTP port for serve
	Watch     bool          `koanf:"watch"`     // rebuild when file-backed data changes
	Verbosity string        `koanf:"verbosity"` // trace, debug, info, warn, error
	LogFormat string        `koanf:"logformat"` // compact or json
	Neo4j     Neo4jConfig   `koanf:"neo4j"`
}

// Neo4jConfig configures the graph database source
type Neo4jConfig struct {
	URI      string `koanf:"uri"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
}

// Defaults returns the built-in default values as a koanf map
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"source":    SourceFile,
		"data":      "data",
		"model":     "",
		"label":     "circulation",
		"k":         3,
		"maxk":      100,
		"timeout":   "0s",
		"parallel":  1,
		"port":      8080,
		"watch":     false,
		"verbosity": "info",
		"logformat": "compact",
		"neo4j": map[string]interface{}{
			"uri":      "",
			"username": "",
			"password": "",
			"database": "",
		},
	}
}

// RegisterFlags declares the command-line flags that map onto Config keys
func RegisterFlags(f *pflag.FlagSet) {
	f.String("source", SourceFile, "Connectivity data source: memory, file, badger or neo4j")
	f.String("data", "data", "Data directory (file source) or database path (badger source)")
	f.StringP("model", "m", "", "Building model id")
	f.String("label", "circulation", "Graph label used in diagnostics")
	f.IntP("k", "k", 3, "Number of alternative routes")
	f.Int("maxk", 100, "Largest number of alternative routes a request may ask for")
	f.Duration("timeout", 0, "Abort route searches after this long (0 disables)")
	f.Int("parallel", 1, "Concurrent spur searches per rank")
	f.IntP("port", "p", 8080, "HTTP port for serve")
	f.Bool("watch", false, "Rebuild the graph when file-backed data changes")
	f.StringP("verbosity", "v", "info", "Log level: trace, debug, info, warn, error")
	f.String("logformat", "compact", "Log format: compact or json")
	f.String("neo4j.uri", "", "Neo4j bolt URI")
	f.String("neo4j.username", "", "Neo4j user")
	f.String("neo4j.password", "", "Neo4j password")
	f.String("neo4j.database", "", "Neo4j database name")
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	return LoadFile(FileName, f)
}

// LoadFile is Load with an explicit config file path
func LoadFile(path string, f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(makeMapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// The config file is optional
	if path != "" {
		_ = k.Load(file.Provider(path), toml.Parser())
	}

	// CIRCULATION_NEO4J_URI -> neo4j.uri
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, EnvPrefix)), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// Only flags the user actually set override lower layers
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks option combinations that would fail later in a less obvious place
func (c *Config) Validate() error {
	var errs []error
	switch c.Source {
	case SourceMemory, SourceFile, SourceBadger, SourceNeo4j:
	default:
		errs = append(errs, fmt.Errorf("unknown source %q", c.Source))
	}
	if c.Source == SourceNeo4j && c.Neo4j.URI == "" {
		errs = append(errs, errors.New("neo4j source requires neo4j.uri"))
	}
	if c.K < 1 {
		errs = append(errs, fmt.Errorf("k must be at least 1, got %d", c.K))
	}
	if c.MaxK < 1 {
		errs = append(errs, fmt.Errorf("maxk must be at least 1, got %d", c.MaxK))
	} else if c.K > c.MaxK {
		errs = append(errs, fmt.Errorf("k %d exceeds maxk %d", c.K, c.MaxK))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port out of range: %d", c.Port))
	}
	if c.LogFormat != "compact" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
