package sqlite

import (
	"fmt"
	"strings"
)

// Config contains SQLite-specific connection options.
type Config struct {
	Path     string // database file path or a "file:" URI
	ReadOnly bool   // open with mode=ro
}

// FromMap creates a Config from a generic config map.
// "path" is required; "database" is accepted as an alias.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{}

	if path, ok := config["path"].(string); ok && path != "" {
		cfg.Path = path
	} else if path, ok := config["database"].(string); ok && path != "" {
		cfg.Path = path
	} else {
		return nil, fmt.Errorf("path is required")
	}

	if ro, ok := config["read_only"].(bool); ok {
		cfg.ReadOnly = ro
	}

	return cfg, nil
}

// dsn builds the driver data source name. URIs are passed through untouched.
func dsn(cfg *Config) string {
	if strings.HasPrefix(cfg.Path, "file:") || !cfg.ReadOnly {
		return cfg.Path
	}
	return "file:" + cfg.Path + "?mode=ro"
}
