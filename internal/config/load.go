package config

import (
	"errors"
	"fmt"
	"os"
)

// Loaded captures the resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Format   string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration.
// A missing file is not an error; defaults apply with a warning.
func Load(explicitPath string) (Loaded, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Loaded{
			Path:   path,
			Config: Default(),
			Warnings: []Warning{{
				Message: fmt.Sprintf("config file %q not found; using defaults", path),
			}},
		}, nil
	}
	if err != nil {
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg, warnings, err := Parse(string(content), Default())
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", path, err)
	}

	format := "yaml"
	if looksLikeJSON(string(content)) {
		format = "jsonc"
	}
	return Loaded{
		Path:     path,
		Format:   format,
		Config:   cfg,
		Warnings: warnings,
		Exists:   true,
	}, nil
}
