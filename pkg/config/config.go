// Package config loads the YAML-backed tuning knobs for the compiler and
// executor, grounded in itohio/EasyRobot's cmd-level config loader
// convention (open the file, decode with gopkg.in/yaml.v3, wrap decode
// errors with the path for context) trimmed to the single format this
// project actually needs.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the tuning knobs for a build→compile→execute run.
// cmd/emberc reads Fusion and Backend; pkg/compiler and pkg/executor do
// not read a Config.
type Config struct {
	// Fusion enables the UnaryFusion pass. Disabling it is mainly useful
	// for debugging a miscompile one fused step at a time.
	Fusion bool `yaml:"fusion"`
	// Backend names the kernel family for the run: "cpu" or "metal".
	// Anything else is rejected by Validate. cmd/emberc logs it; no
	// package chooses its kernels by it.
	Backend string `yaml:"backend"`
	// DefaultDynDims seeds a graph's dyn dim map with default sizes for
	// symbolic dimensions a caller doesn't bind explicitly (single-letter
	// keys, matching the dimension variable naming used throughout
	// pkg/symbolic/pkg/shape).
	DefaultDynDims map[string]int64 `yaml:"default_dyn_dims"`
}

// Default returns the config a bare `emberc` run uses absent a file.
func Default() *Config {
	return &Config{Fusion: true, Backend: "cpu"}
}

// Load reads and decodes the YAML config at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	c := Default()
	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return c, nil
}

// Validate rejects a config with an unrecognized backend.
func (c *Config) Validate() error {
	switch c.Backend {
	case "cpu", "metal":
		return nil
	default:
		return fmt.Errorf("config: unknown backend %q (want cpu or metal)", c.Backend)
	}
}

// DynMapSeed converts DefaultDynDims into the byte-keyed form
// pkg/graph.DynMap.Set expects, silently dropping any key that isn't
// exactly one character since those can never match a dimension
// variable.
func (c *Config) DynMapSeed() map[byte]int64 {
	out := make(map[byte]int64, len(c.DefaultDynDims))
	for k, v := range c.DefaultDynDims {
		if len(k) == 1 {
			out[k[0]] = v
		}
	}
	return out
}
