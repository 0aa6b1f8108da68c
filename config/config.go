// Package config loads the harness configuration file described in
// spec.md §6: the controller endpoints to dial, the topology generator to
// use, and per-mode options. Parsed with github.com/pelletier/go-toml,
// matching the teacher pack's choice of library for service configuration.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
)

// A ControllerEndpoint is one (host, port) pair the harness dials at boot,
// per spec.md §6's `controllers` list.
type ControllerEndpoint struct {
	ID   string `toml:"id"`
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// FuzzOptions holds the `fuzz` mode's knobs.
type FuzzOptions struct {
	Delay float64 `toml:"delay"`
	Steps int     `toml:"steps"`
	Seed  int64   `toml:"seed"`
}

// ReplayOptions holds the `replay` mode's knobs.
type ReplayOptions struct {
	PassThroughSends bool `toml:"pass_through_sends"`
	DefaultTimeout   int  `toml:"default_timeout_ms"`
}

// InteractiveOptions holds the `interactive` mode's knobs.
type InteractiveOptions struct {
	FailToInteractive                       bool `toml:"fail_to_interactive"`
	FailToInteractiveOnPersistentViolations bool `toml:"fail_to_interactive_on_persistent_violations"`
}

// A Config is the top-level harness configuration file, per spec.md §6.
type Config struct {
	Controllers       []ControllerEndpoint `toml:"controllers"`
	TopologyGenerator string               `toml:"topology_generator"`
	BootControllers   bool                 `toml:"boot_controllers"`
	TraceDir          string               `toml:"trace_dir"`
	InvariantCheck    string               `toml:"invariant_check"`

	Fuzz        FuzzOptions        `toml:"fuzz"`
	Replay      ReplayOptions      `toml:"replay"`
	Interactive InteractiveOptions `toml:"interactive"`
}

// Load reads and parses the TOML configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a TOML document into a Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return &cfg, nil
}

// Validate checks the fields spec.md §6 requires to be present for any mode
// to run: at least one controller endpoint, each with a non-empty id.
func (c *Config) Validate() error {
	if len(c.Controllers) == 0 {
		return fmt.Errorf("config: no controllers configured")
	}
	seen := make(map[string]bool, len(c.Controllers))
	for _, ce := range c.Controllers {
		if ce.ID == "" {
			return fmt.Errorf("config: controller entry missing id (host=%s port=%d)", ce.Host, ce.Port)
		}
		if seen[ce.ID] {
			return fmt.Errorf("config: duplicate controller id %q", ce.ID)
		}
		seen[ce.ID] = true
		if ce.Port <= 0 || ce.Port > 65535 {
			return fmt.Errorf("config: controller %q has invalid port %d", ce.ID, ce.Port)
		}
	}
	return nil
}
