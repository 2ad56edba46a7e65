// Package config loads engine settings from council.yml with COUNCIL_*
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that decodes from strings like "30s" in both
// YAML and environment values.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds the engine settings. Precedence, lowest to highest:
// built-in defaults, council.yml (or council.yaml), COUNCIL_* environment
// variables.
type Config struct {
	// GatewayURL is the JSON-RPC endpoint member and synthesis calls are
	// dispatched to.
	GatewayURL string `yaml:"gatewayUrl,omitempty" env:"COUNCIL_GATEWAY_URL"`

	// GatewayTimeout bounds one provider round-trip.
	GatewayTimeout Duration `yaml:"gatewayTimeout,omitempty" env:"COUNCIL_GATEWAY_TIMEOUT"`

	// DBPath is the SQLite database file. Empty selects the in-memory
	// store.
	DBPath string `yaml:"dbPath,omitempty" env:"COUNCIL_DB_PATH"`

	// MCPAddr is the listen address for the MCP server.
	MCPAddr string `yaml:"mcpAddr,omitempty" env:"COUNCIL_MCP_ADDR"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		GatewayTimeout: Duration(2 * time.Minute),
		MCPAddr:        ":8700",
	}
}

// Load reads council.yml or council.yaml from the given directory and
// applies environment overrides. A missing file is not an error; the
// defaults stand.
func Load(dir string) (*Config, error) {
	cfg := Default()
	for _, name := range []string{"council.yml", "council.yaml"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", name, err)
		}
		break
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	return &cfg, nil
}
