package nimbus

import (
	"errors"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// LoadConfig reads a TOML config file and overlays it on DefaultConfig.
// A missing file is not an error; defaults are returned.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}

	var raw struct {
		Addr           string `toml:"addr"`
		Multicore      bool   `toml:"multicore"`
		NumEventLoop   int    `toml:"num_event_loop"`
		ReusePort      bool   `toml:"reuse_port"`
		MaxConnections uint32 `toml:"max_connections"`
		MaxHeaderBytes int    `toml:"max_header_bytes"`
		MaxBodyBytes   int64  `toml:"max_body_bytes"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if raw.Addr != "" {
		cfg.Addr = raw.Addr
	}
	cfg.Multicore = raw.Multicore
	cfg.ReusePort = raw.ReusePort
	if raw.NumEventLoop > 0 {
		cfg.NumEventLoop = raw.NumEventLoop
	}
	if raw.MaxConnections > 0 {
		cfg.MaxConnections = raw.MaxConnections
	}
	if raw.MaxHeaderBytes > 0 {
		cfg.MaxHeaderBytes = raw.MaxHeaderBytes
	}
	if raw.MaxBodyBytes > 0 {
		cfg.MaxBodyBytes = raw.MaxBodyBytes
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
