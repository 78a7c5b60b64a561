package nimbus

import (
	"io"
	"log"
)

// Config holds the server configuration options.
type Config struct {
	Addr           string      // Address to bind to
	Multicore      bool        // Run one event loop per core instead of a single loop
	NumEventLoop   int         // Number of event loops (0 for a single loop)
	ReusePort      bool        // Enable SO_REUSEPORT
	MaxConnections uint32      // Reject accepts beyond this many open connections (0 = unlimited)
	MaxHeaderBytes int         // Maximum buffered header block per request
	MaxBodyBytes   int64       // Maximum declared or accumulated body per request
	Logger         *log.Logger // Logger for server diagnostics
}

// newSilentLogger creates a logger that discards all output
func newSilentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// DefaultConfig returns a Config with sensible default values. The default
// is a single event loop, so every callback for a given connection runs
// serialized on one goroutine.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		Multicore:      false,
		NumEventLoop:   0,
		ReusePort:      false,
		MaxConnections: 0,
		MaxHeaderBytes: 1 << 20,
		MaxBodyBytes:   64 << 20,
		Logger:         newSilentLogger(),
	}
}

// Validate checks and normalizes the configuration values.
func (c *Config) Validate() error {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.MaxHeaderBytes <= 0 {
		c.MaxHeaderBytes = 1 << 20
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 64 << 20
	}
	if c.NumEventLoop < 0 {
		c.NumEventLoop = 0
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	return nil
}
