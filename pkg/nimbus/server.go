package nimbus

import (
	"context"
	"fmt"

	"github.com/onionhammer/nimbus/internal/assembler"
	"github.com/onionhammer/nimbus/internal/loop"
)

// Server accepts connections and drives each one's lifecycle on the event
// loop, handing assembled requests to the configured Handler.
type Server struct {
	config    Config
	handler   Handler
	transport *loop.Server
}

// New creates a new Server with the provided configuration.
func New(config Config) *Server {
	if err := config.Validate(); err != nil {
		panic(err)
	}

	return &Server{
		config: config,
	}
}

// NewWithDefaults creates a new Server with default configuration.
func NewWithDefaults() *Server {
	return New(DefaultConfig())
}

// Handler sets the request handler and returns the server for method chaining.
func (s *Server) Handler(handler Handler) *Server {
	s.handler = handler
	return s
}

// ListenAndServe sets the handler and starts the server.
func (s *Server) ListenAndServe(handler Handler) error {
	s.handler = handler
	return s.Start()
}

// Start begins accepting connections.
func (s *Server) Start() error {
	if s.handler == nil {
		return fmt.Errorf("handler not set")
	}

	asm := assembler.NewHTTP()
	asm.MaxHeaderBytes = s.config.MaxHeaderBytes
	asm.MaxBodyBytes = s.config.MaxBodyBytes

	s.transport = loop.NewServer(context.Background(), s.handler, loop.Config{
		Addr:           s.config.Addr,
		Multicore:      s.config.Multicore,
		NumEventLoop:   s.config.NumEventLoop,
		ReusePort:      s.config.ReusePort,
		Logger:         s.config.Logger,
		MaxConnections: s.config.MaxConnections,
		Assembler:      asm,
	})

	return s.transport.Start()
}

// Stop shuts down the server, closing the listener and all connections.
func (s *Server) Stop(ctx context.Context) error {
	if s.transport != nil {
		return s.transport.Stop(ctx)
	}
	return nil
}
