package loop

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/gnet/v2"
	"github.com/valyala/bytebufferpool"

	"github.com/onionhammer/nimbus/internal/assembler"
)

// Config defines the event-loop server options.
type Config struct {
	Addr           string
	Multicore      bool
	NumEventLoop   int
	ReusePort      bool
	Logger         *log.Logger
	MaxConnections uint32
	Assembler      assembler.Assembler
}

// Server implements gnet.EventHandler. It accepts connections, feeds each
// read event through the per-connection state machine, and releases
// connection resources inside the substrate's close confirmation.
type Server struct {
	gnet.BuiltinEventEngine
	handler        Handler
	asm            assembler.Assembler
	ctx            context.Context
	cancel         context.CancelFunc
	logger         *log.Logger
	addr           string
	multicore      bool
	numEventLoop   int
	reusePort      bool
	maxConnections uint32
	activeConns    uint32

	// engineMu guards engine and engineStarted, written from the loop
	// goroutine in OnBoot/OnShutdown and read by Stop from the caller.
	engineMu      sync.Mutex
	engine        gnet.Engine
	engineStarted bool
}

// NewServer creates an event-loop server for the given handler.
func NewServer(ctx context.Context, handler Handler, config Config) *Server {
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	if config.Assembler == nil {
		config.Assembler = assembler.NewHTTP()
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		handler:        handler,
		asm:            config.Assembler,
		ctx:            serverCtx,
		cancel:         cancel,
		logger:         config.Logger,
		addr:           config.Addr,
		multicore:      config.Multicore,
		numEventLoop:   config.NumEventLoop,
		reusePort:      config.ReusePort,
		maxConnections: config.MaxConnections,
	}
}

// Start begins listening and accepting connections. Bind or listen failures
// surface through gnet.Run and are reported via the logger; the caller
// decides whether they are fatal.
func (s *Server) Start() error {
	numLoops := 1
	if s.numEventLoop > 0 {
		numLoops = s.numEventLoop
	}

	options := []gnet.Option{
		gnet.WithMulticore(s.multicore),
		gnet.WithNumEventLoop(numLoops),
		gnet.WithReusePort(s.reusePort),
		gnet.WithTCPNoDelay(gnet.TCPNoDelay),
		gnet.WithLogger(quietLogger{s.logger}),
	}

	s.logger.Printf("server listening on %s (event loops: %d)", s.addr, numLoops)

	// gnet.Run blocks for the lifetime of the engine.
	go func() {
		if err := gnet.Run(s, "tcp://"+s.addr, options...); err != nil {
			s.logger.Printf("listen on %s: %v", s.addr, err)
		}
	}()

	return nil
}

// Stop shuts the engine down, closing the listener and all connections.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()

	s.engineMu.Lock()
	started := s.engineStarted
	engine := s.engine
	s.engineMu.Unlock()

	if started {
		stopCtx, stopCancel := context.WithTimeout(ctx, 2*time.Second)
		defer stopCancel()
		if err := engine.Stop(stopCtx); err != nil {
			s.logger.Printf("error stopping engine: %v", err)
			return err
		}
	}

	return nil
}

// OnBoot is called once the listener is bound.
func (s *Server) OnBoot(eng gnet.Engine) gnet.Action {
	s.engineMu.Lock()
	s.engine = eng
	s.engineStarted = true
	s.engineMu.Unlock()
	return gnet.None
}

// OnShutdown is called when the engine is shutting down.
func (s *Server) OnShutdown(_ gnet.Engine) {
	s.engineMu.Lock()
	s.engineStarted = false
	s.engineMu.Unlock()
}

// OnOpen is the accept-ready event. A Connection is allocated per accepted
// socket and attached via the substrate's per-connection context. A
// rejected candidate is discarded with no state pending.
func (s *Server) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	if s.maxConnections > 0 && atomic.LoadUint32(&s.activeConns) >= s.maxConnections {
		connectionsRejected.Inc()
		s.logger.Printf("connection from %s rejected: at limit (%d)", c.RemoteAddr(), s.maxConnections)
		return nil, gnet.Close
	}
	atomic.AddUint32(&s.activeConns, 1)
	connectionsAccepted.Inc()
	connectionsActive.Inc()

	conn := newConnection(s.ctx, c, s.asm, s.handler, s.logger)
	c.SetContext(conn)
	return nil, gnet.None
}

// OnTraffic is the read-ready event. The bytes of this read are copied
// into a pooled buffer owned by the connection only for the duration of
// the callback and returned to the pool on every branch.
func (s *Server) OnTraffic(c gnet.Conn) gnet.Action {
	conn, ok := c.Context().(*Connection)
	if !ok {
		s.logger.Printf("connection %s has no state, closing", c.RemoteAddr())
		return gnet.Close
	}
	if conn.closing {
		return gnet.None
	}

	data, err := c.Next(-1)
	if err != nil {
		readErrors.Inc()
		conn.abort("read error", err)
		return gnet.Close
	}
	if len(data) == 0 {
		return gnet.None
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	buf.Write(data)

	conn.handleData(buf.B)
	return gnet.None
}

// OnClose is the substrate's close confirmation: EOF, read error, or a
// teardown this side initiated. Only here are the connection's resources
// released, exactly once.
func (s *Server) OnClose(c gnet.Conn, err error) gnet.Action {
	conn, ok := c.Context().(*Connection)
	if !ok {
		// A candidate rejected in OnOpen never had state attached.
		return gnet.None
	}

	atomic.AddUint32(&s.activeConns, ^uint32(0))
	connectionsActive.Dec()
	if err != nil {
		s.logger.Printf("connection from %s closed: %v", c.RemoteAddr(), err)
	}

	conn.release()
	return gnet.None
}

// quietLogger routes gnet engine errors through the server's logger and
// drops the rest.
type quietLogger struct {
	l *log.Logger
}

func (q quietLogger) Debugf(_ string, _ ...any) {}
func (q quietLogger) Infof(_ string, _ ...any)  {}
func (q quietLogger) Warnf(_ string, _ ...any)  {}

func (q quietLogger) Errorf(format string, args ...any) {
	q.l.Printf("gnet: "+format, args...)
}

func (q quietLogger) Fatalf(format string, args ...any) {
	q.l.Printf("gnet: "+format, args...)
}
