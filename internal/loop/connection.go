// Package loop binds the connection lifecycle state machine to the gnet
// event substrate: accept, incremental request assembly, single-buffer
// response writes, and exactly-once teardown.
package loop

import (
	"context"
	"errors"
	"log"
	"net"

	"github.com/panjf2000/gnet/v2"

	"github.com/onionhammer/nimbus/internal/assembler"
)

// State is the lifecycle state of a Connection.
type State int32

const (
	// StateIdle means no request is in progress.
	StateIdle State = iota
	// StateAssembling means a request header or body is in progress.
	StateAssembling
	// StateClosed is terminal; resources have been released.
	StateClosed
)

// ErrClosed is returned by Send on a connection whose teardown has begun.
var ErrClosed = errors.New("connection closed")

// Handler receives each request the moment its assembly completes. It runs
// on the event loop and must not block; it renders a complete response
// buffer and calls w.Send at most once.
type Handler interface {
	ServeRequest(ctx context.Context, w ResponseSender, req *assembler.Request) error
}

// ResponseSender writes one pre-rendered response buffer on a connection.
type ResponseSender interface {
	// Send issues exactly one write of buf. Any failure is fatal to the
	// connection. On success the connection stays open.
	Send(buf []byte) error
	// Close initiates connection teardown. Idempotent.
	Close() error
	// Peer reports the remote address.
	Peer() net.Addr
}

// asyncConn is the slice of gnet.Conn the state machine needs. Tests
// substitute a fake; production code passes a gnet.Conn.
type asyncConn interface {
	AsyncWrite(buf []byte, callback gnet.AsyncCallback) error
	Close() error
	RemoteAddr() net.Addr
}

// Connection owns one accepted socket and at most one in-progress request.
//
// All mutation happens inside this connection's own event-loop callbacks;
// there is no interleaving and therefore no locking. Once closing is set,
// read and write events become no-ops, and resources are released exactly
// once inside the substrate's close confirmation (Server.OnClose).
type Connection struct {
	conn    asyncConn
	asm     assembler.Assembler
	handler Handler
	logger  *log.Logger
	ctx     context.Context

	// pending is non-nil iff a request has been started but not yet
	// completed or finalized.
	pending assembler.Pending
	state   State
	closing bool
}

func newConnection(ctx context.Context, c asyncConn, asm assembler.Assembler, h Handler, logger *log.Logger) *Connection {
	return &Connection{
		conn:    c,
		asm:     asm,
		handler: h,
		logger:  logger,
		ctx:     ctx,
	}
}

// State reports the current lifecycle state.
func (c *Connection) State() State {
	return c.state
}

// Peer implements ResponseSender.
func (c *Connection) Peer() net.Addr {
	return c.conn.RemoteAddr()
}

// handleData drives the state machine with one read event's bytes. The
// caller owns data only for the duration of this call; the assembler copies
// anything it retains.
func (c *Connection) handleData(data []byte) {
	if c.closing {
		return
	}

	for len(data) > 0 && !c.closing {
		if c.pending == nil {
			pending, req, consumed, err := c.asm.Begin(data)
			if err != nil {
				c.abort("parse error", err)
				return
			}
			if pending != nil {
				c.pending = pending
				c.state = StateAssembling
				return
			}
			if req == nil {
				return
			}
			data = data[consumed:]
			c.deliver(req)
			continue
		}

		req, rest, err := c.pending.Continue(data)
		if err != nil {
			c.abort("parse error", err)
			return
		}
		if req == nil {
			return
		}
		p := c.pending
		c.pending = nil
		c.state = StateIdle
		p.Finalize()
		c.deliver(req)
		data = rest
	}
}

// deliver hands a completed request to the handler.
func (c *Connection) deliver(req *assembler.Request) {
	requestsAssembled.Inc()
	if c.handler == nil {
		return
	}
	if err := c.handler.ServeRequest(c.ctx, c, req); err != nil {
		c.logger.Printf("handler error from %s: %v", c.Peer(), err)
		c.Close()
	}
}

// abort finalizes any in-progress request and starts teardown. Used for
// read errors, parse errors, and write failures.
func (c *Connection) abort(what string, err error) {
	c.logger.Printf("%s from %s: %v", what, c.Peer(), err)
	c.finalizePending()
	c.Close()
}

// finalizePending discards the in-progress request handle, if any.
func (c *Connection) finalizePending() {
	if c.pending != nil {
		c.pending.Finalize()
		c.pending = nil
	}
}

// Close implements ResponseSender. The first call latches closing and asks
// the substrate to tear the socket down; every later call is a no-op.
// Resource release happens only in release, after the substrate confirms.
func (c *Connection) Close() error {
	if c.closing {
		return nil
	}
	c.closing = true
	return c.conn.Close()
}

// release frees the connection's resources. Called exactly once, from the
// substrate's close confirmation.
func (c *Connection) release() {
	c.closing = true
	c.finalizePending()
	c.state = StateClosed
}
