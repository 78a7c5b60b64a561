// Package nimbus provides a minimal event-loop server core: connection
// lifecycle, incremental request assembly, and single-buffer responses.
package nimbus

import (
	"context"

	"github.com/onionhammer/nimbus/internal/assembler"
	"github.com/onionhammer/nimbus/internal/loop"
)

// Request is a fully assembled inbound request.
type Request = assembler.Request

// ResponseSender writes one pre-rendered response buffer on a connection.
type ResponseSender = loop.ResponseSender

// Handler receives each request the moment its assembly completes.
//
// It runs on the event loop and must not block. It renders a complete
// response buffer and calls w.Send at most once; returning an error closes
// the connection.
type Handler = loop.Handler

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, w ResponseSender, req *Request) error

// ServeRequest implements Handler.
func (f HandlerFunc) ServeRequest(ctx context.Context, w ResponseSender, req *Request) error {
	return f(ctx, w, req)
}
