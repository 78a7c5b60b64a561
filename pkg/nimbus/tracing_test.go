package nimbus

import (
	"context"
	"errors"
	"net"
	"testing"
)

type stubSender struct {
	sent [][]byte
}

func (s *stubSender) Send(buf []byte) error {
	s.sent = append(s.sent, buf)
	return nil
}

func (s *stubSender) Close() error { return nil }

func (s *stubSender) Peer() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9}
}

func TestDefaultTracingConfig(t *testing.T) {
	config := DefaultTracingConfig()

	if config.TracerName != "nimbus" {
		t.Errorf("Expected tracer name nimbus, got %s", config.TracerName)
	}
}

func TestTracing_PassesThrough(t *testing.T) {
	called := false
	inner := HandlerFunc(func(_ context.Context, w ResponseSender, req *Request) error {
		called = true
		return w.Send([]byte("HTTP/1.1 200 OK\r\n\r\n"))
	})

	traced := Tracing(inner)
	sender := &stubSender{}
	req := &Request{Method: "GET", Path: "/"}

	if err := traced.ServeRequest(context.Background(), sender, req); err != nil {
		t.Fatalf("ServeRequest() error = %v", err)
	}
	if !called {
		t.Error("Expected inner handler to be called")
	}
	if len(sender.sent) != 1 {
		t.Errorf("Expected 1 send, got %d", len(sender.sent))
	}
}

func TestTracing_PropagatesError(t *testing.T) {
	wantErr := errors.New("boom")
	inner := HandlerFunc(func(_ context.Context, _ ResponseSender, _ *Request) error {
		return wantErr
	})

	traced := TracingWithConfig(inner, TracingConfig{TracerName: "test"})
	err := traced.ServeRequest(context.Background(), &stubSender{}, &Request{Method: "GET", Path: "/x"})

	if !errors.Is(err, wantErr) {
		t.Errorf("Expected handler error to propagate, got %v", err)
	}
}
