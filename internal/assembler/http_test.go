package assembler

import (
	"bytes"
	"strings"
	"testing"
)

func TestBegin_SinglePacketRequest(t *testing.T) {
	asm := NewHTTP()
	raw := "GET / HTTP/1.1\r\nHost: x\r\n\r\n"

	pending, req, consumed, err := asm.Begin([]byte(raw))
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if pending != nil {
		t.Fatal("Expected no pending handle for a fully framed request")
	}
	if req == nil {
		t.Fatal("Expected a complete request")
	}
	if consumed != len(raw) {
		t.Errorf("Expected consumed %d, got %d", len(raw), consumed)
	}
	if req.Method != "GET" || req.Path != "/" || req.Proto != "HTTP/1.1" {
		t.Errorf("Unexpected request line: %s %s %s", req.Method, req.Path, req.Proto)
	}
	if req.Host != "x" {
		t.Errorf("Expected host x, got %q", req.Host)
	}
	if !req.KeepAlive {
		t.Error("Expected HTTP/1.1 request to default to keep-alive")
	}
}

func TestBegin_EmptyChunk(t *testing.T) {
	asm := NewHTTP()

	pending, req, consumed, err := asm.Begin(nil)
	if pending != nil || req != nil || consumed != 0 || err != nil {
		t.Errorf("Begin(nil) = (%v, %v, %d, %v), want all zero", pending, req, consumed, err)
	}
}

func TestContinue_FragmentedHeader(t *testing.T) {
	asm := NewHTTP()

	pending, req, _, err := asm.Begin([]byte("GET / HTTP/1.1\r\n"))
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if pending == nil {
		t.Fatal("Expected a pending handle for an incomplete header")
	}
	if req != nil {
		t.Fatal("Expected no request yet")
	}

	req, rest, err := pending.Continue([]byte("Host: x\r\n\r\n"))
	if err != nil {
		t.Fatalf("Continue() error = %v", err)
	}
	if req == nil {
		t.Fatal("Expected completion on second fragment")
	}
	if rest != nil {
		t.Errorf("Expected no leftover bytes, got %q", rest)
	}
	if req.Host != "x" {
		t.Errorf("Expected host x, got %q", req.Host)
	}
	pending.Finalize()
}

func TestContinue_ByteAtATime(t *testing.T) {
	asm := NewHTTP()
	raw := "POST /submit HTTP/1.1\r\nHost: a\r\nContent-Length: 5\r\n\r\nhello"

	pending, req, _, err := asm.Begin([]byte(raw[:1]))
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if pending == nil {
		t.Fatal("Expected a pending handle")
	}

	for i := 1; i < len(raw); i++ {
		req, _, err = pending.Continue([]byte{raw[i]})
		if err != nil {
			t.Fatalf("Continue() at byte %d error = %v", i, err)
		}
		if i < len(raw)-1 && req != nil {
			t.Fatalf("Completed early at byte %d", i)
		}
	}
	if req == nil {
		t.Fatal("Expected completion after the final byte")
	}
	if !bytes.Equal(req.Body, []byte("hello")) {
		t.Errorf("Expected body hello, got %q", req.Body)
	}
	pending.Finalize()
}

func TestBegin_BodyInOnePacket(t *testing.T) {
	asm := NewHTTP()
	raw := "POST /x HTTP/1.1\r\nHost: a\r\nContent-Length: 3\r\n\r\nabc"

	pending, req, consumed, err := asm.Begin([]byte(raw))
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if pending != nil {
		t.Fatal("Expected no pending handle when the body arrives with the headers")
	}
	if req == nil {
		t.Fatal("Expected a complete request")
	}
	if consumed != len(raw) {
		t.Errorf("Expected consumed %d, got %d", len(raw), consumed)
	}
	if string(req.Body) != "abc" {
		t.Errorf("Expected body abc, got %q", req.Body)
	}
	if req.ContentLength != 3 {
		t.Errorf("Expected content length 3, got %d", req.ContentLength)
	}
}

func TestBegin_PipelinedRequests(t *testing.T) {
	asm := NewHTTP()
	first := "GET /a HTTP/1.1\r\nHost: x\r\n\r\n"
	second := "GET /b HTTP/1.1\r\nHost: x\r\n\r\n"

	_, req, consumed, err := asm.Begin([]byte(first + second))
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if req == nil || req.Path != "/a" {
		t.Fatalf("Expected first request /a, got %+v", req)
	}
	if consumed != len(first) {
		t.Fatalf("Expected consumed %d, got %d", len(first), consumed)
	}

	_, req, consumed, err = asm.Begin([]byte(second))
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if req == nil || req.Path != "/b" {
		t.Fatalf("Expected second request /b, got %+v", req)
	}
	if consumed != len(second) {
		t.Errorf("Expected consumed %d, got %d", len(second), consumed)
	}
}

func TestContinue_LeftoverAfterCompletion(t *testing.T) {
	asm := NewHTTP()

	pending, _, _, err := asm.Begin([]byte("GET /a HTTP/1.1\r\n"))
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	req, rest, err := pending.Continue([]byte("Host: x\r\n\r\nGET /b"))
	if err != nil {
		t.Fatalf("Continue() error = %v", err)
	}
	if req == nil || req.Path != "/a" {
		t.Fatalf("Expected request /a, got %+v", req)
	}
	if string(rest) != "GET /b" {
		t.Errorf("Expected leftover %q, got %q", "GET /b", rest)
	}
	pending.Finalize()
}

func TestContinue_ChunkedBody(t *testing.T) {
	asm := NewHTTP()
	head := "POST /x HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: chunked\r\n\r\n"

	pending, req, _, err := asm.Begin([]byte(head))
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if pending == nil || req != nil {
		t.Fatal("Expected a pending handle awaiting chunks")
	}

	req, _, err = pending.Continue([]byte("5\r\nhello\r\n6\r\n world\r\n"))
	if err != nil {
		t.Fatalf("Continue() error = %v", err)
	}
	if req != nil {
		t.Fatal("Expected more data needed before the last chunk")
	}

	req, rest, err := pending.Continue([]byte("0\r\n\r\n"))
	if err != nil {
		t.Fatalf("Continue() error = %v", err)
	}
	if req == nil {
		t.Fatal("Expected completion after the zero chunk")
	}
	if string(req.Body) != "hello world" {
		t.Errorf("Expected body %q, got %q", "hello world", req.Body)
	}
	if rest != nil {
		t.Errorf("Expected no leftover, got %q", rest)
	}
	if !req.Chunked {
		t.Error("Expected chunked flag to be set")
	}
	pending.Finalize()
}

func TestBegin_ParseErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"bad request line", "GARBAGE\r\nHost: x\r\n\r\n"},
		{"bad protocol", "GET / SPDY/3\r\nHost: x\r\n\r\n"},
		{"bad header line", "GET / HTTP/1.1\r\nno-colon-here\r\n\r\n"},
		{"bad content length", "GET / HTTP/1.1\r\nContent-Length: ten\r\n\r\n"},
		{"negative content length", "GET / HTTP/1.1\r\nContent-Length: -1\r\n\r\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			asm := NewHTTP()
			pending, req, _, err := asm.Begin([]byte(tc.raw))
			if err == nil {
				t.Fatalf("Expected error, got pending=%v req=%+v", pending, req)
			}
		})
	}
}

func TestBegin_OverflowingContentLength(t *testing.T) {
	asm := NewHTTP()
	raw := "POST /x HTTP/1.1\r\nHost: a\r\nContent-Length: 9223372036854775807\r\n\r\nabc"

	pending, req, _, err := asm.Begin([]byte(raw))
	if err == nil {
		t.Fatalf("Expected error for a max-int64 content length, got pending=%v req=%+v", pending, req)
	}
}

func TestBegin_HugeDeclaredContentLength(t *testing.T) {
	asm := NewHTTP()
	raw := "POST /x HTTP/1.1\r\nHost: a\r\nContent-Length: 1073741824\r\n\r\n"

	pending, req, _, err := asm.Begin([]byte(raw))
	if err == nil {
		t.Fatalf("Expected error for a body beyond the default limit, got pending=%v req=%+v", pending, req)
	}
}

func TestBegin_ContentLengthAtCustomLimit(t *testing.T) {
	asm := &HTTP{MaxBodyBytes: 4}

	_, req, _, err := asm.Begin([]byte("POST /x HTTP/1.1\r\nHost: a\r\nContent-Length: 4\r\n\r\nabcd"))
	if err != nil {
		t.Fatalf("Begin() at the limit error = %v", err)
	}
	if req == nil || string(req.Body) != "abcd" {
		t.Fatalf("Expected complete request at the limit, got %+v", req)
	}

	_, _, _, err = asm.Begin([]byte("POST /x HTTP/1.1\r\nHost: a\r\nContent-Length: 5\r\n\r\nabcde"))
	if err == nil {
		t.Fatal("Expected error one byte past the limit")
	}
}

func TestContinue_OverflowingChunkSize(t *testing.T) {
	asm := NewHTTP()

	pending, _, _, err := asm.Begin([]byte("POST /x HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: chunked\r\n\r\n"))
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	_, _, err = pending.Continue([]byte("7fffffffffffffff\r\n"))
	if err == nil {
		t.Fatal("Expected error for a max-int64 chunk size")
	}
	pending.Finalize()
}

func TestContinue_ChunkedBodyLimit(t *testing.T) {
	asm := &HTTP{MaxBodyBytes: 8}

	pending, _, _, err := asm.Begin([]byte("POST /x HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: chunked\r\n\r\n"))
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	req, _, err := pending.Continue([]byte("5\r\nhello\r\n"))
	if err != nil || req != nil {
		t.Fatalf("Continue() under the limit = (%+v, %v)", req, err)
	}

	_, _, err = pending.Continue([]byte("5\r\nworld\r\n"))
	if err == nil {
		t.Fatal("Expected error once accumulated chunks exceed the limit")
	}
	pending.Finalize()
}

func TestContinue_ChunkedBadTerminator(t *testing.T) {
	asm := NewHTTP()

	pending, _, _, err := asm.Begin([]byte("POST /x HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: chunked\r\n\r\n"))
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	_, _, err = pending.Continue([]byte("2\r\nok\r\n0\r\nXY"))
	if err == nil {
		t.Fatal("Expected error for a zero chunk not terminated by CRLF")
	}
	pending.Finalize()
}

func TestContinue_HeaderLimit(t *testing.T) {
	asm := &HTTP{MaxHeaderBytes: 64}

	pending, _, _, err := asm.Begin([]byte("GET / HTTP/1.1\r\n"))
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	_, _, err = pending.Continue([]byte("X-Filler: " + strings.Repeat("a", 128) + "\r\n"))
	if err == nil {
		t.Fatal("Expected header limit error")
	}
	pending.Finalize()
}

func TestFinalize_Idempotent(t *testing.T) {
	asm := NewHTTP()

	pending, _, _, err := asm.Begin([]byte("GET / HTTP/1.1\r\n"))
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	pending.Finalize()
	pending.Finalize()

	if _, _, err := pending.Continue([]byte("x")); err == nil {
		t.Error("Expected error when continuing a finalized request")
	}
}

func TestBegin_ConnectionClose(t *testing.T) {
	asm := NewHTTP()
	raw := "GET / HTTP/1.0\r\nHost: x\r\nConnection: close\r\n\r\n"

	_, req, _, err := asm.Begin([]byte(raw))
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if req == nil {
		t.Fatal("Expected a complete request")
	}
	if req.KeepAlive {
		t.Error("Expected keep-alive off for Connection: close")
	}
}

func TestRequest_HeadersPreserveOrder(t *testing.T) {
	asm := NewHTTP()
	raw := "GET / HTTP/1.1\r\nHost: x\r\nAccept: */*\r\nX-One: 1\r\n\r\n"

	_, req, _, err := asm.Begin([]byte(raw))
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	want := [][2]string{{"host", "x"}, {"accept", "*/*"}, {"x-one", "1"}}
	if len(req.Headers) != len(want) {
		t.Fatalf("Expected %d headers, got %d", len(want), len(req.Headers))
	}
	for i, h := range want {
		if req.Headers[i] != h {
			t.Errorf("Header %d: expected %v, got %v", i, h, req.Headers[i])
		}
	}
}
