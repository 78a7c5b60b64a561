package assembler

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/valyala/bytebufferpool"
)

// DefaultMaxHeaderBytes bounds the buffered header block of one request.
const DefaultMaxHeaderBytes = 1 << 20

// DefaultMaxBodyBytes bounds the declared or accumulated body of one request.
const DefaultMaxBodyBytes = 64 << 20

var (
	crlf         = []byte("\r\n")
	errFinalized = errors.New("assembler: continue after finalize")
)

// HTTP frames requests by HTTP/1.x rules: request line, header block
// terminated by an empty line, then an optional body sized by Content-Length
// or chunked transfer encoding. Nothing beyond framing is enforced.
type HTTP struct {
	// MaxHeaderBytes caps the buffered header block of an in-progress
	// request. Zero means DefaultMaxHeaderBytes.
	MaxHeaderBytes int
	// MaxBodyBytes caps a request body, whether declared by
	// Content-Length or accumulated from chunks. Zero means
	// DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// NewHTTP returns an HTTP assembler with default limits.
func NewHTTP() *HTTP {
	return &HTTP{
		MaxHeaderBytes: DefaultMaxHeaderBytes,
		MaxBodyBytes:   DefaultMaxBodyBytes,
	}
}

func (a *HTTP) headerLimit() int {
	if a.MaxHeaderBytes > 0 {
		return a.MaxHeaderBytes
	}
	return DefaultMaxHeaderBytes
}

func (a *HTTP) bodyLimit() int64 {
	if a.MaxBodyBytes > 0 {
		return a.MaxBodyBytes
	}
	return DefaultMaxBodyBytes
}

// Begin implements Assembler.
func (a *HTTP) Begin(data []byte) (Pending, *Request, int, error) {
	if len(data) == 0 {
		return nil, nil, 0, nil
	}

	req, consumed, headerEnd, err := parseFrame(data, a.bodyLimit())
	if err != nil {
		return nil, nil, 0, err
	}
	if req != nil {
		return nil, req, consumed, nil
	}
	if headerEnd == 0 && len(data) > a.headerLimit() {
		return nil, nil, 0, fmt.Errorf("header block exceeds %d bytes", a.headerLimit())
	}

	p := &httpPending{
		buf:     bytebufferpool.Get(),
		limit:   a.headerLimit(),
		maxBody: a.bodyLimit(),
	}
	p.buf.Write(data)
	return p, nil, len(data), nil
}

// httpPending accumulates the bytes of one incomplete request in a pooled
// buffer and re-attempts a full frame parse on each continuation.
type httpPending struct {
	buf     *bytebufferpool.ByteBuffer
	limit   int
	maxBody int64
}

// Continue implements Pending.
func (p *httpPending) Continue(data []byte) (*Request, []byte, error) {
	if p.buf == nil {
		return nil, nil, errFinalized
	}
	p.buf.Write(data)

	req, consumed, headerEnd, err := parseFrame(p.buf.B, p.maxBody)
	if err != nil {
		return nil, nil, err
	}
	if req == nil {
		if headerEnd == 0 && p.buf.Len() > p.limit {
			return nil, nil, fmt.Errorf("header block exceeds %d bytes", p.limit)
		}
		return nil, nil, nil
	}

	var rest []byte
	if consumed < p.buf.Len() {
		rest = append([]byte(nil), p.buf.B[consumed:]...)
	}
	return req, rest, nil
}

// Finalize implements Pending. Safe to call more than once.
func (p *httpPending) Finalize() {
	if p.buf != nil {
		bytebufferpool.Put(p.buf)
		p.buf = nil
	}
}

// parseFrame attempts to parse one complete request from buf.
//
// req == nil with err == nil means more data is needed. consumed is the
// frame's total length when req != nil. headerEnd is the offset just past
// the header block when the block was complete, 0 otherwise. All length
// comparisons stay in int64 so hostile Content-Length and chunk-size
// values cannot wrap int arithmetic.
func parseFrame(buf []byte, maxBody int64) (req *Request, consumed, headerEnd int, err error) {
	p := frameParser{buf: buf}
	r := new(Request)

	ok, err := p.parseRequestLine(r)
	if err != nil || !ok {
		return nil, 0, 0, err
	}
	r.KeepAlive = r.Proto == "HTTP/1.1"

	ok, err = p.parseHeaders(r)
	if err != nil || !ok {
		return nil, 0, 0, err
	}
	headerEnd = p.pos

	switch {
	case r.Chunked:
		body, end, done, cerr := parseChunkedBody(buf, p.pos, maxBody)
		if cerr != nil {
			return nil, 0, headerEnd, cerr
		}
		if !done {
			return nil, 0, headerEnd, nil
		}
		r.Body = body
		return r, end, headerEnd, nil
	case r.ContentLength > 0:
		if r.ContentLength > maxBody {
			return nil, 0, headerEnd, fmt.Errorf("declared body of %d bytes exceeds limit %d", r.ContentLength, maxBody)
		}
		if int64(len(buf)-p.pos) < r.ContentLength {
			return nil, 0, headerEnd, nil
		}
		end := p.pos + int(r.ContentLength)
		r.Body = append([]byte(nil), buf[p.pos:end]...)
		return r, end, headerEnd, nil
	default:
		return r, p.pos, headerEnd, nil
	}
}

// frameParser walks a byte buffer holding the head of a request.
type frameParser struct {
	buf []byte
	pos int
}

// parseRequestLine parses METHOD SP PATH SP VERSION CRLF, advancing pos.
// ok=false means more data is needed.
func (p *frameParser) parseRequestLine(r *Request) (bool, error) {
	lineEnd := bytes.Index(p.buf[p.pos:], crlf)
	if lineEnd == -1 {
		return false, nil
	}
	line := p.buf[p.pos : p.pos+lineEnd]
	p.pos += lineEnd + 2

	parts := bytes.SplitN(line, []byte(" "), 3)
	if len(parts) != 3 || len(parts[0]) == 0 || len(parts[1]) == 0 {
		return false, errors.New("invalid request line")
	}
	r.Method = string(parts[0])
	r.Path = string(parts[1])
	r.Proto = string(parts[2])
	if r.Proto != "HTTP/1.1" && r.Proto != "HTTP/1.0" {
		return false, fmt.Errorf("unsupported protocol: %q", r.Proto)
	}
	return true, nil
}

// parseHeaders parses header lines until the empty line, advancing pos.
// ok=false means more data is needed.
func (p *frameParser) parseHeaders(r *Request) (bool, error) {
	for {
		lineEnd := bytes.Index(p.buf[p.pos:], crlf)
		if lineEnd == -1 {
			return false, nil
		}
		line := p.buf[p.pos : p.pos+lineEnd]
		p.pos += lineEnd + 2
		if len(line) == 0 {
			return true, nil
		}

		colon := bytes.IndexByte(line, ':')
		if colon == -1 {
			return false, errors.New("invalid header line")
		}
		name := strings.ToLower(string(bytes.TrimSpace(line[:colon])))
		value := string(bytes.TrimSpace(line[colon+1:]))
		r.Headers = append(r.Headers, [2]string{name, value})

		switch name {
		case "host":
			r.Host = value
		case "content-length":
			cl, err := strconv.ParseInt(value, 10, 64)
			if err != nil || cl < 0 {
				return false, fmt.Errorf("invalid content-length: %q", value)
			}
			r.ContentLength = cl
		case "transfer-encoding":
			if asciiContainsFold(value, "chunked") {
				r.Chunked = true
				r.ContentLength = 0
			}
		case "connection":
			if asciiContainsFold(value, "close") {
				r.KeepAlive = false
			} else if asciiContainsFold(value, "keep-alive") {
				r.KeepAlive = true
			}
		}
	}
}

// parseChunkedBody decodes chunks starting at pos until the zero-size chunk
// and its trailing CRLF. done=false means more data is needed.
func parseChunkedBody(buf []byte, pos int, maxBody int64) (body []byte, end int, done bool, err error) {
	for {
		lineEnd := bytes.Index(buf[pos:], crlf)
		if lineEnd == -1 {
			return nil, 0, false, nil
		}
		sizeLine := buf[pos : pos+lineEnd]
		if semi := bytes.IndexByte(sizeLine, ';'); semi != -1 {
			sizeLine = sizeLine[:semi]
		}
		size, perr := strconv.ParseInt(string(bytes.TrimSpace(sizeLine)), 16, 64)
		if perr != nil || size < 0 {
			return nil, 0, false, fmt.Errorf("invalid chunk size: %q", sizeLine)
		}
		pos += lineEnd + 2

		if size == 0 {
			if pos+2 > len(buf) {
				return nil, 0, false, nil
			}
			if buf[pos] != '\r' || buf[pos+1] != '\n' {
				return nil, 0, false, fmt.Errorf("invalid chunk terminator: %q", buf[pos:pos+2])
			}
			return body, pos + 2, true, nil
		}
		if size > maxBody-int64(len(body)) {
			return nil, 0, false, fmt.Errorf("chunked body exceeds limit %d", maxBody)
		}
		if int64(len(buf)-pos)-2 < size {
			return nil, 0, false, nil
		}
		body = append(body, buf[pos:pos+int(size)]...)
		pos += int(size) + 2
	}
}

// asciiContainsFold reports whether s contains sub, ASCII case-insensitive.
func asciiContainsFold(s, sub string) bool {
	if len(sub) == 0 {
		return true
	}
	if len(sub) > len(s) {
		return false
	}
	for i := 0; i <= len(s)-len(sub); i++ {
		match := true
		for j := 0; j < len(sub); j++ {
			cs := s[i+j]
			ct := sub[j]
			if 'A' <= cs && cs <= 'Z' {
				cs |= 0x20
			}
			if 'A' <= ct && ct <= 'Z' {
				ct |= 0x20
			}
			if cs != ct {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
