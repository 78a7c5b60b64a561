// Package assembler turns fragmented byte deliveries into complete requests.
//
// The contract is three operations: Begin starts (and possibly completes)
// parsing from the first chunk of a new logical request, Continue feeds
// further chunks into an in-progress request, and Finalize releases the
// resources held by an in-progress request regardless of how far it got.
// Callers never retain the input slices past a call; the assembler copies
// whatever it needs to keep.
package assembler

// Request is a fully assembled inbound request.
//
// Headers preserve wire order with lower-cased names. Body is an owned copy,
// valid after the assembler's internal buffers have been released.
type Request struct {
	Method  string
	Path    string
	Proto   string
	Headers [][2]string
	Host    string
	Body    []byte

	ContentLength int64
	Chunked       bool
	KeepAlive     bool
}

// Assembler begins assembly of one logical request from raw bytes.
type Assembler interface {
	// Begin parses the first chunk of a new request.
	//
	// Exactly one of the following holds on return:
	//   - req != nil: a fully framed request needing no continuation;
	//     consumed reports how many bytes of data it used, and any
	//     remainder belongs to the next request.
	//   - pending != nil: the request is incomplete; all of data has been
	//     absorbed and further chunks go through pending.Continue.
	//   - err != nil: data cannot start a valid request.
	//
	// Begin with an empty chunk returns all zero values.
	Begin(data []byte) (pending Pending, req *Request, consumed int, err error)
}

// Pending is an in-progress request awaiting more bytes.
type Pending interface {
	// Continue absorbs the next chunk. A nil req means more data is
	// needed and all of data was absorbed. A non-nil req means assembly
	// completed; rest holds any bytes beyond the request's end, owned by
	// the caller. After completion the caller must still call Finalize.
	Continue(data []byte) (req *Request, rest []byte, err error)

	// Finalize releases the resources of this in-progress request. It is
	// idempotent and must be called whether the request completed or was
	// abandoned mid-assembly.
	Finalize()
}
