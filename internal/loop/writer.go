package loop

import (
	"github.com/panjf2000/gnet/v2"
)

// Send implements ResponseSender. It issues exactly one asynchronous write
// of buf on the connection's socket: no queuing, no chunking, no retry. A
// failure, whether immediate or reported by the substrate's completion
// callback, finalizes any in-progress request and closes the connection.
// On success the connection stays open and further requests may arrive.
func (c *Connection) Send(buf []byte) error {
	if c.closing {
		return ErrClosed
	}

	err := c.conn.AsyncWrite(buf, func(_ gnet.Conn, err error) error {
		if err != nil {
			c.writeFailed(err)
		}
		return nil
	})
	if err != nil {
		c.writeFailed(err)
		return err
	}

	responseBytes.Add(float64(len(buf)))
	return nil
}

// writeFailed handles a write error: diagnostic, finalize-if-pending, then
// unconditional close. The completion callback runs serialized with this
// connection's other callbacks, so touching pending here is safe.
func (c *Connection) writeFailed(err error) {
	writeErrors.Inc()
	c.abort("write error", err)
}
