// Copyright (c) 2024 The alsanna authors. MIT License.

package tlshandler

import (
	"net"
	"time"

	"github.com/dulaku/alsanna/msgsock"
)

// socketConn adapts a msgsock.Socket to the net.Conn interface crypto/tls
// requires. The lower socket in any stack that places tlshandler above
// rawbytes/transport only ever deals in []byte chunks, so Read/Write map
// directly onto Recv/Send: Read returns whatever Recv's next chunk holds
// (never more, possibly less than len(p)), and Write sends p whole.
type socketConn struct {
	lower   msgsock.Socket
	pending []byte
}

func newSocketConn(lower msgsock.Socket) *socketConn {
	return &socketConn{lower: lower}
}

func (c *socketConn) Read(p []byte) (int, error) {
	if len(c.pending) == 0 {
		m, err := c.lower.Recv()
		if err != nil {
			return 0, err
		}
		b, ok := m.([]byte)
		if !ok {
			return 0, errNonByteMessage
		}
		c.pending = b
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *socketConn) Write(p []byte) (int, error) {
	if err := c.lower.Send(append([]byte(nil), p...)); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *socketConn) Close() error                    { return c.lower.Close() }
func (c *socketConn) LocalAddr() net.Addr             { return noAddr{} }
func (c *socketConn) RemoteAddr() net.Addr            { return noAddr{} }
func (c *socketConn) SetDeadline(time.Time) error     { return nil }
func (c *socketConn) SetReadDeadline(time.Time) error  { return nil }
func (c *socketConn) SetWriteDeadline(time.Time) error { return nil }

type noAddr struct{}

func (noAddr) Network() string { return "tcp" }
func (noAddr) String() string  { return "" }
