// Copyright (c) 2024 The alsanna authors. MIT License.

// Package transport provides the bottom-of-stack raw TCP socket every
// handler pipeline is built on top of. It implements msgsock.Socket by
// reading and writing plain byte chunks bounded by the configured read
// size, the same role original_source's raw
// socket.recv(num_bytes)/send(bytestr) play at the bottom of a Python
// handler stack.
package transport

import (
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/dulaku/alsanna/msgsock"
)

// TCPSocket wraps a net.Conn (already accepted, or not yet dialed) as a
// msgsock.Socket whose messages are raw []byte chunks.
type TCPSocket struct {
	conn     net.Conn
	readSize int
}

// NewAccepted wraps an already-accepted connection (the client-facing leg).
func NewAccepted(conn net.Conn, readSize int) *TCPSocket {
	return &TCPSocket{conn: conn, readSize: readSize}
}

// NewUnconnected returns a socket with no connection yet; Connect dials it.
// Used for the server-facing leg's lazy connect.
func NewUnconnected(readSize int) *TCPSocket {
	return &TCPSocket{readSize: readSize}
}

func (s *TCPSocket) Connect(addr string) error {
	conn, err := net.Dial("tcp4", addr)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

func (s *TCPSocket) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Recv reads up to readSize bytes and returns them as a []byte message. A
// clean close (EOF, connection reset) is reported as io.EOF, matching the
// contract every handler layered above assumes.
func (s *TCPSocket) Recv() (msgsock.Message, error) {
	buf := make([]byte, s.readSize)
	n, err := s.conn.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == nil {
		return nil, io.EOF
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return nil, io.EOF
	}
	if isConnReset(err) {
		return nil, io.EOF
	}
	return nil, err
}

// Send writes b in full, accumulating the offset across partial writes,
// mirroring original_source's RawSocket.send retry loop. A connection
// reset mid-write is treated as a clean, if early, termination rather than
// a fatal error, matching the Python handler's behaviour.
func (s *TCPSocket) Send(m msgsock.Message) error {
	b, ok := m.([]byte)
	if !ok {
		return errNonByteMessage
	}
	sent := 0
	for sent < len(b) {
		n, err := s.conn.Write(b[sent:])
		sent += n
		if err != nil {
			if isConnReset(err) {
				return nil
			}
			return err
		}
	}
	return nil
}

var errNonByteMessage = errors.New("transport: expected []byte message")

// isConnReset reports whether err represents the peer tearing the
// connection down (reset, broken pipe, already-closed), which
// original_source's handler treats as an ordinary end of stream rather
// than a fatal error.
func isConnReset(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
