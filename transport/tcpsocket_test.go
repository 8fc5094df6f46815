// Copyright (c) 2024 The alsanna authors. MIT License.

package transport_test

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/dulaku/alsanna/transport"
)

func TestSendRecvRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	serverDone := make(chan struct{})
	var serverErr error
	go func() {
		defer close(serverDone)
		conn, err := ln.Accept()
		if err != nil {
			serverErr = err
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		n, err := conn.Read(buf)
		if err != nil {
			serverErr = err
			return
		}
		if _, err := conn.Write(buf[:n]); err != nil {
			serverErr = err
		}
	}()

	client, err := net.Dial("tcp4", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	sock := transport.NewAccepted(client, 4096)
	defer sock.Close()

	if err := sock.Send([]byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	msg, err := sock.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	b, ok := msg.([]byte)
	if !ok || string(b) != "hello" {
		t.Fatalf("Recv = %v, want []byte(\"hello\")", msg)
	}

	<-serverDone
	if serverErr != nil {
		t.Fatalf("server: %v", serverErr)
	}
}

func TestRecvOnClosedConnReturnsEOF(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	client, err := net.Dial("tcp4", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	sock := transport.NewAccepted(client, 4096)
	defer sock.Close()

	if _, err := sock.Recv(); err != io.EOF {
		t.Fatalf("Recv = %v, want io.EOF", err)
	}
}
