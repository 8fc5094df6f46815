// Copyright (c) 2024 The alsanna authors. MIT License.

package connmgr_test

import (
	"bufio"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dulaku/alsanna/connmgr"
	"github.com/dulaku/alsanna/display"
	"github.com/dulaku/alsanna/handler/rawbytes"
	"github.com/dulaku/alsanna/msgsock"
	"github.com/dulaku/alsanna/transport"
)

// fakeUI is a minimal stand-in for the UI Coordinator: it registers result
// channels and echoes every Payload back unedited, exercising // scenario S1 (raw pass-through, intercept off both sides) without a real
// terminal.
func fakeUI(t *testing.T, ch chan display.Msg) {
	registry := map[msgsock.QueueKey]chan string{}
	for msg := range ch {
		switch msg.Kind {
		case display.Register:
			registry[msg.Key] = msg.Result
		case display.Kill:
			delete(registry, msg.Key)
		case display.Payload:
			if result, ok := registry[msg.Key]; ok {
				result <- msg.Text
			}
		case display.Err:
			t.Logf("connmgr test: Err %s: %s", msg.Summary, msg.Detail)
		}
	}
}

// TestRawPassThrough is the S1: handlers = [rawbytes], intercept off
// both sides. The client sends "ping\n" and expects "pong\n" back, and the
// upstream must see exactly "ping\n".
func TestRawPassThrough(t *testing.T) {
	upstreamLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("starting fake upstream: %v", err)
	}
	defer upstreamLn.Close()

	var upstreamGotPing string
	var wgUpstream sync.WaitGroup
	wgUpstream.Add(1)
	go func() {
		defer wgUpstream.Done()
		conn, err := upstreamLn.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		line, err := bufio.NewReader(conn).ReadString('\n')
		if err != nil {
			return
		}
		upstreamGotPing = line
		_, _ = conn.Write([]byte("pong\n"))
	}()

	clientSide, proxySide := net.Pipe()
	defer clientSide.Close()

	display := make(chan display.Msg, 64)
	go fakeUI(t, display)

	mgr := &connmgr.Manager{
		ConnID:     1,
		ServerAddr: upstreamLn.Addr().String(),
		ReadSize:   4096,
		Handlers:   []msgsock.Handler{rawbytes.New()},
		Display:    display,
		Ctx:        context.Background(),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		mgr.Run(transport.NewAccepted(proxySide, 4096))
	}()

	if _, err := clientSide.Write([]byte("ping\n")); err != nil {
		t.Fatalf("writing to proxy: %v", err)
	}

	clientSide.SetReadDeadline(time.Now().Add(5 * time.Second))
	reply, err := bufio.NewReader(clientSide).ReadString('\n')
	if err != nil {
		t.Fatalf("reading reply from proxy: %v", err)
	}
	if reply != "pong\n" {
		t.Fatalf("client got %q, want %q", reply, "pong\n")
	}

	wgUpstream.Wait()
	if upstreamGotPing != "ping\n" {
		t.Fatalf("upstream got %q, want %q", upstreamGotPing, "ping\n")
	}

	clientSide.Close()
	<-done
	close(display)
}
