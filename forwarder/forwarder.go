// Copyright (c) 2024 The alsanna authors. MIT License.

// Package forwarder implements one direction of one connection end-to-end:
// read a message, publish its printable form to the UI, block for the
// (possibly edited) result, re-encode, and send it onward.
//
// Grounded on original_source/proxy.py's forward() coroutine. The dual-
// purpose bool-or-socket return value that function used to signal "I just
// connected the server socket" is replaced here by msgsock.ConnSockets's
// explicit ServerConnected event and mutable server slot.
package forwarder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dulaku/alsanna/alerr"
	"github.com/dulaku/alsanna/display"
	"github.com/dulaku/alsanna/msgsock"
	"github.com/dulaku/alsanna/transport"
)

// Forwarder owns one direction of one connection.
type Forwarder struct {
	ConnID int
	Listen msgsock.Direction
	Send   msgsock.Direction

	Sockets *msgsock.ConnSockets
	Locals  *msgsock.ConnLocals

	// Handlers is the full, ordered pipeline (bottom to top); only the
	// last is consulted for printable conversion. The client->server
	// Forwarder also uses it to build the server-facing stack on its lazy
	// connect.
	Handlers []msgsock.Handler

	Display chan<- display.Msg

	ServerAddr string
	ReadSize   int

	// Result is this direction's one-slot FIFO result channel, registered
	// with the UI Coordinator by the Connection Manager before any
	// Forwarder starts.
	Result <-chan string

	// Ctx is cancelled by the Acceptor on shutdown; each loop iteration
	// checks it alongside the os.Getppid()==1 orphan poll (orphaned).
	Ctx context.Context
}

// Run executes the Forwarder's loop until the connection direction
// terminates. It always posts Kill on exit so the UI Coordinator releases
// this direction's queue key.
func (f *Forwarder) Run() {
	key := msgsock.Key(f.ConnID, f.Listen)
	defer func() { f.Display <- display.NewKill(key) }()

	top := f.Handlers[len(f.Handlers)-1]
	printable, ok := top.(msgsock.Printable)
	if !ok {
		f.reportErr("handler setup", fmt.Errorf("topmost handler %q does not implement printable conversion", top.Name()))
		return
	}

	for {
		if f.Ctx.Err() != nil {
			f.Sockets.CloseAll()
			return
		}
		if orphaned() {
			f.Sockets.CloseAll()
			return
		}

		listenSock := f.listenSocket()
		if listenSock == nil {
			// server-facing listen socket not yet connected; only relevant
			// for the server->client direction, which the Connection Manager
			// starts only after ServerConnected has fired.
			return
		}

		msg, err := listenSock.Recv()
		if err != nil {
			if f.isRetryable(err) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return
			}
			f.reportErr("receive failed", err)
			return
		}

		text, state, err := printable.MessageToPrintable(msg)
		if err != nil {
			f.reportErr("decode failed", alerr.Wrap(alerr.CodeDecode, "message_to_printable", err))
			continue
		}

		f.Display <- display.NewPayload(key, text)

		edited, ok := <-f.Result
		if !ok {
			f.Sockets.CloseAll()
			return
		}

		outMsg, err := printable.PrintableToMessage(edited, state)
		if err != nil {
			f.reportErr("encode failed", alerr.Wrap(alerr.CodeEncode, "printable_to_message", err))
			outMsg = msg // fall back to the original, unedited message
		}

		if f.Listen == msgsock.Client && f.Sockets.Server() == nil {
			if err := f.lazyConnect(); err != nil {
				f.reportErr("server connect failed", err)
				f.Sockets.CloseAll()
				return
			}
		}

		sendSock := f.sendSocket()
		if sendSock == nil {
			f.reportErr("send failed", errors.New("send socket not connected"))
			f.Sockets.CloseAll()
			return
		}

		if err := sendSock.Send(outMsg); err != nil {
			f.reportErr("send failed", alerr.Wrap(alerr.CodeSend, "send", err))
			f.Sockets.CloseAll()
			return
		}
	}
}

func (f *Forwarder) listenSocket() msgsock.Socket {
	if f.Listen == msgsock.Client {
		return f.Sockets.Client()
	}
	return f.Sockets.Server()
}

func (f *Forwarder) sendSocket() msgsock.Socket {
	if f.Send == msgsock.Client {
		return f.Sockets.Client()
	}
	return f.Sockets.Server()
}

// isRetryable reports whether any handler in the stack treats err as a
// transient "incomplete frame" condition.
func (f *Forwarder) isRetryable(err error) bool {
	for _, h := range f.Handlers {
		if h.IsRetryable(err) {
			return true
		}
	}
	return false
}

// lazyConnect builds the server-facing socket the first time the
// client->server direction has an outbound message ready to send (spec
// §4.C step 7, §4.D step 5): a fresh raw TCP socket, every handler's
// SetupServerFacing applied in order, then dialed to the configured
// upstream.
func (f *Forwarder) lazyConnect() error {
	var sock msgsock.Socket = transport.NewUnconnected(f.ReadSize)
	for _, h := range f.Handlers {
		var err error
		sock, err = h.SetupServerFacing(sock, f.Locals)
		if err != nil {
			return alerr.Wrap(alerr.CodeHandlerSetup, "setup_server_facing: "+h.Name(), err)
		}
	}
	if err := sock.Connect(f.ServerAddr); err != nil {
		return err
	}
	f.Sockets.SetServer(sock)
	return nil
}

// orphaned reports whether this process's parent has already exited, the
// documented POSIX fallback layered alongside the Acceptor's cancellable
// context.Context for platforms without a reliable parent-death signal
// (spec §9, SPEC_FULL.md §C.3): once the original parent is gone, this
// process has been reparented to init (pid 1).
func orphaned() bool {
	return os.Getppid() == 1
}

func (f *Forwarder) reportErr(summary string, err error) {
	if ae := new(alerr.Error); errors.As(err, &ae) {
		s, d := ae.Detail()
		f.Display <- display.NewErr(s, d)
		return
	}
	f.Display <- display.NewErr(summary, err.Error())
}
