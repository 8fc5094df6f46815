// Copyright (c) 2024 The alsanna authors. MIT License.

// Package connmgr implements the Connection Manager: the
// per-accepted-socket supervisor that builds both handler stacks and runs
// the connection's two Forwarders under the opening-direction ordering
// constraint (the server-bound direction's first recv must happen before
// the server-facing handler setup, which must happen before the
// client-bound direction's first recv -- because the client's opening
// message may carry protocol info, like SNI or StartTLS, the server-facing
// handshake needs).
//
// Grounded on original_source/proxy.py's handle_connection.
package connmgr

import (
	"context"
	"fmt"
	"sync"

	"github.com/dulaku/alsanna/alerr"
	"github.com/dulaku/alsanna/display"
	"github.com/dulaku/alsanna/forwarder"
	"github.com/dulaku/alsanna/msgsock"
)

// Manager supervises one accepted connection.
type Manager struct {
	ConnID     int
	ServerAddr string
	ReadSize   int
	Handlers   []msgsock.Handler
	Display    chan<- display.Msg
	Ctx        context.Context
}

// Run implements steps 1-7: wraps clientConn in the configured
// handler stack, starts the client->server Forwarder, waits for the
// server-facing socket to exist, then starts server->client, and blocks
// until both finish.
func (m *Manager) Run(clientRaw msgsock.Socket) {
	// Step 1: register both directions' result channels before either
	// Forwarder can possibly need them.
	resultClient := make(chan string, 1)
	resultServer := make(chan string, 1)
	m.Display <- display.NewRegister(msgsock.Key(m.ConnID, msgsock.Client), resultClient)
	m.Display <- display.NewRegister(msgsock.Key(m.ConnID, msgsock.Server), resultServer)

	locals := msgsock.NewConnLocals(m.ConnID)

	var clientSock msgsock.Socket = clientRaw
	for _, h := range m.Handlers {
		var err error
		clientSock, err = h.SetupClientFacing(clientSock, locals)
		if err != nil {
			m.reportErr("handler setup failed", alerr.Wrap(alerr.CodeHandlerSetup, "setup_client_facing: "+h.Name(), err))
			_ = clientRaw.Close()
			m.killBoth()
			return
		}
	}

	sockets := msgsock.NewConnSockets(clientSock)

	fwdClientToServer := &forwarder.Forwarder{
		ConnID: m.ConnID, Listen: msgsock.Client, Send: msgsock.Server,
		Sockets: sockets, Locals: locals, Handlers: m.Handlers, Result: resultClient,
		Display: m.Display, ServerAddr: m.ServerAddr, ReadSize: m.ReadSize, Ctx: m.Ctx,
	}
	fwdServerToClient := &forwarder.Forwarder{
		ConnID: m.ConnID, Listen: msgsock.Server, Send: msgsock.Client,
		Sockets: sockets, Locals: locals, Handlers: m.Handlers, Result: resultServer,
		Display: m.Display, ServerAddr: m.ServerAddr, ReadSize: m.ReadSize, Ctx: m.Ctx,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		fwdClientToServer.Run()
	}()

	select {
	case <-sockets.ServerConnected():
	case <-m.Ctx.Done():
		sockets.CloseAll()
		wg.Wait()
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		fwdServerToClient.Run()
	}()

	wg.Wait()
	sockets.CloseAll()
}

func (m *Manager) killBoth() {
	m.Display <- display.NewKill(msgsock.Key(m.ConnID, msgsock.Client))
	m.Display <- display.NewKill(msgsock.Key(m.ConnID, msgsock.Server))
}

func (m *Manager) reportErr(summary string, err error) {
	m.Display <- display.NewErr(summary, fmt.Sprintf("connection %d: %v", m.ConnID, err))
}
