// Copyright (c) 2024 The alsanna authors. MIT License.

// Package acceptor implements the Acceptor: binds the
// listener with address reuse, accepts connections in a loop, and hands
// each one to a fresh Connection Manager with a monotonically increasing
// connection id.
//
// Grounded on original_source/proxy.py's main accept loop.
package acceptor

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/dulaku/alsanna/alerr"
	"github.com/dulaku/alsanna/alog"
	"github.com/dulaku/alsanna/connmgr"
	"github.com/dulaku/alsanna/display"
	"github.com/dulaku/alsanna/msgsock"
	"github.com/dulaku/alsanna/transport"
)

// Config is the Acceptor's static configuration.
type Config struct {
	ListenIP   string
	ListenPort int
	ServerIP   string
	ServerPort int

	MaxConnections int
	ReadSize       int

	Handlers []msgsock.Handler
	Display  chan<- display.Msg
}

// Acceptor binds the listener and dispatches accepted connections.
type Acceptor struct {
	cfg    Config
	nextID int64
}

// New constructs the Acceptor.
func New(cfg Config) *Acceptor {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 5
	}
	return &Acceptor{cfg: cfg}
}

// Run binds and accepts until ctx is cancelled or a fatal listener error
// occurs. It returns nil on a clean, ctx-driven shutdown and a
// non-nil error on a fatal bind/accept failure, after giving the UI a
// brief grace window to flush its output.
func (a *Acceptor) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", a.cfg.ListenIP, a.cfg.ListenPort)
	serverAddr := fmt.Sprintf("%s:%d", a.cfg.ServerIP, a.cfg.ServerPort)

	lc := net.ListenConfig{Control: reuseAddrControl}
	ln, err := lc.Listen(ctx, "tcp4", addr)
	if err != nil {
		a.fatal("binding listener", err)
		return err
	}
	defer ln.Close()
	alog.Infof("alsanna listening on %s, forwarding to %s", addr, serverAddr)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	sem := make(chan struct{}, a.cfg.MaxConnections)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			a.fatal("accept failed", err)
			return err
		}

		id := int(atomic.AddInt64(&a.nextID, 1) - 1)
		go func() {
			sem <- struct{}{}
			defer func() { <-sem }()

			mgr := &connmgr.Manager{
				ConnID:     id,
				ServerAddr: serverAddr,
				ReadSize:   a.cfg.ReadSize,
				Handlers:   a.cfg.Handlers,
				Display:    a.cfg.Display,
				Ctx:        ctx,
			}
			mgr.Run(transport.NewAccepted(conn, a.cfg.ReadSize))
		}()
	}
}

func (a *Acceptor) fatal(summary string, err error) {
	wrapped := alerr.Wrap(alerr.CodeListener, summary, err)
	s, d := wrapped.Detail()
	a.cfg.Display <- display.NewErr(s, d)
	alog.Errorf("%s: %v", summary, err)
	time.Sleep(200 * time.Millisecond) // grace window so the UI can flush
}

// reuseAddrControl sets SO_REUSEADDR on the listening socket.
func reuseAddrControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
