// Copyright (c) 2024 The alsanna authors. MIT License.

package ui

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"
)

// HandleSignals implements the signal policy: SIGINT and SIGTERM
// repair the terminal (restore canonical mode) then hard-kill the process,
// avoiding the half-dead terminal state a graceful shutdown could leave
// behind across the many Forwarder goroutines sharing this one process.
// It blocks until a signal arrives, so callers run it in its own goroutine.
func (c *Coordinator) HandleSignals() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	if c.keys != nil {
		_ = term.Restore(c.keys.fd, c.keys.origState)
	}
	_ = syscall.Kill(os.Getpid(), syscall.SIGKILL)
}
