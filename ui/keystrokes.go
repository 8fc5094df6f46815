// Copyright (c) 2024 The alsanna authors. MIT License.

package ui

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/term"

	"github.com/dulaku/alsanna/alog"
	"github.com/dulaku/alsanna/display"
)

// keystrokeState holds the terminal's raw-mode handle and the suspend flag
// the editor path uses to stop the reader from stealing bytes meant for
// the editor subprocess.
type keystrokeState struct {
	fd        int
	origState *term.State
	suspended atomic.Bool
}

// RunKeystrokes puts stdin into raw, non-echo mode and reads one byte at a
// time until ctx-like shutdown (stop channel closed), toggling intercept
// flags on the configured keypresses.
//
// A fixed read deadline turns each Read into a short poll instead of an
// indefinite block, which is what lets suspendKeystrokes stop new reads
// promptly when the editor is about to take the terminal -- a deliberately
// simple stand-in for whatever platform console-input API a non-POSIX
// port would need instead.
func (c *Coordinator) RunKeystrokes(stop <-chan struct{}) error {
	fd := int(os.Stdin.Fd())
	origState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("ui: entering raw terminal mode: %w", err)
	}
	c.keys = &keystrokeState{fd: fd, origState: origState}
	defer term.Restore(fd, origState)

	buf := make([]byte, 1)
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		if c.keys.suspended.Load() {
			time.Sleep(20 * time.Millisecond)
			continue
		}

		_ = os.Stdin.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, err := os.Stdin.Read(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return nil // stdin closed; shutting down
		}
		if n == 0 {
			continue
		}
		c.handleKey(buf[0])
	}
}

func (c *Coordinator) handleKey(b byte) {
	ch := string(b)
	var toggled bool

	c.interceptMu.Lock()
	switch ch {
	case c.cfg.ClientKeypress:
		c.intercept.client = !c.intercept.client
		toggled = true
	case c.cfg.ServerKeypress:
		c.intercept.server = !c.intercept.server
		toggled = true
	}
	clientOn, serverOn := c.intercept.client, c.intercept.server
	c.interceptMu.Unlock()

	if !toggled {
		return
	}
	c.Channel <- display.NewNote(toggleNote(clientOn, serverOn))
}

// toggleNote lists which sides are currently intercepted, re-emitted on
// every toggle rather than just announcing "toggled" (original_source's
// ui_utils.handle_toggles behaviour, kept per SPEC_FULL.md's supplemented
// features).
func toggleNote(clientOn, serverOn bool) string {
	var sides []string
	if clientOn {
		sides = append(sides, "client")
	}
	if serverOn {
		sides = append(sides, "server")
	}
	if len(sides) == 0 {
		return "intercepting: none"
	}
	return "intercepting: " + strings.Join(sides, ", ")
}

// suspendKeystrokes/resumeKeystrokes implement the single lock: the
// editor path sets suspended so RunKeystrokes stops issuing reads, and
// restores canonical terminal mode for the editor's own benefit.
func (c *Coordinator) suspendKeystrokes() {
	if c.keys == nil {
		return
	}
	c.keys.suspended.Store(true)
	if err := term.Restore(c.keys.fd, c.keys.origState); err != nil {
		alog.Warnf("ui: restoring terminal mode before editor: %v", err)
	}
}

func (c *Coordinator) resumeKeystrokes() {
	if c.keys == nil {
		return
	}
	if _, err := term.MakeRaw(c.keys.fd); err != nil {
		alog.Warnf("ui: re-entering raw terminal mode after editor: %v", err)
	}
	c.keys.suspended.Store(false)
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	t, ok := err.(timeout)
	return ok && t.Timeout()
}
