// Copyright (c) 2024 The alsanna authors. MIT License.

package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// Role names the four colourised output slots alsanna exposes as flags:
// client- and server-originated payloads, errors, and notifications.
type Role uint8

const (
	RoleClient Role = iota
	RoleServer
	RoleError
	RoleNotification
)

var (
	mu    sync.RWMutex
	slots = map[Role]*color.Color{}
)

// SetRole binds a Role to an 8-bit (0-255) ANSI colour code, producing the
// `ESC[38;5;<n>m ... ESC[0m` sequence the configured colour flags need.
// fatih/color joins every Attribute passed to New with ";", so
// New(38, 5, n) yields exactly that sequence. Colour is forced on, so the
// sequence is emitted even when the output is not a terminal.
func SetRole(r Role, code int) {
	mu.Lock()
	defer mu.Unlock()
	c := color.New(color.Attribute(38), color.Attribute(5), color.Attribute(code))
	c.EnableColor()
	slots[r] = c
}

func colorFor(r Role) *color.Color {
	mu.RLock()
	defer mu.RUnlock()
	return slots[r]
}

// Sprint renders text wrapped in the role's colour sequence, or unmodified
// if the role was never bound (e.g. in tests).
func Sprint(r Role, text string) string {
	if c := colorFor(r); c != nil {
		return c.Sprint(text)
	}
	return text
}

// Fprintln writes the role-coloured text plus a trailing newline to w.
func Fprintln(w io.Writer, r Role, text string) {
	if c := colorFor(r); c != nil {
		_, _ = c.Fprintln(w, text)
		return
	}
	_, _ = fmt.Fprintln(w, text)
}
