// Copyright (c) 2024 The alsanna authors. MIT License.

// Package ui implements the UI Coordinator: the single
// process-wide agent owning the terminal and the editor subprocess,
// serializing print+edit across every connection, and owning the two
// intercept toggle keys.
//
// Grounded on original_source/ui_utils.py's print_loop/handle_toggles and
// cfg.py's global terminal/intercept state, restructured
// design notes into explicit owned state rather than module globals.
package ui

import (
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/dulaku/alsanna/alog"
	"github.com/dulaku/alsanna/console"
	"github.com/dulaku/alsanna/display"
	"github.com/dulaku/alsanna/msgsock"
)

// Config is the UI's static, startup-time configuration: the flags the
// Coordinator itself owns (editor, intercept defaults, keypresses, colours).
type Config struct {
	Editor string

	PassClient      bool // true disables default client interception
	InterceptServer bool // true enables server interception

	ClientKeypress string
	ServerKeypress string

	ClientColor       int
	ServerColor       int
	ErrorColor        int
	NotificationColor int
}

// Coordinator owns the terminal, the editor subprocess, the intercept
// toggles, and the forwarding queue table.
type Coordinator struct {
	cfg Config

	Channel chan display.Msg // the shared display channel every Forwarder/ConnMgr sends on

	registryMu sync.Mutex
	registry   map[msgsock.QueueKey]chan string

	interceptMu sync.Mutex
	intercept   struct{ client, server bool }

	keys *keystrokeState
}

// New constructs the Coordinator and binds the configured colours
// (--client_color et al.).
func New(cfg Config) *Coordinator {
	console.SetRole(console.RoleClient, cfg.ClientColor)
	console.SetRole(console.RoleServer, cfg.ServerColor)
	console.SetRole(console.RoleError, cfg.ErrorColor)
	console.SetRole(console.RoleNotification, cfg.NotificationColor)

	c := &Coordinator{
		cfg:      cfg,
		Channel:  make(chan display.Msg, 64),
		registry: make(map[msgsock.QueueKey]chan string),
	}
	c.intercept.client = !cfg.PassClient
	c.intercept.server = cfg.InterceptServer
	return c
}

// Run processes the display channel until it is closed. It is the single
// goroutine that ever touches the registry, the intercept flags (read-
// side), and the editor subprocess, which is what gives alsanna its
// serialized-interactive-editing guarantee.
func (c *Coordinator) Run() {
	for msg := range c.Channel {
		switch msg.Kind {
		case display.Register:
			c.registryMu.Lock()
			c.registry[msg.Key] = msg.Result
			c.registryMu.Unlock()
		case display.Kill:
			c.registryMu.Lock()
			delete(c.registry, msg.Key)
			c.registryMu.Unlock()
		case display.Err:
			c.printErr(msg.Summary, msg.Detail)
		case display.Note:
			console.Fprintln(os.Stderr, console.RoleNotification, msg.Text)
		case display.Payload:
			c.handlePayload(msg)
		}
	}
}

// handlePayload implements the "processing of a message tag":
// determine direction, consult intercept state, colourise/print, edit if
// configured, and always post a result back (or drop it if the direction
// already died).
func (c *Coordinator) handlePayload(msg display.Msg) {
	dir := directionOf(msg.Key)
	role := console.RoleServer
	intercepted := c.interceptFor(msgsock.Server)
	if dir == msgsock.Client {
		role = console.RoleClient
		intercepted = c.interceptFor(msgsock.Client)
	}

	console.Fprintln(os.Stdout, role, msg.Text)

	result := msg.Text
	if intercepted {
		edited, err := c.edit(msg.Text)
		if err != nil {
			c.printErr("editor invocation failed", err.Error())
			// : editor failure is treated as "not edited".
		} else {
			result = edited
		}
	}

	c.registryMu.Lock()
	ch, ok := c.registry[msg.Key]
	c.registryMu.Unlock()
	if !ok {
		return // direction already died; drop
	}
	ch <- result
}

// edit writes text to a temp file, runs the configured editor against it,
// and reads the file back as the new printable form. It suspends keystroke
// capture for the duration via suspendKeystrokes/resumeKeystrokes
// (keystrokes.go), since the editor and the keystroke reader cannot both
// own the terminal at once.
func (c *Coordinator) edit(text string) (string, error) {
	f, err := os.CreateTemp("", "alsanna-*.txt")
	if err != nil {
		return "", err
	}
	tmpPath := f.Name()
	defer os.Remove(tmpPath)

	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	c.suspendKeystrokes()
	defer c.resumeKeystrokes()

	cmd := exec.Command(c.cfg.Editor, tmpPath)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", err
	}

	edited, err := os.ReadFile(tmpPath)
	if err != nil {
		return "", err
	}
	return string(edited), nil
}

func (c *Coordinator) printErr(summary, detail string) {
	if detail != "" {
		console.Fprintln(os.Stderr, console.RoleError, fmt.Sprintf("%s: %s", summary, detail))
	} else {
		console.Fprintln(os.Stderr, console.RoleError, summary)
	}
	alog.Errorf("%s: %s", summary, detail)
}

func (c *Coordinator) interceptFor(dir msgsock.Direction) bool {
	c.interceptMu.Lock()
	defer c.interceptMu.Unlock()
	if dir == msgsock.Client {
		return c.intercept.client
	}
	return c.intercept.server
}

func directionOf(key msgsock.QueueKey) msgsock.Direction {
	s := string(key)
	if len(s) >= len(msgsock.Client) && s[len(s)-len(msgsock.Client):] == string(msgsock.Client) {
		return msgsock.Client
	}
	return msgsock.Server
}
