// Copyright (c) 2024 The alsanna authors. MIT License.

// Command alsanna is alsanna's entry point: it parses flags into a Config,
// builds the certificate authority, the handler pipeline, the UI
// Coordinator, and the Acceptor, and runs until shutdown.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dulaku/alsanna/acceptor"
	"github.com/dulaku/alsanna/alog"
	"github.com/dulaku/alsanna/config"
	"github.com/dulaku/alsanna/handler"
	"github.com/dulaku/alsanna/handler/ldaphandler"
	"github.com/dulaku/alsanna/handler/tlshandler"
	"github.com/dulaku/alsanna/leafca"
	"github.com/dulaku/alsanna/logger/level"
	"github.com/dulaku/alsanna/ui"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	alog.SetLevel(level.Parse(cfg.LogLevel))

	var authority *leafca.Authority
	if !cfg.StaticServername {
		authority, err = leafca.New(cfg.ServCert, cfg.ServKey, "certs")
		if err != nil {
			alog.Errorf("building certificate authority: %v", err)
			return 1
		}
	}

	stack, err := handler.Build(cfg.Handlers, handler.PipelineConfig{
		ReadSize: cfg.ReadSize,
		TLS: tlshandler.Config{
			ServCert:         cfg.ServCert,
			ServKey:          cfg.ServKey,
			ClientCert:       cfg.ClientCert,
			ClientKey:        cfg.ClientKey,
			ServerName:       cfg.ServerName,
			StaticServername: cfg.StaticServername,
		},
		LDAP: ldaphandler.Config{
			MinWidth: cfg.LDAPMinWidth,
			MaxWidth: cfg.LDAPMaxWidth,
		},
		Authority: authority,
	})
	if err != nil {
		alog.Errorf("building handler pipeline: %v", err)
		return 1
	}

	coord := ui.New(ui.Config{
		Editor:            cfg.Editor,
		PassClient:        cfg.PassClient,
		InterceptServer:   cfg.InterceptServer,
		ClientKeypress:    cfg.InterceptClientKeypress,
		ServerKeypress:    cfg.InterceptServerKeypress,
		ClientColor:       cfg.ClientColor,
		ServerColor:       cfg.ServerColor,
		ErrorColor:        cfg.ErrorColor,
		NotificationColor: cfg.NotificationColor,
	})
	go coord.Run()
	go coord.HandleSignals()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		if err := coord.RunKeystrokes(stop); err != nil {
			alog.Warnf("keystroke capture: %v", err)
		}
	}()

	acc := acceptor.New(acceptor.Config{
		ListenIP:       cfg.ListenIP,
		ListenPort:     cfg.ListenPort,
		ServerIP:       cfg.ServerIP,
		ServerPort:     cfg.ServerPort,
		MaxConnections: cfg.MaxConnections,
		ReadSize:       cfg.ReadSize,
		Handlers:       stack,
		Display:        coord.Channel,
	})

	if err := acc.Run(context.Background()); err != nil {
		return 1
	}
	return 0
}
