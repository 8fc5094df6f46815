// Copyright (c) 2024 The alsanna authors. MIT License.

// Package handler is the static name -> constructor registry for alsanna's
// handler pipeline.
package handler

import (
	"fmt"

	"github.com/dulaku/alsanna/handler/ldaphandler"
	"github.com/dulaku/alsanna/handler/rawbytes"
	"github.com/dulaku/alsanna/handler/tlshandler"
	"github.com/dulaku/alsanna/leafca"
	"github.com/dulaku/alsanna/msgsock"
)

// PipelineConfig carries every handler-specific flag needed to
// construct whichever handlers --handlers names.
type PipelineConfig struct {
	ReadSize int

	TLS  tlshandler.Config
	LDAP ldaphandler.Config

	// Authority is threaded into TLS.Authority for any "tls" handler
	// instance; callers build it once from --serv_cert/--serv_key.
	Authority *leafca.Authority
}

// Build constructs the ordered handler stack --handlers names, in order.
// Every handler it builds shares the one Config passed in;
// an unrecognized name is a startup-time error.
func Build(names []string, cfg PipelineConfig) ([]msgsock.Handler, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("handler: --handlers must name at least one handler")
	}

	cfg.TLS.ReadSize = cfg.ReadSize
	cfg.TLS.Authority = cfg.Authority

	var tlsHandler *tlshandler.Handler
	var stack []msgsock.Handler
	for _, name := range names {
		switch name {
		case "rawbytes":
			stack = append(stack, rawbytes.New())
		case "tls":
			h, err := tlshandler.New(cfg.TLS)
			if err != nil {
				return nil, fmt.Errorf("handler: building tls handler: %w", err)
			}
			tlsHandler = h
			stack = append(stack, h)
		case "ldap":
			ldapCfg := cfg.LDAP
			// The LDAP handler's StartTLS upgrade reuses the TLS handler's
			// wrapping logic even when "tls" isn't itself in the active
			// pipeline; build one from the same TLS config if
			// the pipeline didn't already include one.
			if tlsHandler == nil {
				h, err := tlshandler.New(cfg.TLS)
				if err == nil {
					tlsHandler = h
				}
			}
			ldapCfg.TLS = tlsHandler
			stack = append(stack, ldaphandler.New(ldapCfg))
		default:
			return nil, fmt.Errorf("handler: unknown handler %q", name)
		}
	}

	if _, ok := stack[len(stack)-1].(msgsock.Printable); !ok {
		return nil, fmt.Errorf("handler: topmost handler %q does not support printable conversion (it cannot be last in --handlers)", stack[len(stack)-1].Name())
	}

	return stack, nil
}
