// Copyright (c) 2024 The alsanna authors. MIT License.

package config_test

import (
	"reflect"
	"testing"

	"github.com/dulaku/alsanna/config"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := config.Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := []string{"tls", "rawbytes"}
	if !reflect.DeepEqual(cfg.Handlers, want) {
		t.Errorf("Handlers = %v, want %v", cfg.Handlers, want)
	}
	if cfg.ListenIP != "127.0.0.1" || cfg.ListenPort != 3125 {
		t.Errorf("unexpected listen address %s:%d", cfg.ListenIP, cfg.ListenPort)
	}
	if cfg.MaxConnections != 5 || cfg.ReadSize != 4096 {
		t.Errorf("unexpected max_connections/read_size %d/%d", cfg.MaxConnections, cfg.ReadSize)
	}
	if cfg.PassClient {
		t.Error("expected client interception on by default (pass_client=false)")
	}
	if cfg.InterceptServer {
		t.Error("expected server interception off by default")
	}
	if cfg.InterceptClientKeypress != "c" || cfg.InterceptServerKeypress != "s" {
		t.Errorf("unexpected keypress defaults %q/%q", cfg.InterceptClientKeypress, cfg.InterceptServerKeypress)
	}
	if cfg.ClientColor != 13 || cfg.ServerColor != 14 || cfg.ErrorColor != 9 || cfg.NotificationColor != 11 {
		t.Errorf("unexpected colour defaults: %d %d %d %d", cfg.ClientColor, cfg.ServerColor, cfg.ErrorColor, cfg.NotificationColor)
	}
	if cfg.ServerName != "example.com" || cfg.StaticServername {
		t.Errorf("unexpected TLS defaults: %q static=%v", cfg.ServerName, cfg.StaticServername)
	}
	if cfg.LDAPMinWidth != 60 || cfg.LDAPMaxWidth != 120 {
		t.Errorf("unexpected LDAP width defaults %d/%d", cfg.LDAPMinWidth, cfg.LDAPMaxWidth)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestParseOverrides(t *testing.T) {
	cfg, err := config.Parse([]string{
		"--handlers=tls,ldap",
		"--listen_port=4000",
		"--pass_client",
		"--intercept_server",
		"--static_servername",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(cfg.Handlers, []string{"tls", "ldap"}) {
		t.Errorf("Handlers = %v", cfg.Handlers)
	}
	if cfg.ListenPort != 4000 {
		t.Errorf("ListenPort = %d, want 4000", cfg.ListenPort)
	}
	if !cfg.PassClient || !cfg.InterceptServer || !cfg.StaticServername {
		t.Errorf("expected all three boolean flags set, got PassClient=%v InterceptServer=%v StaticServername=%v",
			cfg.PassClient, cfg.InterceptServer, cfg.StaticServername)
	}
}
