// Copyright (c) 2024 The alsanna authors. MIT License.

// Package config parses alsanna's command-line flags into a Config struct.
// The flag surface is a fixed list; there is no config file
// or environment-variable layer, unlike the cobra+viper+go-toml wiring
// nabbar-golib/cobra offers, because this proxy has a single fixed
// invocation shape with no multi-environment deployment story to justify
// one.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// Config holds every flag value after parsing.
type Config struct {
	Handlers []string

	ListenIP   string
	ListenPort int
	ServerIP   string
	ServerPort int

	MaxConnections int
	ReadSize       int

	PassClient      bool
	InterceptServer bool

	InterceptClientKeypress string
	InterceptServerKeypress string

	Editor string

	ClientColor       int
	ServerColor       int
	ErrorColor        int
	NotificationColor int

	ServCert         string
	ServKey          string
	ClientCert       string
	ClientKey        string
	ServerName       string
	StaticServername bool

	LDAPMinWidth int
	LDAPMaxWidth int

	LogLevel string
}

// Parse builds the root command, attaches every flag, parses args, and
// returns the populated Config. args is normally os.Args[1:].
func Parse(args []string) (*Config, error) {
	cfg := &Config{}
	var handlers string

	root := &cobra.Command{
		Use:           "alsanna",
		Short:         "Interactive TCP proxy with human-in-the-loop message inspection",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Handlers = splitHandlers(handlers)
			return nil
		},
	}

	flags := root.Flags()
	flags.StringVar(&handlers, "handlers", "tls,rawbytes", "ordered handler pipeline; first is outermost transport, last supplies printable conversion")
	flags.StringVar(&cfg.ListenIP, "listen_ip", "127.0.0.1", "address to bind the listener on")
	flags.IntVar(&cfg.ListenPort, "listen_port", 3125, "port to bind the listener on")
	flags.StringVar(&cfg.ServerIP, "server_ip", "127.0.0.1", "upstream server address")
	flags.IntVar(&cfg.ServerPort, "server_port", 3125, "upstream server port")
	flags.IntVar(&cfg.MaxConnections, "max_connections", 5, "maximum concurrent connections accepted")
	flags.IntVar(&cfg.ReadSize, "read_size", 4096, "bytes requested per raw socket read")
	flags.BoolVar(&cfg.PassClient, "pass_client", false, "pass client-to-server traffic through without interception")
	flags.BoolVar(&cfg.InterceptServer, "intercept_server", false, "intercept server-to-client traffic")
	flags.StringVar(&cfg.InterceptClientKeypress, "intercept_client_keypress", "c", "keystroke toggling client-side interception")
	flags.StringVar(&cfg.InterceptServerKeypress, "intercept_server_keypress", "s", "keystroke toggling server-side interception")
	flags.StringVar(&cfg.Editor, "editor", "nano", "external editor command for message tampering")
	flags.IntVar(&cfg.ClientColor, "client_color", 13, "ANSI 256-colour code for client-originated payloads")
	flags.IntVar(&cfg.ServerColor, "server_color", 14, "ANSI 256-colour code for server-originated payloads")
	flags.IntVar(&cfg.ErrorColor, "error_color", 9, "ANSI 256-colour code for errors")
	flags.IntVar(&cfg.NotificationColor, "notification_color", 11, "ANSI 256-colour code for notifications")
	flags.StringVar(&cfg.ServCert, "serv_cert", "./tls_cert.pem", "operator CA certificate presented to clients")
	flags.StringVar(&cfg.ServKey, "serv_key", "./tls_key.pem", "private key corresponding to --serv_cert")
	flags.StringVar(&cfg.ClientCert, "client_cert", "", "optional mTLS client certificate for the server-facing leg")
	flags.StringVar(&cfg.ClientKey, "client_key", "", "private key corresponding to --client_cert")
	flags.StringVar(&cfg.ServerName, "server_name", "example.com", "default hostname used when SNI is absent")
	flags.BoolVar(&cfg.StaticServername, "static_servername", false, "present --serv_cert/--serv_key as-is, ignoring SNI")
	flags.IntVar(&cfg.LDAPMinWidth, "ldap_min_width", 60, "minimum column width for the LDAP printable mangle")
	flags.IntVar(&cfg.LDAPMaxWidth, "ldap_max_width", 120, "maximum column width for the LDAP printable mangle")
	flags.StringVar(&cfg.LogLevel, "log_level", "info", "minimum level for process lifecycle diagnostics (critical, fatal, error, warning, info, debug)")

	if args == nil {
		args = []string{} // cobra falls back to os.Args[1:] when given nil
	}
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}
	return cfg, nil
}

func splitHandlers(list string) []string {
	if list == "" {
		return nil
	}
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
