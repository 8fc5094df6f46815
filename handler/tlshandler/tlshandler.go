// Copyright (c) 2024 The alsanna authors. MIT License.

// Package tlshandler implements alsanna's TLS-terminating handler: on the
// client-facing leg it negotiates a server-mode handshake, either
// presenting the operator CA certificate as-is (--static_servername) or
// minting a leaf certificate per SNI hostname via the Certificate
// Authority (handler/../leafca); on the server-facing leg it negotiates a
// non-verifying client handshake against the real upstream, optionally
// presenting an mTLS client certificate.
//
// Grounded on original_source/handler_tls.py's Handler.setup_listener
// (SNI callback wired as ssl.SSLContext.set_servername_callback) and
// Handler.setup_sender (unverified client context with optional client
// cert). Go's crypto/tls exposes the SNI hook directly as
// tls.Config.GetCertificate, so there is no need to reimplement the
// servername-inspection dance handler_tls.py does manually.
//
// Go's crypto/tls performs the handshake synchronously inside the first
// Read/Write call, blocking on the underlying connection until it
// completes, unlike Python's non-blocking ssl module which surfaces
// SSLWantReadError/SSLWantWriteError for the caller to retry on. That
// retry-error surface ("handshake wants read"/"handshake wants write")
// therefore has no analogue to report here: IsRetryable is always false
// because the blocking handshake already absorbs the retry loop
// internally.
package tlshandler

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"

	"github.com/dulaku/alsanna/leafca"
	"github.com/dulaku/alsanna/msgsock"
)

const hostnameLocalsKey = "tlshandler.hostname"

var errNonByteMessage = errors.New("tlshandler: expected []byte message from lower socket")

// Config is the handler's static, startup-time configuration.
type Config struct {
	ServCert         string
	ServKey          string
	ClientCert       string
	ClientKey        string
	ServerName       string
	StaticServername bool
	ReadSize         int

	// Authority mints leaf certificates per SNI hostname. Required unless
	// StaticServername is set.
	Authority *leafca.Authority
}

// Handler is the registry-facing TLS handler.
type Handler struct {
	cfg Config

	staticCert *tls.Certificate
	clientPair *tls.Certificate
}

// New constructs the TLS handler, loading the static operator certificate
// (if --static_servername) and the optional mTLS client pair up front so
// startup fails fast on a bad cert/key pair rather than on first connection.
func New(cfg Config) (*Handler, error) {
	h := &Handler{cfg: cfg}

	if cfg.StaticServername {
		pair, err := tls.LoadX509KeyPair(cfg.ServCert, cfg.ServKey)
		if err != nil {
			return nil, fmt.Errorf("tlshandler: loading static server certificate: %w", err)
		}
		h.staticCert = &pair
	} else if cfg.Authority == nil {
		return nil, errors.New("tlshandler: a Certificate Authority is required unless --static_servername is set")
	}

	if cfg.ClientCert != "" && cfg.ClientKey != "" {
		pair, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("tlshandler: loading mTLS client certificate: %w", err)
		}
		h.clientPair = &pair
	}

	return h, nil
}

func (h *Handler) Name() string { return "tls" }

// SetupClientFacing negotiates the server-mode handshake. With a static
// servername the operator CA cert is presented unconditionally; otherwise
// GetCertificate fires per-handshake with the client's SNI hostname,
// recording it into locals and minting/fetching a leaf via the CA.
func (h *Handler) SetupClientFacing(lower msgsock.Socket, locals *msgsock.ConnLocals) (msgsock.Socket, error) {
	conn := newSocketConn(lower)

	tlsCfg := &tls.Config{}
	if h.staticCert != nil {
		tlsCfg.Certificates = []tls.Certificate{*h.staticCert}
	} else {
		tlsCfg.GetCertificate = func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
			hostname := hello.ServerName
			if hostname == "" {
				hostname = h.cfg.ServerName
			}
			locals.Set(hostnameLocalsKey, hostname)

			certPath, keyPath, err := h.cfg.Authority.LeafFor(hostname)
			if err != nil {
				return nil, err
			}
			pair, err := tls.LoadX509KeyPair(certPath, keyPath)
			if err != nil {
				return nil, err
			}
			return &pair, nil
		}
	}

	tlsConn := tls.Server(conn, tlsCfg)
	return newMessageSocket(tlsConn, lower, h.cfg.ReadSize), nil
}

// SetupServerFacing negotiates the client-mode handshake against the real
// upstream. Name and chain verification are disabled; SNI is
// set to the hostname recorded by the client-facing handshake (or the
// configured default if the client-facing side never ran, e.g. in tests).
func (h *Handler) SetupServerFacing(lower msgsock.Socket, locals *msgsock.ConnLocals) (msgsock.Socket, error) {
	hostname := h.cfg.ServerName
	if v, ok := locals.Get(hostnameLocalsKey); ok {
		if s, ok := v.(string); ok {
			hostname = s
		}
	}

	conn := newSocketConn(lower)
	tlsCfg := &tls.Config{
		InsecureSkipVerify: true,
		ServerName:         hostname,
	}
	if h.clientPair != nil {
		tlsCfg.Certificates = []tls.Certificate{*h.clientPair}
	}

	tlsConn := tls.Client(conn, tlsCfg)
	return newMessageSocket(tlsConn, lower, h.cfg.ReadSize), nil
}

// IsRetryable is always false; see the package doc comment.
func (h *Handler) IsRetryable(error) bool { return false }

var _ msgsock.Handler = (*Handler)(nil)

// messageSocket adapts a *tls.Conn back into msgsock.Socket so upper
// handlers (rawbytes, ldaphandler) see the same []byte-message contract
// they would over a raw transport. Connect is forwarded to the wrapped
// lower socket: the handler stack is built before the underlying
// transport is dialed, and crypto/tls only performs
// its handshake lazily on the first Read/Write, so wrapping ahead of the
// real connect is safe as long as Connect still reaches the raw socket.
type messageSocket struct {
	conn     *tls.Conn
	lower    msgsock.Socket
	readSize int
}

func newMessageSocket(conn *tls.Conn, lower msgsock.Socket, readSize int) *messageSocket {
	if readSize <= 0 {
		readSize = 4096
	}
	return &messageSocket{conn: conn, lower: lower, readSize: readSize}
}

func (s *messageSocket) Connect(addr string) error {
	return s.lower.Connect(addr)
}

func (s *messageSocket) Close() error { return s.conn.Close() }

func (s *messageSocket) Recv() (msgsock.Message, error) {
	buf := make([]byte, s.readSize)
	n, err := s.conn.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (s *messageSocket) Send(m msgsock.Message) error {
	b, ok := m.([]byte)
	if !ok {
		return errNonByteMessage
	}
	_, err := s.conn.Write(b)
	return err
}
