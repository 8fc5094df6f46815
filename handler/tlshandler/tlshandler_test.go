// Copyright (c) 2024 The alsanna authors. MIT License.

package tlshandler_test

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dulaku/alsanna/handler/tlshandler"
	"github.com/dulaku/alsanna/leafca"
	"github.com/dulaku/alsanna/msgsock"
	"github.com/dulaku/alsanna/transport"
)

func newTestCA(t *testing.T, dir string) (certPath, keyPath string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating CA key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big1(),
		Subject:               pkix.Name{CommonName: "test-ca"},
		NotBefore:              time.Now().Add(-time.Hour),
		NotAfter:               time.Now().AddDate(1, 0, 0),
		IsCA:                   true,
		BasicConstraintsValid:  true,
		KeyUsage:               x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("signing CA cert: %v", err)
	}
	certPath = filepath.Join(dir, "ca.cert")
	keyPath = filepath.Join(dir, "ca.key")
	os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644)
	os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}), 0o600)
	return certPath, keyPath
}

func big1() *big.Int { return big.NewInt(1) }

func TestDynamicSNIHandshakeMintsLeafAndRecordsHostname(t *testing.T) {
	dir := t.TempDir()
	caCert, caKey := newTestCA(t, dir)

	auth, err := leafca.New(caCert, caKey, filepath.Join(dir, "certs"))
	if err != nil {
		t.Fatalf("leafca.New: %v", err)
	}

	h, err := tlshandler.New(tlshandler.Config{
		ServerName: "example.com",
		ReadSize:   4096,
		Authority:  auth,
	})
	if err != nil {
		t.Fatalf("tlshandler.New: %v", err)
	}

	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	serverLower := transport.NewAccepted(serverConn, 4096)

	locals := msgsock.NewConnLocals(1)

	serverSock, err := h.SetupClientFacing(serverLower, locals)
	if err != nil {
		t.Fatalf("SetupClientFacing: %v", err)
	}

	clientDone := make(chan error, 1)
	go func() {
		tlsCfg := &tls.Config{ServerName: "example.test", InsecureSkipVerify: true}
		conn := tls.Client(clientConn, tlsCfg)
		_, err := conn.Write([]byte("hello"))
		clientDone <- err
	}()

	msg, err := serverSock.Recv()
	if err != nil {
		t.Fatalf("server Recv: %v", err)
	}
	b, ok := msg.([]byte)
	if !ok || !bytes.Equal(b, []byte("hello")) {
		t.Fatalf("unexpected server message: %v", msg)
	}

	if err := <-clientDone; err != nil {
		t.Fatalf("client handshake/write: %v", err)
	}

	hostname, ok := locals.Get("tlshandler.hostname")
	if !ok || hostname != "example.test" {
		t.Fatalf("expected recorded hostname example.test, got %v (ok=%v)", hostname, ok)
	}

	if _, err := os.Stat(filepath.Join(dir, "certs", "example.test", "example.test.cert")); err != nil {
		t.Fatalf("expected leaf cert cached on disk: %v", err)
	}
}
