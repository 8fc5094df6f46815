// Copyright (c) 2024 The alsanna authors. MIT License.

package leafca_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dulaku/alsanna/leafca"
)

// writeTestCA generates a self-signed CA certificate and key pair on disk
// for use as --serv_cert/--serv_key in tests.
func writeTestCA(t *testing.T, dir string) (certPath, keyPath string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating CA key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "alsanna-test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(1, 0, 0),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("signing CA certificate: %v", err)
	}

	certPath = filepath.Join(dir, "ca.cert")
	keyPath = filepath.Join(dir, "ca.key")

	if err := os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644); err != nil {
		t.Fatalf("writing CA cert: %v", err)
	}
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}), 0o600); err != nil {
		t.Fatalf("writing CA key: %v", err)
	}
	return certPath, keyPath
}

func TestLeafForIsIdempotentAndVerifiesAgainstCA(t *testing.T) {
	dir := t.TempDir()
	caCert, caKey := writeTestCA(t, dir)

	auth, err := leafca.New(caCert, caKey, filepath.Join(dir, "certs"))
	if err != nil {
		t.Fatalf("leafca.New: %v", err)
	}

	cert1, key1, err := auth.LeafFor("example.test")
	if err != nil {
		t.Fatalf("LeafFor: %v", err)
	}
	cert2, key2, err := auth.LeafFor("example.test")
	if err != nil {
		t.Fatalf("LeafFor (second call): %v", err)
	}
	if cert1 != cert2 || key1 != key2 {
		t.Fatalf("expected idempotent paths, got (%s,%s) then (%s,%s)", cert1, key1, cert2, key2)
	}

	leafPEM, err := os.ReadFile(cert1)
	if err != nil {
		t.Fatalf("reading leaf cert: %v", err)
	}
	block, _ := pem.Decode(leafPEM)
	if block == nil {
		t.Fatal("expected a PEM block in leaf cert file")
	}
	leaf, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parsing leaf cert: %v", err)
	}

	caPEM, _ := os.ReadFile(caCert)
	caBlock, _ := pem.Decode(caPEM)
	ca, err := x509.ParseCertificate(caBlock.Bytes)
	if err != nil {
		t.Fatalf("parsing CA cert: %v", err)
	}

	if err := leaf.CheckSignatureFrom(ca); err != nil {
		t.Fatalf("leaf certificate does not verify against CA: %v", err)
	}
	if leaf.Subject.CommonName != "example.test" {
		t.Errorf("expected CN example.test, got %q", leaf.Subject.CommonName)
	}
	wantSANs := map[string]bool{"example.test": false, "*.example.test": false}
	for _, san := range leaf.DNSNames {
		if _, ok := wantSANs[san]; ok {
			wantSANs[san] = true
		}
	}
	for san, found := range wantSANs {
		if !found {
			t.Errorf("expected SAN %q in leaf certificate, got %v", san, leaf.DNSNames)
		}
	}
}

func TestLeafForDifferentHostnamesGetDistinctCaches(t *testing.T) {
	dir := t.TempDir()
	caCert, caKey := writeTestCA(t, dir)

	auth, err := leafca.New(caCert, caKey, filepath.Join(dir, "certs"))
	if err != nil {
		t.Fatalf("leafca.New: %v", err)
	}

	cert1, _, err := auth.LeafFor("a.test")
	if err != nil {
		t.Fatalf("LeafFor(a.test): %v", err)
	}
	cert2, _, err := auth.LeafFor("b.test")
	if err != nil {
		t.Fatalf("LeafFor(b.test): %v", err)
	}
	if cert1 == cert2 {
		t.Fatalf("expected distinct cert paths for distinct hostnames, got %q twice", cert1)
	}
}
