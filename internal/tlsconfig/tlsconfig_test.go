package tlsconfig

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTestPKI generates a throwaway CA and a leaf signed by it, DER
// encoded, and writes them plus the leaf's key to dir. Mirrors the shape
// the real PKI tooling (out of scope here) is expected to produce.
func writeTestPKI(t *testing.T, dir string) (caPath, certPath, keyPath string) {
	t.Helper()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate ca key: %v", err)
	}
	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
	if err != nil {
		t.Fatalf("create ca cert: %v", err)
	}
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		t.Fatalf("parse ca cert: %v", err)
	}

	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate leaf key: %v", err)
	}
	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: ServerName},
		DNSNames:     []string{ServerName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, caCert, &leafKey.PublicKey, caKey)
	if err != nil {
		t.Fatalf("create leaf cert: %v", err)
	}
	leafKeyDER, err := x509.MarshalPKCS8PrivateKey(leafKey)
	if err != nil {
		t.Fatalf("marshal leaf key: %v", err)
	}

	caPath = filepath.Join(dir, "ca.cert")
	certPath = filepath.Join(dir, "node.cert")
	keyPath = filepath.Join(dir, "node.key")
	if err := os.WriteFile(caPath, caDER, 0600); err != nil {
		t.Fatalf("write ca cert: %v", err)
	}
	if err := os.WriteFile(certPath, leafDER, 0600); err != nil {
		t.Fatalf("write leaf cert: %v", err)
	}
	if err := os.WriteFile(keyPath, leafKeyDER, 0600); err != nil {
		t.Fatalf("write leaf key: %v", err)
	}
	return caPath, certPath, keyPath
}

func TestLoadBuildsServerAndClientConfigs(t *testing.T) {
	dir := t.TempDir()
	caPath, certPath, keyPath := writeTestPKI(t, dir)

	m, err := Load(caPath, certPath, keyPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	server := m.Server()
	if len(server.Certificates) != 1 {
		t.Fatal("server config missing leaf certificate")
	}
	if server.ClientAuth != tls.RequireAndVerifyClientCert {
		t.Fatalf("server ClientAuth = %v, want RequireAndVerifyClientCert", server.ClientAuth)
	}
	if len(server.NextProtos) != 1 || server.NextProtos[0] != ALPNProtocol {
		t.Fatalf("server NextProtos = %v, want [%s]", server.NextProtos, ALPNProtocol)
	}

	client := m.Client()
	if client.ServerName != ServerName {
		t.Fatalf("client ServerName = %q, want %q", client.ServerName, ServerName)
	}
	if client.RootCAs == nil {
		t.Fatal("client config missing root CA pool")
	}
	if len(client.NextProtos) != 1 || client.NextProtos[0] != ALPNProtocol {
		t.Fatalf("client NextProtos = %v, want [%s]", client.NextProtos, ALPNProtocol)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, certPath, keyPath := writeTestPKI(t, dir)
	if _, err := Load(filepath.Join(dir, "missing.cert"), certPath, keyPath); err == nil {
		t.Fatal("Load accepted a missing CA file")
	}
}

func TestLoadCorruptCert(t *testing.T) {
	dir := t.TempDir()
	caPath, _, keyPath := writeTestPKI(t, dir)
	badCert := filepath.Join(dir, "bad.cert")
	if err := os.WriteFile(badCert, []byte("not a certificate"), 0600); err != nil {
		t.Fatalf("write bad cert: %v", err)
	}
	if _, err := Load(caPath, badCert, keyPath); err == nil {
		t.Fatal("Load accepted a corrupt node cert")
	}
}
