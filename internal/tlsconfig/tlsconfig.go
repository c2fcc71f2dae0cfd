// Package tlsconfig turns the three files of a node's PKI material (CA
// certificate, leaf certificate, leaf key, all DER-encoded) into the
// crypto/tls configs the transport hands to quic-go for its server and
// client roles.
package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"time"
)

// ALPNProtocol is the single application protocol both sides must offer.
// A peer that does not offer it is rejected during the handshake.
const ALPNProtocol = "gossip/1.0"

// ServerKeepAlive is the idle keep-alive period advertised by the server
// side of the QUIC engine.
const ServerKeepAlive = 10 * time.Second

// ServerName is the SNI value every leaf certificate shares by convention,
// so clients dial with a fixed name regardless of which peer they reach.
const ServerName = "localhost"

// Material is the parsed form of the three PKI input files.
type Material struct {
	cert tls.Certificate
	ca   *x509.CertPool
}

// Load reads caPath, certPath and keyPath (all DER-encoded) and parses them
// into a Material ready to build server and client configs from. Any
// missing file, parse failure, or unusable key surfaces as an *Error.
func Load(caPath, certPath, keyPath string) (*Material, error) {
	caDER, err := os.ReadFile(caPath)
	if err != nil {
		return nil, wrap("read ca cert", err)
	}
	ca, err := x509.ParseCertificate(caDER)
	if err != nil {
		return nil, wrap("parse ca cert", err)
	}

	certDER, err := os.ReadFile(certPath)
	if err != nil {
		return nil, wrap("read node cert", err)
	}
	if _, err := x509.ParseCertificate(certDER); err != nil {
		return nil, wrap("parse node cert", err)
	}

	keyDER, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, wrap("read node key", err)
	}
	key, err := parsePrivateKeyDER(keyDER)
	if err != nil {
		return nil, wrap("parse node key", err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(ca)

	return &Material{
		cert: tls.Certificate{
			Certificate: [][]byte{certDER},
			PrivateKey:  key,
			Leaf:        mustLeaf(certDER),
		},
		ca: pool,
	}, nil
}

func mustLeaf(der []byte) *x509.Certificate {
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return nil
	}
	return leaf
}

// parsePrivateKeyDER tries the key encodings x509.CreateCertificate's
// counterparts produce, in order of how the PKI tooling is expected to
// emit them.
func parsePrivateKeyDER(der []byte) (any, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	return nil, errUnusableKey
}

// Server builds the *tls.Config the transport's QUIC listener uses: it
// presents m's leaf certificate and requires (and verifies) a client
// certificate chaining to m's CA.
func (m *Material) Server() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{m.cert},
		ClientCAs:    m.ca,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		NextProtos:   []string{ALPNProtocol},
		MinVersion:   tls.VersionTLS13,
	}
}

// Client builds the *tls.Config used to dial peers: it presents m's leaf
// certificate and trusts only peers whose certificate chains to m's CA.
func (m *Material) Client() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{m.cert},
		RootCAs:      m.ca,
		ServerName:   ServerName,
		NextProtos:   []string{ALPNProtocol},
		MinVersion:   tls.VersionTLS13,
	}
}
