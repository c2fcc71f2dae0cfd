// Package identity manages a node's Ed25519 keypair: generation, loading
// from (or persisting to) disk, and signing/verifying gossip payloads with
// the canonical wire codec.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/shurlinet/gossipnode/internal/wire"
)

// Identity is the immutable cryptographic identity of a node: a keypair
// used to sign outgoing telemetry, and the NodeId (public key) that
// identifies it to others.
type Identity struct {
	priv   ed25519.PrivateKey
	nodeID wire.NodeId
}

// Generate creates a new identity from a random 32-byte seed.
func Generate() (*Identity, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("identity: generate seed: %w", err)
	}
	return fromSeed(seed), nil
}

// LoadOrCreate loads a 32-byte secret seed from path, or generates one and
// persists it atomically if the file does not exist. Any length other than
// 32 bytes is rejected with ErrInvalidKeyFile. Other I/O errors are
// surfaced as-is (wrapped).
func LoadOrCreate(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := checkKeyFilePermissions(path); err != nil {
			return nil, err
		}
		if len(data) != ed25519.SeedSize {
			return nil, fmt.Errorf("%w: %s has %d bytes, want %d", ErrInvalidKeyFile, path, len(data), ed25519.SeedSize)
		}
		return fromSeed(data), nil
	case os.IsNotExist(err):
		id, genErr := Generate()
		if genErr != nil {
			return nil, genErr
		}
		if err := persistAtomic(path, id.priv.Seed()); err != nil {
			return nil, err
		}
		return id, nil
	default:
		return nil, fmt.Errorf("identity: read %s: %w", path, err)
	}
}

func fromSeed(seed []byte) *Identity {
	priv := ed25519.NewKeyFromSeed(seed)
	var id wire.NodeId
	copy(id[:], priv.Public().(ed25519.PublicKey))
	return &Identity{priv: priv, nodeID: id}
}

// NodeID returns this identity's public key.
func (id *Identity) NodeID() wire.NodeId {
	return id.nodeID
}

// Sign computes the canonical bytes of payload, signs them with this
// identity's private key, and returns a SignedMessage whose originator is
// this identity's public key.
func (id *Identity) Sign(payload wire.GossipPayload) wire.SignedMessage {
	sig := ed25519.Sign(id.priv, wire.EncodePayload(payload))
	msg := wire.SignedMessage{Message: payload, Originator: id.nodeID}
	copy(msg.Signature[:], sig)
	return msg
}

// Verify re-encodes msg.Message and checks the signature against
// msg.Originator. It fails if the originator is not a valid public key or
// the signature does not cover the canonical payload bytes.
func Verify(msg wire.SignedMessage) error {
	pub := ed25519.PublicKey(msg.Originator[:])
	if len(pub) != ed25519.PublicKeySize {
		return wire.ErrBadOriginator
	}
	if !ed25519.Verify(pub, wire.EncodePayload(msg.Message), msg.Signature[:]) {
		return wire.ErrBadSignature
	}
	return nil
}

// checkKeyFilePermissions returns an error if an identity key file grants
// any permission to group or others; skipped on Windows where Unix mode bits do
// not apply.
func checkKeyFilePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("identity: stat %s: %w", path, err)
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		return fmt.Errorf("identity: key file %s has insecure permissions %04o (expected 0600); fix with: chmod 600 %s", path, mode, path)
	}
	return nil
}

// persistAtomic writes seed to path via a temp file + rename so a crash
// mid-write never leaves a truncated (and therefore rejected) key file.
func persistAtomic(path string, seed []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".identity-*.tmp")
	if err != nil {
		return fmt.Errorf("identity: create temp key file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("identity: chmod temp key file: %w", err)
	}
	if _, err := tmp.Write(seed); err != nil {
		tmp.Close()
		return fmt.Errorf("identity: write temp key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("identity: close temp key file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("identity: rename into place: %w", err)
	}
	return nil
}
