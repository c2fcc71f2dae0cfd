package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shurlinet/gossipnode/internal/wire"
)

func samplePayload() wire.GossipPayload {
	return wire.GossipPayload{
		Telemetry:   wire.TelemetryData{TimestampMs: 1000, Value: 42.5},
		CommunityID: 3,
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	msg := id.Sign(samplePayload())
	if msg.Originator != id.NodeID() {
		t.Fatal("signed message originator does not match identity's node id")
	}
	if err := Verify(msg); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyDetectsTamperedFields(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	tests := map[string]func(*wire.SignedMessage){
		"timestamp": func(m *wire.SignedMessage) { m.Message.Telemetry.TimestampMs++ },
		"value":     func(m *wire.SignedMessage) { m.Message.Telemetry.Value += 1 },
		"community": func(m *wire.SignedMessage) { m.Message.CommunityID++ },
		"originator": func(m *wire.SignedMessage) {
			m.Originator[0] ^= 0xff
		},
		"signature": func(m *wire.SignedMessage) {
			m.Signature[0] ^= 0xff
		},
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			msg := id.Sign(samplePayload())
			mutate(&msg)
			if err := Verify(msg); err == nil {
				t.Fatalf("Verify accepted a message tampered in field %q", name)
			}
		})
	}
}

func TestLoadOrCreateGeneratesAndPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.key")

	first, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate (create): %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat key file: %v", err)
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		t.Fatalf("key file mode = %04o, want 0600", mode)
	}

	second, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate (load): %v", err)
	}
	if first.NodeID() != second.NodeID() {
		t.Fatal("LoadOrCreate produced a different identity on the second call")
	}
}

func TestLoadOrCreateRejectsBadLength(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.key")
	if err := os.WriteFile(path, []byte("too short"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadOrCreate(path); err == nil {
		t.Fatal("LoadOrCreate accepted a key file of the wrong length")
	}
}
