package wire

import (
	"math"
	"testing"
)

func sampleMessage() SignedMessage {
	var m SignedMessage
	m.Message.Telemetry.TimestampMs = 1234567890123
	m.Message.Telemetry.Value = -12.5
	m.Message.CommunityID = 7
	for i := range m.Originator {
		m.Originator[i] = byte(i)
	}
	for i := range m.Signature {
		m.Signature[i] = byte(255 - i)
	}
	return m
}

func TestEncodeDecodeSignedMessageRoundTrip(t *testing.T) {
	want := sampleMessage()
	buf := EncodeSignedMessage(want)
	if len(buf) != SignedMessageSize {
		t.Fatalf("encoded length = %d, want %d", len(buf), SignedMessageSize)
	}
	got, err := DecodeSignedMessage(buf)
	if err != nil {
		t.Fatalf("DecodeSignedMessage: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestDecodeSignedMessageTruncated(t *testing.T) {
	buf := EncodeSignedMessage(sampleMessage())
	if _, err := DecodeSignedMessage(buf[:len(buf)-1]); err != ErrTruncated {
		t.Fatalf("got err %v, want ErrTruncated", err)
	}
}

func TestEncodePayloadIsDeterministic(t *testing.T) {
	p := GossipPayload{
		Telemetry:   TelemetryData{TimestampMs: 42, Value: math.Pi},
		CommunityID: 99,
	}
	a := EncodePayload(p)
	b := EncodePayload(p)
	if string(a) != string(b) {
		t.Fatal("EncodePayload is not deterministic")
	}
	if len(a) != payloadSize {
		t.Fatalf("payload length = %d, want %d", len(a), payloadSize)
	}
}

func TestEncodePayloadFieldOrderAndWidth(t *testing.T) {
	p := GossipPayload{
		Telemetry:   TelemetryData{TimestampMs: 1, Value: 0},
		CommunityID: 0x01020304,
	}
	buf := EncodePayload(p)
	// community_id occupies the last 4 bytes, little-endian.
	if buf[16] != 0x04 || buf[17] != 0x03 || buf[18] != 0x02 || buf[19] != 0x01 {
		t.Fatalf("community_id not encoded little-endian at expected offset: % x", buf[16:20])
	}
}

func TestNodeIdTextRoundTrip(t *testing.T) {
	var id NodeId
	for i := range id {
		id[i] = byte(i * 3)
	}
	text, err := id.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	var got NodeId
	if err := got.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if got != id {
		t.Fatalf("round trip mismatch: got %v, want %v", got, id)
	}
	if len(id.Short()) != 8 {
		t.Fatalf("Short() length = %d, want 8 hex chars", len(id.Short()))
	}
}

func TestNetworkStateClone(t *testing.T) {
	id := NodeId{1}
	s := NetworkState{
		SelfID: &id,
		Nodes: map[NodeId]NodeInfo{
			id: {Telemetry: TelemetryData{TimestampMs: 10}},
		},
		ActiveConnections: []NodeId{id},
	}
	clone := s.Clone()
	clone.Nodes[id] = NodeInfo{Telemetry: TelemetryData{TimestampMs: 99}}
	clone.ActiveConnections[0] = NodeId{2}
	*clone.SelfID = NodeId{9}

	if s.Nodes[id].Telemetry.TimestampMs != 10 {
		t.Fatal("Clone shares the Nodes map with the original")
	}
	if s.ActiveConnections[0] != id {
		t.Fatal("Clone shares the ActiveConnections slice with the original")
	}
	if *s.SelfID != id {
		t.Fatal("Clone shares the SelfID pointer with the original")
	}
}
