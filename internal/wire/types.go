// Package wire defines the data model that crosses the boundary between a
// gossipnode and the rest of the network (and between its own actors): node
// identifiers, telemetry payloads, signed messages, and the network
// snapshot published by the engine.
package wire

import "encoding/hex"

// NodeIDSize is the length in bytes of a NodeId (an Ed25519 public key).
const NodeIDSize = 32

// SignatureSize is the length in bytes of an Ed25519 signature.
const SignatureSize = 64

// NodeId is an opaque node public key. It is cheap to copy and comparable,
// so it can be used directly as a map key.
type NodeId [NodeIDSize]byte

// String renders the full node id as lowercase hex.
func (n NodeId) String() string {
	return hex.EncodeToString(n[:])
}

// Short renders the first 4 bytes of the node id as lowercase hex, for
// logging and display where the full id would be unwieldy.
func (n NodeId) Short() string {
	return hex.EncodeToString(n[:4])
}

// IsZero reports whether n is the zero value (never a valid public key, but
// used as a sentinel before identity is loaded).
func (n NodeId) IsZero() bool {
	return n == NodeId{}
}

// MarshalText implements encoding.TextMarshaler so NodeId can be used as a
// JSON object key and as a plain JSON string value.
func (n NodeId) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *NodeId) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(b) != NodeIDSize {
		return ErrBadNodeIDLength
	}
	copy(n[:], b)
	return nil
}

// TelemetryData is the opaque-to-the-core payload a node gossips about
// itself. timestamp_ms is also its logical version for last-writer-wins.
type TelemetryData struct {
	TimestampMs uint64  `json:"timestamp_ms"`
	Value       float64 `json:"value"`
}

// GossipPayload is the unit that gets signed.
type GossipPayload struct {
	Telemetry   TelemetryData
	CommunityID uint32
}

// SignedMessage is a GossipPayload plus proof of who produced it.
type SignedMessage struct {
	Message    GossipPayload
	Originator NodeId
	Signature  [SignatureSize]byte
}

// NodeInfo is the engine-local record of a peer's latest telemetry. It is
// also embedded directly in observation-feed JSON, hence the explicit tags.
type NodeInfo struct {
	Telemetry   TelemetryData `json:"telemetry"`
	CommunityID uint32        `json:"community_id"`
}

// NetworkState is the snapshot the engine publishes for the observation
// feed to diff against. SelfID is nil only before identity is initialized.
type NetworkState struct {
	SelfID            *NodeId
	Nodes             map[NodeId]NodeInfo
	ActiveConnections []NodeId
}

// Clone returns a deep copy of s, safe to hand to a reader that outlives
// the writer's next mutation.
func (s NetworkState) Clone() NetworkState {
	out := NetworkState{
		Nodes: make(map[NodeId]NodeInfo, len(s.Nodes)),
	}
	if s.SelfID != nil {
		id := *s.SelfID
		out.SelfID = &id
	}
	for k, v := range s.Nodes {
		out.Nodes[k] = v
	}
	if len(s.ActiveConnections) > 0 {
		out.ActiveConnections = append([]NodeId(nil), s.ActiveConnections...)
	}
	return out
}
