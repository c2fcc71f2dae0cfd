// Package feed implements the observation feed: on subscribe it sends a
// full snapshot, then derives and streams incremental deltas from
// successive engine snapshots, plus animation events, over JSON/WebSocket.
package feed

import (
	"encoding/json"

	"github.com/shurlinet/gossipnode/internal/wire"
)

// Event names used in the "event" field of an update payload.
const (
	EventNodeAdded        = "node_added"
	EventNodeUpdated      = "node_updated"
	EventNodeRemoved      = "node_removed"
	EventConnectionStatus = "connection_status"
	EventAnimateEdge      = "animate_edge"
)

// envelope is the top-level {"type": "...", "payload": ...} wire shape.
type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// snapshotPayload mirrors wire.NetworkState for JSON purposes: self_id is
// rendered as hex text, nodes as a hex-keyed object.
type snapshotPayload struct {
	SelfID            wire.NodeId                  `json:"self_id"`
	Nodes             map[wire.NodeId]wire.NodeInfo `json:"nodes"`
	ActiveConnections []wire.NodeId                 `json:"active_connections"`
}

// update is the {"event": "...", "data": ...} shape nested under an
// "update"-typed envelope.
type update struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type nodeAddedData struct {
	ID   wire.NodeId   `json:"id"`
	Info wire.NodeInfo `json:"info"`
}

type nodeUpdatedData struct {
	ID   wire.NodeId   `json:"id"`
	Info wire.NodeInfo `json:"info"`
}

type nodeRemovedData struct {
	ID wire.NodeId `json:"id"`
}

type connectionStatusData struct {
	PeerID      wire.NodeId `json:"peer_id"`
	IsConnected bool        `json:"is_connected"`
}

type animateEdgeData struct {
	FromPeer wire.NodeId `json:"from_peer"`
}

// delta is one derived change, tagged by its event name.
type delta struct {
	event string
	data  any
}

func encodeSnapshot(s wire.NetworkState) ([]byte, error) {
	return json.Marshal(envelope{
		Type: "snapshot",
		Payload: snapshotPayload{
			SelfID:            *s.SelfID,
			Nodes:             s.Nodes,
			ActiveConnections: s.ActiveConnections,
		},
	})
}

func encodeUpdate(d delta) ([]byte, error) {
	return json.Marshal(envelope{
		Type:    "update",
		Payload: update{Event: d.event, Data: d.data},
	})
}
