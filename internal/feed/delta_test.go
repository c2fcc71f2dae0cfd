package feed

import (
	"testing"

	"github.com/shurlinet/gossipnode/internal/wire"
)

func nid(b byte) wire.NodeId {
	var id wire.NodeId
	id[0] = b
	return id
}

func TestCalculateDeltaNodeAdded(t *testing.T) {
	a, b := nid(1), nid(2)
	lastSent := wire.NetworkState{SelfID: &a, Nodes: map[wire.NodeId]wire.NodeInfo{}}
	next := wire.NetworkState{
		SelfID: &a,
		Nodes: map[wire.NodeId]wire.NodeInfo{
			b: {Telemetry: wire.TelemetryData{TimestampMs: 1, Value: 1}},
		},
	}

	got := calculateDelta(lastSent, next)
	if len(got) != 1 || got[0].event != EventNodeAdded {
		t.Fatalf("got %+v, want single node_added delta", got)
	}
}

func TestCalculateDeltaNodeUpdated(t *testing.T) {
	a, b := nid(1), nid(2)
	lastSent := wire.NetworkState{SelfID: &a, Nodes: map[wire.NodeId]wire.NodeInfo{
		b: {Telemetry: wire.TelemetryData{TimestampMs: 1, Value: 1}},
	}}
	next := wire.NetworkState{SelfID: &a, Nodes: map[wire.NodeId]wire.NodeInfo{
		b: {Telemetry: wire.TelemetryData{TimestampMs: 2, Value: 1}},
	}}

	got := calculateDelta(lastSent, next)
	if len(got) != 1 || got[0].event != EventNodeUpdated {
		t.Fatalf("got %+v, want single node_updated delta", got)
	}
}

func TestCalculateDeltaNoChangeProducesNoDelta(t *testing.T) {
	a, b := nid(1), nid(2)
	info := wire.NodeInfo{Telemetry: wire.TelemetryData{TimestampMs: 1, Value: 1}}
	lastSent := wire.NetworkState{SelfID: &a, Nodes: map[wire.NodeId]wire.NodeInfo{b: info}}
	next := wire.NetworkState{SelfID: &a, Nodes: map[wire.NodeId]wire.NodeInfo{b: info}}

	if got := calculateDelta(lastSent, next); len(got) != 0 {
		t.Fatalf("got %+v, want no deltas for an unchanged snapshot", got)
	}
}

func TestCalculateDeltaNodeRemoved(t *testing.T) {
	a, b := nid(1), nid(2)
	lastSent := wire.NetworkState{SelfID: &a, Nodes: map[wire.NodeId]wire.NodeInfo{
		b: {Telemetry: wire.TelemetryData{TimestampMs: 1, Value: 1}},
	}}
	next := wire.NetworkState{SelfID: &a, Nodes: map[wire.NodeId]wire.NodeInfo{}}

	got := calculateDelta(lastSent, next)
	if len(got) != 1 || got[0].event != EventNodeRemoved {
		t.Fatalf("got %+v, want single node_removed delta", got)
	}
	data, ok := got[0].data.(nodeRemovedData)
	if !ok || data.ID != b {
		t.Fatalf("node_removed data = %+v, want id %v", got[0].data, b)
	}
}

func TestCalculateDeltaConnectionStatusOrderedAfterNodes(t *testing.T) {
	a, b, c := nid(1), nid(2), nid(3)
	lastSent := wire.NetworkState{
		SelfID:            &a,
		Nodes:             map[wire.NodeId]wire.NodeInfo{},
		ActiveConnections: []wire.NodeId{b},
	}
	next := wire.NetworkState{
		SelfID: &a,
		Nodes: map[wire.NodeId]wire.NodeInfo{
			c: {Telemetry: wire.TelemetryData{TimestampMs: 1, Value: 1}},
		},
		ActiveConnections: []wire.NodeId{c},
	}

	got := calculateDelta(lastSent, next)
	if len(got) != 3 {
		t.Fatalf("got %d deltas, want 3 (1 node_added, 2 connection_status)", len(got))
	}
	if got[0].event != EventNodeAdded {
		t.Fatalf("first delta = %s, want node_added (node mutations must precede connection mutations)", got[0].event)
	}
	for _, d := range got[1:] {
		if d.event != EventConnectionStatus {
			t.Fatalf("delta %+v after node mutations is not connection_status", d)
		}
	}
}

func TestCalculateDeltaSoundness(t *testing.T) {
	// Applying every emitted delta to lastSent must reconstruct next
	// exactly (spec §8, "delta soundness").
	a, b, c, d := nid(1), nid(2), nid(3), nid(4)
	lastSent := wire.NetworkState{
		SelfID: &a,
		Nodes: map[wire.NodeId]wire.NodeInfo{
			b: {Telemetry: wire.TelemetryData{TimestampMs: 1, Value: 1}},
			c: {Telemetry: wire.TelemetryData{TimestampMs: 1, Value: 2}},
		},
		ActiveConnections: []wire.NodeId{b},
	}
	next := wire.NetworkState{
		SelfID: &a,
		Nodes: map[wire.NodeId]wire.NodeInfo{
			b: {Telemetry: wire.TelemetryData{TimestampMs: 2, Value: 9}}, // updated
			d: {Telemetry: wire.TelemetryData{TimestampMs: 1, Value: 3}}, // added
			// c removed
		},
		ActiveConnections: []wire.NodeId{d},
	}

	deltas := calculateDelta(lastSent, next)

	applied := wire.NetworkState{SelfID: lastSent.SelfID, Nodes: map[wire.NodeId]wire.NodeInfo{}}
	for k, v := range lastSent.Nodes {
		applied.Nodes[k] = v
	}
	activeSet := toSet(lastSent.ActiveConnections)

	for _, delta := range deltas {
		switch delta.event {
		case EventNodeAdded:
			data := delta.data.(nodeAddedData)
			applied.Nodes[data.ID] = data.Info
		case EventNodeUpdated:
			data := delta.data.(nodeUpdatedData)
			applied.Nodes[data.ID] = data.Info
		case EventNodeRemoved:
			data := delta.data.(nodeRemovedData)
			delete(applied.Nodes, data.ID)
		case EventConnectionStatus:
			data := delta.data.(connectionStatusData)
			if data.IsConnected {
				activeSet[data.PeerID] = true
			} else {
				delete(activeSet, data.PeerID)
			}
		}
	}
	var gotConns []wire.NodeId
	for id := range activeSet {
		gotConns = append(gotConns, id)
	}
	applied.ActiveConnections = gotConns

	if len(applied.Nodes) != len(next.Nodes) {
		t.Fatalf("reconstructed %d nodes, want %d", len(applied.Nodes), len(next.Nodes))
	}
	for id, info := range next.Nodes {
		if applied.Nodes[id] != info {
			t.Fatalf("reconstructed node %v = %+v, want %+v", id, applied.Nodes[id], info)
		}
	}
	if len(activeSet) != len(toSet(next.ActiveConnections)) {
		t.Fatalf("reconstructed active_connections %v, want %v", gotConns, next.ActiveConnections)
	}
	for id := range toSet(next.ActiveConnections) {
		if !activeSet[id] {
			t.Fatalf("reconstructed active_connections missing %v", id)
		}
	}
}
