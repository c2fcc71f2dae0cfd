package feed

import "github.com/shurlinet/gossipnode/internal/wire"

// calculateDelta derives the ordered list of updates that take lastSent to
// next: node mutations (added/updated/removed, any relative order) first,
// then connection-status mutations (disconnects before connects, mirroring
// the original visualizer's delta derivation).
func calculateDelta(lastSent, next wire.NetworkState) []delta {
	var out []delta

	for id, newInfo := range next.Nodes {
		oldInfo, existed := lastSent.Nodes[id]
		switch {
		case !existed:
			out = append(out, delta{event: EventNodeAdded, data: nodeAddedData{ID: id, Info: newInfo}})
		case oldInfo != newInfo:
			out = append(out, delta{event: EventNodeUpdated, data: nodeUpdatedData{ID: id, Info: newInfo}})
		}
	}
	for id := range lastSent.Nodes {
		if _, still := next.Nodes[id]; !still {
			out = append(out, delta{event: EventNodeRemoved, data: nodeRemovedData{ID: id}})
		}
	}

	oldConn := toSet(lastSent.ActiveConnections)
	newConn := toSet(next.ActiveConnections)
	for id := range oldConn {
		if !newConn[id] {
			out = append(out, delta{event: EventConnectionStatus, data: connectionStatusData{PeerID: id, IsConnected: false}})
		}
	}
	for id := range newConn {
		if !oldConn[id] {
			out = append(out, delta{event: EventConnectionStatus, data: connectionStatusData{PeerID: id, IsConnected: true}})
		}
	}

	return out
}

func toSet(ids []wire.NodeId) map[wire.NodeId]bool {
	s := make(map[wire.NodeId]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}
