// Package engine implements the gossip state machine described in spec
// §4.4: self-emitted telemetry on a timer, last-writer-wins merge of
// inbound gossip, TTL-based pruning, and fan-out forwarding, all driven by
// a single select loop with no internal locking.
package engine

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/shurlinet/gossipnode/internal/identity"
	"github.com/shurlinet/gossipnode/internal/metrics"
	"github.com/shurlinet/gossipnode/internal/transport"
	"github.com/shurlinet/gossipnode/internal/wire"
)

// telemetryPeriodMs is the period of the sine wave a node emits about
// itself, in milliseconds: the emitted value is
// 100 + 50*sin(2*pi*(t mod telemetryPeriodMs)/telemetryPeriodMs).
const telemetryPeriodMs = 10000

// Engine owns the gossip protocol state: node_info, known_peers, and
// active_peer_addrs. All of it is touched only from Run's goroutine;
// readers outside the engine observe it exclusively through Snapshot.
type Engine struct {
	id  *identity.Identity
	cfg Config

	transport *transport.Transport
	log       *slog.Logger
	m         *metrics.Metrics

	Snapshot *SnapshotCell
	Anim     *AnimationBus

	nodeInfo        map[wire.NodeId]wire.NodeInfo
	knownPeers      map[wire.NodeId]string
	activePeerAddrs map[string]struct{}
}

// New builds an Engine bound to tr for sending/receiving gossip traffic.
// cfg is normalized (zero fields filled with defaults) before use.
func New(id *identity.Identity, cfg Config, tr *transport.Transport, log *slog.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		id:              id,
		cfg:             cfg.Normalize(),
		transport:       tr,
		log:             log.With("component", "engine"),
		m:               m,
		Snapshot:        NewSnapshotCell(),
		Anim:            NewAnimationBus(),
		nodeInfo:        make(map[wire.NodeId]wire.NodeInfo),
		knownPeers:      make(map[wire.NodeId]string),
		activePeerAddrs: make(map[string]struct{}),
	}
}

// Run drives the gossip state machine until ctx is canceled. It is the
// only goroutine that ever mutates the engine's maps.
func (e *Engine) Run(ctx context.Context) error {
	// The gossip timer's first tick is immediate (spec §4.4): a freshly
	// started node emits its own telemetry right away rather than waiting a
	// full interval before it is visible to anyone.
	gossipTicker := time.NewTicker(e.cfg.gossipInterval())
	defer gossipTicker.Stop()
	cleanupTicker := time.NewTicker(e.cfg.cleanupInterval())
	defer cleanupTicker.Stop()

	self := e.id.NodeID()
	e.publishSnapshot(&self)
	e.onGossipTick(ctx)

	for {
		select {
		case <-ctx.Done():
			e.Anim.Close()
			return nil

		case <-gossipTicker.C:
			e.onGossipTick(ctx)

		case <-cleanupTicker.C:
			e.onCleanupTick()

		case inbound := <-e.transport.Inbound:
			e.onInbound(ctx, inbound)

		case ev := <-e.transport.Events:
			e.onConnectionEvent(ev)
		}
	}
}

func (e *Engine) onGossipTick(ctx context.Context) {
	self := e.id.NodeID()
	now := nowMs()
	value := 100 + 50*math.Sin(float64(now%telemetryPeriodMs)/telemetryPeriodMs*2*math.Pi)

	payload := wire.GossipPayload{
		Telemetry:   wire.TelemetryData{TimestampMs: now, Value: value},
		CommunityID: e.cfg.CommunityID,
	}
	signed := e.id.Sign(payload)

	e.nodeInfo[self] = wire.NodeInfo{Telemetry: payload.Telemetry, CommunityID: payload.CommunityID}
	e.m.GossipTicksTotal.Inc()
	e.publishSnapshot(&self)

	targets := selectFanOut(knownPeerAddrs(e.knownPeers), "", e.cfg.GossipFactor)
	e.m.FanOutSize.Observe(float64(len(targets)))
	for _, addr := range targets {
		e.transport.Send(ctx, transport.Command{PeerAddr: addr, Message: signed})
	}

	// Bootstrap peers are poked on every tick regardless of fan-out
	// selection, so a freshly-started node with no known_peers yet still
	// reaches the network it was configured to join.
	for _, addr := range e.cfg.BootstrapPeers {
		e.transport.Send(ctx, transport.Command{PeerAddr: addr, Message: signed})
	}
}

func (e *Engine) onCleanupTick() {
	now := nowMs()
	ttl := e.cfg.NodeTTLMs
	self := e.id.NodeID()

	var pruned []wire.NodeId
	for id, info := range e.nodeInfo {
		if id == self {
			continue
		}
		if ageMs(now, info.Telemetry.TimestampMs) > ttl {
			pruned = append(pruned, id)
		}
	}
	if len(pruned) == 0 {
		return
	}
	for _, id := range pruned {
		delete(e.nodeInfo, id)
		delete(e.knownPeers, id)
	}
	e.m.NodesPrunedTotal.Add(float64(len(pruned)))
	e.publishSnapshot(&self)
}

// ageMs returns how old a reading is, saturating at zero for
// timestamps that claim to be from the future (clock skew, or a forged
// timestamp) rather than underflowing to a huge unsigned age.
func ageMs(now, timestampMs uint64) uint64 {
	if timestampMs >= now {
		return 0
	}
	return now - timestampMs
}

func (e *Engine) onInbound(ctx context.Context, in transport.InboundMessage) {
	self := e.id.NodeID()

	if err := identity.Verify(in.Message); err != nil {
		e.log.Warn("discarding message with invalid signature", "peer_addr", in.PeerAddr, "error", err)
		e.m.InboundTotal.WithLabelValues("bad_signature").Inc()
		return
	}

	originator := in.Message.Originator
	if originator == self {
		e.m.InboundTotal.WithLabelValues("self").Inc()
		return
	}

	// Look up which NodeId, if any, known_peers currently attributes
	// in.PeerAddr to, before that binding is overwritten below. This is the
	// sending hop, as distinct from the message's originator, and is what
	// the animation event attributes incoming gossip to.
	peerNodeID, peerKnown := e.reverseKnownPeer(in.PeerAddr)

	existing, had := e.nodeInfo[originator]
	isNew := !had || in.Message.Message.Telemetry.TimestampMs > existing.Telemetry.TimestampMs

	// The address a message just arrived from always updates known_peers,
	// even when the message itself is stale by LWW: routing information is
	// taken at face value from the most recent sender, not gated on
	// telemetry freshness.
	e.knownPeers[originator] = in.PeerAddr

	if !isNew {
		e.m.InboundTotal.WithLabelValues("stale").Inc()
		return
	}

	e.nodeInfo[originator] = wire.NodeInfo{
		Telemetry:   in.Message.Message.Telemetry,
		CommunityID: in.Message.Message.CommunityID,
	}
	e.m.InboundTotal.WithLabelValues("new").Inc()
	e.m.NodeInfoCount.Set(float64(len(e.nodeInfo)))

	if peerKnown {
		e.Anim.Publish(peerNodeID)
	}
	e.publishSnapshot(&self)

	targets := selectFanOut(knownPeerAddrs(e.knownPeers), in.PeerAddr, e.cfg.GossipFactor)
	e.m.FanOutSize.Observe(float64(len(targets)))
	for _, addr := range targets {
		e.transport.Send(ctx, transport.Command{PeerAddr: addr, Message: in.Message})
	}
}

// reverseKnownPeer finds the NodeId, if any, that known_peers currently
// binds to addr. Used to attribute an inbound message to the peer that
// forwarded it rather than the message's originator.
func (e *Engine) reverseKnownPeer(addr string) (wire.NodeId, bool) {
	for id, peerAddr := range e.knownPeers {
		if peerAddr == addr {
			return id, true
		}
	}
	return wire.NodeId{}, false
}

func (e *Engine) onConnectionEvent(ev transport.ConnectionEvent) {
	_, had := e.activePeerAddrs[ev.PeerAddr]
	switch ev.Kind {
	case transport.PeerConnected:
		if had {
			return
		}
		e.activePeerAddrs[ev.PeerAddr] = struct{}{}
	case transport.PeerDisconnected:
		if !had {
			return
		}
		delete(e.activePeerAddrs, ev.PeerAddr)
	}
	self := e.id.NodeID()
	e.publishSnapshot(&self)
}

func (e *Engine) publishSnapshot(self *wire.NodeId) {
	nodes := make(map[wire.NodeId]wire.NodeInfo, len(e.nodeInfo))
	for id, info := range e.nodeInfo {
		nodes[id] = info
	}
	conns := make([]wire.NodeId, 0, len(e.activePeerAddrs))
	for addr := range e.activePeerAddrs {
		for id, peerAddr := range e.knownPeers {
			if peerAddr == addr {
				conns = append(conns, id)
				break
			}
		}
	}
	id := *self
	e.Snapshot.Set(wire.NetworkState{SelfID: &id, Nodes: nodes, ActiveConnections: conns})
}

func nowMs() uint64 {
	return uint64(time.Now().UnixMilli())
}
