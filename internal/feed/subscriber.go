package feed

import (
	"context"
	"log/slog"

	"github.com/shurlinet/gossipnode/internal/engine"
	"github.com/shurlinet/gossipnode/internal/metrics"
	"github.com/shurlinet/gossipnode/internal/wire"
)

// sender abstracts the one operation a subscriber needs from a transport:
// write one already-encoded message. Implemented by *wsConn in server.go;
// kept minimal here so the subscription state machine can be tested
// without a real WebSocket.
type sender interface {
	Send(msg []byte) error
}

// subscription drives one observer's lifecycle per spec §4.5: wait for a
// self_id-bearing snapshot, send it, then stream deltas and animation
// events until the peer closes, a send fails, or ctx is canceled.
type subscription struct {
	snapshot *engine.SnapshotCell
	anim     *engine.AnimationBus
	log      *slog.Logger
	m        *metrics.Metrics
	out      sender
}

func newSubscription(snapshot *engine.SnapshotCell, anim *engine.AnimationBus, log *slog.Logger, m *metrics.Metrics, out sender) *subscription {
	return &subscription{snapshot: snapshot, anim: anim, log: log, m: m, out: out}
}

// run blocks until the subscription terminates. closed is signaled by the
// transport's reader goroutine when the peer sends a WebSocket close
// frame; a read error on that side is treated the same way.
func (s *subscription) run(ctx context.Context, closed <-chan struct{}) error {
	lastSent, err := s.awaitInitialSnapshot(ctx, closed)
	if err != nil {
		return err
	}

	animCh, animDropped, unsubscribe := s.anim.Subscribe()
	defer unsubscribe()

	_, changed := s.snapshot.Get()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-closed:
			s.log.Info("subscriber sent close frame")
			return nil

		case <-changed:
			next, nextChanged := s.snapshot.Get()
			changed = nextChanged
			if next.SelfID == nil {
				continue
			}
			if err := s.sendDeltas(lastSent, next); err != nil {
				return err
			}
			lastSent = next

		case id, ok := <-animCh:
			if !ok {
				s.log.Info("animation bus closed, ending subscription")
				return nil
			}
			if n := animDropped(); n > 0 {
				s.log.Warn("animation events dropped for lagging subscriber", "dropped", n)
			}
			if err := s.sendAnimation(id); err != nil {
				return err
			}
		}
	}
}

// awaitInitialSnapshot blocks until the snapshot cell holds a self_id, then
// sends it and returns it as the delta baseline.
func (s *subscription) awaitInitialSnapshot(ctx context.Context, closed <-chan struct{}) (wire.NetworkState, error) {
	for {
		state, changed := s.snapshot.Get()
		if state.SelfID != nil {
			buf, err := encodeSnapshot(state)
			if err != nil {
				return wire.NetworkState{}, err
			}
			if err := s.out.Send(buf); err != nil {
				return wire.NetworkState{}, err
			}
			return state, nil
		}
		select {
		case <-ctx.Done():
			return wire.NetworkState{}, ctx.Err()
		case <-closed:
			return wire.NetworkState{}, errSubscriberClosed
		case <-changed:
		}
	}
}

func (s *subscription) sendDeltas(lastSent, next wire.NetworkState) error {
	for _, d := range calculateDelta(lastSent, next) {
		buf, err := encodeUpdate(d)
		if err != nil {
			s.log.Error("failed to encode update", "event", d.event, "error", err)
			continue
		}
		if err := s.out.Send(buf); err != nil {
			return err
		}
		s.m.FeedDeltasTotal.WithLabelValues(d.event).Inc()
	}
	return nil
}

func (s *subscription) sendAnimation(from wire.NodeId) error {
	buf, err := encodeUpdate(delta{event: EventAnimateEdge, data: animateEdgeData{FromPeer: from}})
	if err != nil {
		return err
	}
	if err := s.out.Send(buf); err != nil {
		return err
	}
	s.m.FeedDeltasTotal.WithLabelValues(EventAnimateEdge).Inc()
	return nil
}
