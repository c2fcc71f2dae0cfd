package feed

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shurlinet/gossipnode/internal/engine"
	"github.com/shurlinet/gossipnode/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// maxReadSize bounds inbound frames from a subscriber. The feed is
	// effectively send-only; subscribers only ever need to send a close
	// frame, so this is generous padding, not a real protocol limit.
	maxReadSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the observation feed's HTTP/WebSocket front end: one upgraded
// connection per subscriber, each driven by its own subscription (spec
// §4.5). It has no state of its own beyond what it needs to accept
// connections; all gossip state lives in the engine's snapshot cell and
// animation bus.
type Server struct {
	addr     string
	snapshot *engine.SnapshotCell
	anim     *engine.AnimationBus
	log      *slog.Logger
	m        *metrics.Metrics
}

// NewServer returns a feed server that will listen on addr once Run.
func NewServer(addr string, snapshot *engine.SnapshotCell, anim *engine.AnimationBus, log *slog.Logger, m *metrics.Metrics) *Server {
	return &Server{
		addr:     addr,
		snapshot: snapshot,
		anim:     anim,
		log:      log.With("component", "feed"),
		m:        m,
	}
}

// Run starts the HTTP server and blocks until ctx is canceled, at which
// point it shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/metrics", s.m.Handler())

	httpServer := &http.Server{Addr: s.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("observation feed listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	ws := &wsConn{conn: conn}
	closed := make(chan struct{})

	s.m.FeedSubscribers.Inc()
	defer s.m.FeedSubscribers.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go ws.readPump(closed)
	go ws.pingPump(ctx)

	sub := newSubscription(s.snapshot, s.anim, s.log, s.m, ws)
	if err := sub.run(ctx, closed); err != nil {
		s.log.Debug("subscription ended", "error", err)
	}
	ws.close()
}

// wsConn adapts a *websocket.Conn to the sender interface in
// subscriber.go. gorilla/websocket requires all writes to a connection to be
// serialized, so every write (data frames and pings alike) takes writeMu.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (w *wsConn) Send(msg []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, msg)
}

func (w *wsConn) close() {
	w.conn.Close()
}

// readPump does nothing with inbound application data (the feed is
// send-only) but must keep reading so pong frames are processed and a
// client-sent close frame is observed. It closes the closed channel exactly
// once, on any read error including a normal close handshake.
func (w *wsConn) readPump(closed chan struct{}) {
	defer close(closed)
	w.conn.SetReadLimit(maxReadSize)
	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := w.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// pingPump sends a periodic ping so the connection's liveness is verified
// even during a quiet period with no deltas to send.
func (w *wsConn) pingPump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.writeMu.Lock()
			w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := w.conn.WriteMessage(websocket.PingMessage, nil)
			w.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
