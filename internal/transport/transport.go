package transport

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
	"golang.org/x/sync/errgroup"

	"github.com/shurlinet/gossipnode/internal/metrics"
	"github.com/shurlinet/gossipnode/internal/tlsconfig"
	"github.com/shurlinet/gossipnode/internal/wire"
)

// idleTimeout is the connection-level idle timeout; keep-alive pings (see
// tlsconfig.ServerKeepAlive) are sent well before this elapses.
const idleTimeout = 30 * time.Second

// Config configures a Transport instance.
type Config struct {
	BindAddr       string
	BootstrapPeers []string
	TLS            *tlsconfig.Material
}

// Transport is the QUIC-backed, authenticated transport described in
// spec §4.3: endpoint setup, connection caching, send/receive paths, and
// bootstrap dialing.
type Transport struct {
	cfg Config
	log *slog.Logger
	m   *metrics.Metrics

	packetConn net.PacketConn
	endpoint   *quic.Transport
	quicConfig *quic.Config

	mu    sync.Mutex
	conns map[string]*quic.Conn

	streamSem chan struct{}

	Commands chan Command
	Inbound  chan InboundMessage
	Events   chan ConnectionEvent
}

// New binds the UDP endpoint (with SO_REUSEADDR) at cfg.BindAddr and
// returns a Transport ready to Run. Bind failure is fatal, per spec §7.
func New(cfg Config, log *slog.Logger, m *metrics.Metrics) (*Transport, error) {
	lc := net.ListenConfig{Control: controlSetReuseAddr}
	pc, err := lc.ListenPacket(context.Background(), "udp", cfg.BindAddr)
	if err != nil {
		return nil, &BindError{Addr: cfg.BindAddr, Cause: err}
	}

	return &Transport{
		cfg:        cfg,
		log:        log.With("component", "transport"),
		m:          m,
		packetConn: pc,
		endpoint:   &quic.Transport{Conn: pc},
		quicConfig: &quic.Config{
			MaxIdleTimeout:        idleTimeout,
			KeepAlivePeriod:       tlsconfig.ServerKeepAlive,
			MaxIncomingStreams:    0,
			MaxIncomingUniStreams: MaxConcurrentStreams,
		},
		conns:     make(map[string]*quic.Conn),
		streamSem: make(chan struct{}, MaxConcurrentStreams),
		Commands:  make(chan Command, DefaultQueueSize),
		Inbound:   make(chan InboundMessage, DefaultQueueSize),
		Events:    make(chan ConnectionEvent, DefaultQueueSize),
	}, nil
}

// Run starts the QUIC listener, the command loop, and bootstrap dialing,
// and blocks until ctx is canceled or an unrecoverable error occurs.
func (t *Transport) Run(ctx context.Context) error {
	listener, err := t.endpoint.Listen(t.cfg.TLS.Server(), t.quicConfig)
	if err != nil {
		return &BindError{Addr: t.cfg.BindAddr, Cause: err}
	}
	t.log.Info("transport listening", "addr", t.cfg.BindAddr)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return t.acceptLoop(egCtx, listener) })
	eg.Go(func() error { return t.commandLoop(egCtx) })
	for _, addr := range t.cfg.BootstrapPeers {
		addr := addr
		eg.Go(func() error {
			t.bootstrapDial(egCtx, addr)
			return nil
		})
	}

	<-ctx.Done()
	listener.Close()
	t.packetConn.Close()
	_ = eg.Wait()
	return nil
}

// Addr returns the local address the UDP endpoint is bound to.
func (t *Transport) Addr() string {
	return t.packetConn.LocalAddr().String()
}

// Send enqueues a SendMessage command for the command loop to process.
func (t *Transport) Send(ctx context.Context, cmd Command) {
	select {
	case t.Commands <- cmd:
	case <-ctx.Done():
	}
}

func (t *Transport) commandLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-t.Commands:
			go t.send(ctx, cmd)
		}
	}
}

func (t *Transport) send(ctx context.Context, cmd Command) {
	conn, err := t.getOrDial(ctx, cmd.PeerAddr)
	if err != nil {
		t.log.Warn("send: dial failed", "peer_addr", cmd.PeerAddr, "error", err)
		t.m.SendsTotal.WithLabelValues("dial_failed").Inc()
		return
	}

	stream, err := conn.OpenUniStreamSync(ctx)
	if err != nil {
		t.log.Warn("send: open stream failed", "peer_addr", cmd.PeerAddr, "error", err)
		t.m.SendsTotal.WithLabelValues("open_stream_failed").Inc()
		return
	}

	buf := wire.EncodeSignedMessage(cmd.Message)
	if _, err := stream.Write(buf); err != nil {
		t.log.Warn("send: write failed", "peer_addr", cmd.PeerAddr, "error", &WriteStreamError{Addr: cmd.PeerAddr, Cause: err})
		t.m.SendsTotal.WithLabelValues("write_failed").Inc()
		return
	}
	if err := stream.Close(); err != nil {
		t.log.Warn("send: close stream failed", "peer_addr", cmd.PeerAddr, "error", err)
	}
	t.m.SendsTotal.WithLabelValues("ok").Inc()
	t.m.StreamBytesTotal.WithLabelValues("tx").Add(float64(len(buf)))
}

// getOrDial returns the cached connection for addr if it is still open,
// otherwise dials a fresh one and registers it.
func (t *Transport) getOrDial(ctx context.Context, addr string) (*quic.Conn, error) {
	t.mu.Lock()
	conn, ok := t.conns[addr]
	t.mu.Unlock()
	if ok && conn.Context().Err() == nil {
		return conn, nil
	}

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Cause: err}
	}

	conn, err = t.endpoint.Dial(ctx, udpAddr, t.cfg.TLS.Client(), t.quicConfig)
	if err != nil {
		t.m.ConnectionsTotal.WithLabelValues("outbound", "failed").Inc()
		return nil, &ConnectionEstablishError{Addr: addr, Cause: err}
	}
	t.m.ConnectionsTotal.WithLabelValues("outbound", "ok").Inc()
	t.registerConn(ctx, addr, conn)
	go t.watchClose(ctx, addr, conn)
	return conn, nil
}

func (t *Transport) acceptLoop(ctx context.Context, listener *quic.Listener) error {
	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			t.log.Warn("accept failed", "error", err)
			continue
		}
		t.m.ConnectionsTotal.WithLabelValues("inbound", "ok").Inc()
		addr := conn.RemoteAddr().String()
		t.registerConn(ctx, addr, conn)
		go t.watchClose(ctx, addr, conn)
		go t.handleConn(ctx, addr, conn)
	}
}

func (t *Transport) handleConn(ctx context.Context, addr string, conn *quic.Conn) {
	for {
		stream, err := conn.AcceptUniStream(ctx)
		if err != nil {
			return
		}
		select {
		case t.streamSem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		go t.readStream(ctx, addr, stream)
	}
}

func (t *Transport) readStream(ctx context.Context, addr string, stream *quic.ReceiveStream) {
	defer func() { <-t.streamSem }()

	buf, err := io.ReadAll(io.LimitReader(stream, MaxMessageSize+1))
	if err != nil {
		t.log.Warn("stream read failed", "peer_addr", addr, "error", err)
		return
	}
	if len(buf) > MaxMessageSize {
		t.log.Warn("stream exceeded max message size", "peer_addr", addr, "max", MaxMessageSize)
		return
	}

	msg, err := wire.DecodeSignedMessage(buf)
	if err != nil {
		t.log.Warn("failed to decode inbound message", "peer_addr", addr, "error", err)
		return
	}
	t.m.StreamBytesTotal.WithLabelValues("rx").Add(float64(len(buf)))

	select {
	case t.Inbound <- InboundMessage{PeerAddr: addr, Message: msg}:
	case <-ctx.Done():
	}
}

func (t *Transport) bootstrapDial(ctx context.Context, addr string) {
	if _, err := t.getOrDial(ctx, addr); err != nil {
		t.log.Warn("bootstrap dial failed", "peer_addr", addr, "error", err)
	}
}

func (t *Transport) registerConn(ctx context.Context, addr string, conn *quic.Conn) {
	t.mu.Lock()
	_, existed := t.conns[addr]
	t.conns[addr] = conn
	t.mu.Unlock()

	if !existed {
		t.m.ActiveConnections.Inc()
		t.emitEvent(ctx, ConnectionEvent{Kind: PeerConnected, PeerAddr: addr})
	}
}

// watchClose removes conn from the cache and emits PeerDisconnected once
// its context is done, i.e. once the QUIC connection is closed.
func (t *Transport) watchClose(ctx context.Context, addr string, conn *quic.Conn) {
	<-conn.Context().Done()

	t.mu.Lock()
	cur, ok := t.conns[addr]
	removed := ok && cur == conn
	if removed {
		delete(t.conns, addr)
	}
	t.mu.Unlock()

	if removed {
		t.m.ActiveConnections.Dec()
		t.emitEvent(ctx, ConnectionEvent{Kind: PeerDisconnected, PeerAddr: addr})
	}
}

func (t *Transport) emitEvent(ctx context.Context, ev ConnectionEvent) {
	select {
	case t.Events <- ev:
	case <-ctx.Done():
	}
}
