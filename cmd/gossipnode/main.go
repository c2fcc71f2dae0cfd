package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shurlinet/gossipnode/internal/config"
	"github.com/shurlinet/gossipnode/internal/engine"
	"github.com/shurlinet/gossipnode/internal/feed"
	"github.com/shurlinet/gossipnode/internal/identity"
	"github.com/shurlinet/gossipnode/internal/metrics"
	"github.com/shurlinet/gossipnode/internal/tlsconfig"
	"github.com/shurlinet/gossipnode/internal/transport"
	"github.com/shurlinet/gossipnode/internal/watchdog"
)

// Set via -ldflags at build time.
var version = "dev"

// PKI file layout is fixed relative to the working directory (spec §6).
const (
	caCertPath   = "certs/ca.cert"
	nodeCertPath = "certs/node.cert"
	nodeKeyPath  = "certs/node.key"

	configPath = "config.toml"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))
	log := slog.Default()

	if err := run(log); err != nil {
		log.Error("fatal startup error", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	id, err := identity.LoadOrCreate(cfg.IdentityPath)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	log.Info("identity loaded", "node_id", id.NodeID().Short())

	tlsMaterial, err := tlsconfig.Load(caCertPath, nodeCertPath, nodeKeyPath)
	if err != nil {
		return fmt.Errorf("load tls material: %w", err)
	}

	m := metrics.New(version, runtime.Version())

	tr, err := transport.New(transport.Config{
		BindAddr:       cfg.P2PAddr,
		BootstrapPeers: cfg.BootstrapPeers,
		TLS:            tlsMaterial,
	}, log, m)
	if err != nil {
		return fmt.Errorf("start transport: %w", err)
	}
	log.Info("Transport service started", "addr", tr.Addr())

	eng := engine.New(id, engine.Config{
		GossipIntervalMs:  cfg.GossipIntervalMs,
		GossipFactor:      cfg.GossipFactor,
		NodeTTLMs:         cfg.NodeTTLMs,
		CleanupIntervalMs: cfg.CleanupIntervalMs,
		CommunityID:       cfg.CommunityID,
		BootstrapPeers:    cfg.BootstrapPeers,
	}, tr, log, m)
	log.Info("Engine service started", "node_id", id.NodeID().Short(), "gossip_interval_ms", cfg.GossipIntervalMs)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tr.Run(gctx) })
	g.Go(func() error { return eng.Run(gctx) })

	var feedSrv *feed.Server
	if cfg.Visualizer.Enabled() {
		feedSrv = feed.NewServer(cfg.Visualizer.BindAddr, eng.Snapshot, eng.Anim, log, m)
		g.Go(func() error { return feedSrv.Run(gctx) })
		log.Info("Feed service started", "addr", cfg.Visualizer.BindAddr)
	}

	checks := []watchdog.HealthCheck{
		{Name: "transport-bound", Check: func() error {
			if tr.Addr() == "" {
				return fmt.Errorf("transport has no bound address")
			}
			return nil
		}},
		{Name: "engine-running", Check: func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		}},
	}
	if feedSrv != nil {
		checks = append(checks, watchdog.HealthCheck{Name: "feed-listening", Check: func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		}})
	}

	if err := watchdog.Ready(); err != nil {
		log.Warn("systemd notify failed", "error", err)
	}
	go watchdog.Run(gctx, watchdog.Config{Interval: 30 * time.Second}, checks)

	log.Info("gossipnode running", "version", version, "p2p_addr", tr.Addr())

	err = g.Wait()
	watchdog.Stopping()
	if err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
