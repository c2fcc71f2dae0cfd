package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// envPrefix is the prefix every recognized environment variable carries,
// per spec §6 ("GOSSIP_P2P_ADDR", "GOSSIP_VISUALIZER__BIND_ADDR").
const envPrefix = "GOSSIP_"

// checkConfigFilePermissions returns ErrInsecurePermissions if a config
// file grants any permission to group or others. Config files can carry bootstrap peer addresses, which is
// topology an operator may not want world-readable.
func checkConfigFilePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil // file access errors are handled by the caller
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		return fmt.Errorf("%w: %s has mode %04o, expected 0600 — fix with: chmod 600 %s", ErrInsecurePermissions, path, mode, path)
	}
	return nil
}

// Load builds a Config by merging, in order: built-in defaults, the TOML
// file at path (if it exists — its absence is not an error, since a node
// can run entirely on defaults and env vars), then GOSSIP_*-prefixed
// environment variables. Later sources win.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := checkConfigFilePermissions(path); err != nil {
			return Config{}, err
		}
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if os.IsNotExist(err) {
				// No file on disk: defaults plus env vars only.
			} else {
				return Config{}, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
			}
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnvOverrides overlays GOSSIP_*-prefixed environment variables onto
// cfg. Unrecognized GOSSIP_* variables are ignored rather than rejected, so
// that a future field addition does not break an existing deployment's env.
func applyEnvOverrides(cfg *Config) error {
	get := func(name string) (string, bool) {
		return os.LookupEnv(envPrefix + name)
	}

	if v, ok := get("IDENTITY_PATH"); ok {
		cfg.IdentityPath = v
	}
	if v, ok := get("P2P_ADDR"); ok {
		cfg.P2PAddr = v
	}
	if v, ok := get("BOOTSTRAP_PEERS"); ok {
		cfg.BootstrapPeers = splitAddrList(v)
	}
	if v, ok := get("GOSSIP_INTERVAL_MS"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: GOSSIP_GOSSIP_INTERVAL_MS=%q", ErrBadEnvValue, v)
		}
		cfg.GossipIntervalMs = n
	}
	if v, ok := get("GOSSIP_FACTOR"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: GOSSIP_GOSSIP_FACTOR=%q", ErrBadEnvValue, v)
		}
		cfg.GossipFactor = n
	}
	if v, ok := get("NODE_TTL_MS"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: GOSSIP_NODE_TTL_MS=%q", ErrBadEnvValue, v)
		}
		cfg.NodeTTLMs = n
	}
	if v, ok := get("CLEANUP_INTERVAL_MS"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: GOSSIP_CLEANUP_INTERVAL_MS=%q", ErrBadEnvValue, v)
		}
		cfg.CleanupIntervalMs = n
	}
	if v, ok := get("COMMUNITY_ID"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%w: GOSSIP_COMMUNITY_ID=%q", ErrBadEnvValue, v)
		}
		cfg.CommunityID = uint32(n)
	}
	if v, ok := get("VISUALIZER__BIND_ADDR"); ok {
		cfg.Visualizer.BindAddr = v
	}
	return nil
}

// splitAddrList parses a comma-separated list of socket addresses, as a
// bootstrap_peers env override would carry one ("a:1,b:2") since shells
// don't pass TOML arrays.
func splitAddrList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
