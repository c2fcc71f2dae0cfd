package engine

import (
	"math/rand/v2"

	"github.com/shurlinet/gossipnode/internal/wire"
)

// selectFanOut returns up to n distinct addresses drawn uniformly at
// random from candidates, excluding exclude. It mutates a scratch copy of
// candidates in place with a partial Fisher-Yates shuffle so the cost is
// O(n) rather than O(len(candidates) log len(candidates)).
//
// math/rand/v2 is deliberately used in place of crypto/rand: fan-out peer
// selection has no adversarial-resistance requirement, only a uniform
// spread, so a fast non-cryptographic source is the right tool.
func selectFanOut(candidates []string, exclude string, n int) []string {
	pool := make([]string, 0, len(candidates))
	for _, addr := range candidates {
		if addr != exclude {
			pool = append(pool, addr)
		}
	}
	if n > len(pool) {
		n = len(pool)
	}
	for i := 0; i < n; i++ {
		j := i + rand.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}

// knownPeerAddrs returns the addresses of every peer the engine currently
// has a known address for, used as the fan-out candidate pool.
func knownPeerAddrs(knownPeers map[wire.NodeId]string) []string {
	addrs := make([]string, 0, len(knownPeers))
	for _, addr := range knownPeers {
		addrs = append(addrs, addr)
	}
	return addrs
}
