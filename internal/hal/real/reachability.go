package real

import (
	"sync"
	"sync/atomic"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"github.com/rs/zerolog/log"
)

// Reachability runs bursts of ICMP echo requests against a target host
// and reports the most recent burst's outcome. The burst/idle cadence
// lives in internal/pinger; this type only knows how to run one burst.
type Reachability struct {
	target    string
	connected atomic.Bool
	mu        sync.Mutex
}

func NewReachability(target string) *Reachability {
	return &Reachability{target: target}
}

func (r *Reachability) Connected() bool {
	return r.connected.Load()
}

// Probe sends count pings at the given interval and updates Connected()
// from whether at least one reply was received.
func (r *Reachability) Probe(count int, interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pinger, err := probing.NewPinger(r.target)
	if err != nil {
		log.Warn().Err(err).Str("target", r.target).Msg("failed to construct pinger")
		r.connected.Store(false)
		return
	}
	pinger.Count = count
	pinger.Interval = interval
	pinger.Timeout = time.Duration(count)*interval + 2*time.Second

	if err := pinger.Run(); err != nil {
		log.Warn().Err(err).Str("target", r.target).Msg("ping burst failed")
		r.connected.Store(false)
		return
	}

	stats := pinger.Statistics()
	r.connected.Store(stats.PacketsRecv > 0)
}
