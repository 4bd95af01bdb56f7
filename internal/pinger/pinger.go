// Package pinger runs a background reachability probe against a
// configured host, grounded on the teacher's goroutine-loop controllers
// (RunFailsafeController, RunRecirculationController): a dedicated
// goroutine alternating between an active phase and an idle phase,
// polling a stop signal so shutdown completes in bounded time.
package pinger

import (
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultBurstCount    = 10
	defaultBurstInterval = 1 * time.Second
	defaultIdlePoll      = 10 * time.Second
	defaultIdleDuration  = 4 * time.Minute
)

// Prober runs one ICMP burst and reports the outcome. hal/real.Reachability
// and hal/simulated.Reachability both implement it.
type Prober interface {
	Probe(count int, interval time.Duration)
	Connected() bool
}

// Pinger owns the burst/idle cadence; Prober owns the actual ICMP work.
// Cadence fields are overridable by tests; production leaves them at the
// package defaults.
type Pinger struct {
	prober        Prober
	burstCount    int
	burstInterval time.Duration
	idlePoll      time.Duration
	idleDuration  time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

func New(prober Prober) *Pinger {
	return &Pinger{
		prober:        prober,
		burstCount:    defaultBurstCount,
		burstInterval: defaultBurstInterval,
		idlePoll:      defaultIdlePoll,
		idleDuration:  defaultIdleDuration,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// WithCadence overrides the burst/idle timing, used by tests.
func (p *Pinger) WithCadence(burstCount int, burstInterval, idlePoll, idleDuration time.Duration) *Pinger {
	p.burstCount = burstCount
	p.burstInterval = burstInterval
	p.idlePoll = idlePoll
	p.idleDuration = idleDuration
	return p
}

// IsConnected reports the last burst's outcome.
func (p *Pinger) IsConnected() bool {
	return p.prober.Connected()
}

// Run starts the burst/idle loop on a dedicated goroutine. It returns
// immediately.
func (p *Pinger) Run() {
	go p.loop()
}

func (p *Pinger) loop() {
	defer close(p.doneCh)
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		p.prober.Probe(p.burstCount, p.burstInterval)
		log.Debug().Bool("connected", p.prober.Connected()).Msg("pinger: burst complete")

		if !p.waitIdle() {
			return
		}
	}
}

// waitIdle polls the stop signal every idle-poll interval for the idle
// duration; returns false if shutdown was requested meanwhile.
func (p *Pinger) waitIdle() bool {
	deadline := time.Now().Add(p.idleDuration)
	for time.Now().Before(deadline) {
		select {
		case <-p.stopCh:
			return false
		case <-time.After(p.idlePoll):
		}
	}
	return true
}

// Stop signals the loop to exit and waits for it to finish.
func (p *Pinger) Stop() {
	close(p.stopCh)
	<-p.doneCh
}
