package actuator

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// ResetSentinel requests a full Reset via Set rather than a specific
// color id.
const ResetSentinel = -1

// colorCount is the number of distinct programs the fixture cycles
// through before wrapping.
const colorCount = 17

type colorCmdKind int

const (
	cmdReset colorCmdKind = iota
	cmdNext
	cmdSet
)

type colorCmd struct {
	kind colorCmdKind
	id   int
}

// ColorDriver implements the LED fixture's power-cycling color-selection
// protocol over the shared pool Light relay. Commands are serialized
// through a single-slot queue: one command may wait while another runs,
// and any command (Reset, Next or Set) arriving while that slot is full
// is dropped rather than queued, bounding queue growth. A command that
// arrives while another runs and the slot is empty is queued, not
// dropped. A dedicated worker goroutine is started at construction and
// stopped exactly once at shutdown.
type ColorDriver struct {
	light  *Light
	events EventSink

	// Protocol timings, overridable by tests; production leaves these at
	// DefaultColorTimings.
	advanceDelay time.Duration
	switchDelay  time.Duration
	programSync  time.Duration
	resyncIdle   time.Duration
	checkState   time.Duration

	mu             sync.Mutex
	currentColorID int
	positionKnown  bool

	queue     chan colorCmd
	interrupt atomic.Bool
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// ColorTimings holds the fixture's documented protocol delays.
type ColorTimings struct {
	AdvanceDelay time.Duration // off->on pulse for Next and Reset's first pulse, 1.2s
	SwitchDelay  time.Duration // off->on switch for Reset's final wait and Set's advance loop, 1.3s
	ProgramSync  time.Duration // on-hold before returning to program #1, 17s
	ResyncIdle   time.Duration // off-hold during Reset, 12s
	CheckState   time.Duration // fixture's white "check" state after >60s off
}

func DefaultColorTimings() ColorTimings {
	return ColorTimings{
		AdvanceDelay: 1200 * time.Millisecond,
		SwitchDelay:  1300 * time.Millisecond,
		ProgramSync:  17 * time.Second,
		ResyncIdle:   12 * time.Second,
		CheckState:   17 * time.Second,
	}
}

func NewColorDriver(light *Light, events EventSink) *ColorDriver {
	return NewColorDriverWithTimings(light, events, DefaultColorTimings())
}

func NewColorDriverWithTimings(light *Light, events EventSink, timings ColorTimings) *ColorDriver {
	if events == nil {
		events = noopSink{}
	}
	c := &ColorDriver{
		light:        light,
		events:       events,
		advanceDelay: timings.AdvanceDelay,
		switchDelay:  timings.SwitchDelay,
		programSync:  timings.ProgramSync,
		resyncIdle:   timings.ResyncIdle,
		checkState:   timings.CheckState,
		queue:        make(chan colorCmd, 1),
		stopCh:       make(chan struct{}),
	}
	c.wg.Add(1)
	go c.run()
	return c
}

func (c *ColorDriver) CurrentColorID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentColorID
}

func (c *ColorDriver) PositionKnown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionKnown
}

func (c *ColorDriver) Reset() { c.enqueue(colorCmd{kind: cmdReset}) }
func (c *ColorDriver) Next()  { c.enqueue(colorCmd{kind: cmdNext}) }
func (c *ColorDriver) Set(id int) {
	c.enqueue(colorCmd{kind: cmdSet, id: ((id % colorCount) + colorCount) % colorCount})
}

func (c *ColorDriver) enqueue(cmd colorCmd) {
	select {
	case c.queue <- cmd:
	default:
		log.Warn().Msg("color driver command dropped: a command is already active or pending")
	}
}

// HardStop sets the sticky interrupt latch and clears any pending
// command. It always succeeds regardless of preceding state.
func (c *ColorDriver) HardStop() {
	c.interrupt.Store(true)
	for {
		select {
		case <-c.queue:
		default:
			return
		}
	}
}

// Stop terminates the worker goroutine; safe to call more than once.
func (c *ColorDriver) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

func (c *ColorDriver) run() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stopCh:
			return
		case cmd := <-c.queue:
			if c.consumeInterrupt() {
				continue
			}
			if !c.dispatch(cmd) {
				return
			}
		}
	}
}

func (c *ColorDriver) consumeInterrupt() bool {
	return c.interrupt.CompareAndSwap(true, false)
}

// sleep waits d, consuming a pending interrupt if one lands during the
// wait. Returns false if the wait was aborted (interrupt or shutdown).
func (c *ColorDriver) sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		if c.consumeInterrupt() {
			return false
		}
		return true
	case <-c.stopCh:
		return false
	}
}

func (c *ColorDriver) dispatch(cmd colorCmd) bool {
	switch cmd.kind {
	case cmdReset:
		return c.doReset()
	case cmdNext:
		return c.doNext()
	case cmdSet:
		return c.doSet(cmd.id)
	}
	return true
}

func (c *ColorDriver) doReset() bool {
	c.light.Off()
	if !c.sleep(c.advanceDelay) {
		return true
	}
	c.light.On()
	if !c.sleep(c.programSync) {
		return true
	}
	c.light.Off()
	if !c.sleep(c.resyncIdle) {
		return true
	}
	c.light.On()
	if !c.sleep(c.switchDelay) {
		return true
	}

	c.mu.Lock()
	c.currentColorID = 0
	c.positionKnown = true
	c.mu.Unlock()
	return true
}

func (c *ColorDriver) doNext() bool {
	c.light.Off()
	if !c.sleep(c.advanceDelay) {
		return true
	}
	c.light.On()

	c.mu.Lock()
	c.currentColorID = (c.currentColorID + 1) % colorCount
	c.mu.Unlock()
	return true
}

func (c *ColorDriver) doSet(id int) bool {
	if id == ResetSentinel || !c.PositionKnown() {
		if !c.doReset() {
			return false
		}
		if c.interrupt.Load() {
			return true
		}
	}

	if secs, known := c.light.SecondsInOffState(); known && secs > 60 {
		c.light.On()
		if !c.sleep(c.checkState) {
			return true
		}
	}

	for c.CurrentColorID() != id {
		if c.interrupt.Load() {
			return true
		}
		c.light.Off()
		if !c.sleep(c.switchDelay) {
			return true
		}
		c.light.On()
		if !c.sleep(c.switchDelay) {
			return true
		}
		c.mu.Lock()
		c.currentColorID = (c.currentColorID + 1) % colorCount
		c.mu.Unlock()
	}
	return true
}
