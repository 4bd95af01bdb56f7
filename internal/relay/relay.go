// Package relay maps logical relay ports 1..8 onto physical GPIO lines
// behind the hal.GPIO seam, honoring the board's active-low convention
// and a process-wide inhibit flag for bench operation.
package relay

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mjpetersen/pipool-controller/internal/hal"
)

// Line is one physical GPIO assignment for a logical port.
type Line struct {
	Port       int
	Pin        int
	ActiveHigh bool
}

// boardPinout is the physical GPIO pin wired to each of the board's 8
// logical ports, matching the 8-channel relay HAT this controller ships
// with. Logical ports are what config.Ports assigns to a device; this
// table is fixed by the board's silkscreen, not user-configurable.
var boardPinout = map[int]int{
	1: 17, 2: 27, 3: 22, 4: 5,
	5: 6, 6: 13, 7: 19, 8: 26,
}

// StandardLine resolves a logical port to its fixed physical pin. All
// wired devices on this board are active-low.
func StandardLine(port int) Line {
	return Line{Port: port, Pin: boardPinout[port], ActiveHigh: false}
}

// Board owns the 1..8 logical-port table. Every wired port must be
// configured as an output and driven inactive at construction; cleanup
// restores every output to inactive exactly once during shutdown.
type Board struct {
	mu      sync.Mutex
	gpio    hal.GPIO
	lines   map[int]Line
	inhibit bool
}

// New configures every wired line as an output and drives it inactive.
func New(gpio hal.GPIO, lines []Line) (*Board, error) {
	b := &Board{gpio: gpio, lines: make(map[int]Line, len(lines))}
	for _, l := range lines {
		if _, exists := b.lines[l.Port]; exists {
			return nil, fmt.Errorf("relay: port %d assigned more than once", l.Port)
		}
		if err := gpio.Configure(l.Pin, l.ActiveHigh); err != nil {
			return nil, fmt.Errorf("relay: failed to configure port %d (pin %d): %w", l.Port, l.Pin, err)
		}
		b.lines[l.Port] = l
	}
	return b, nil
}

// SetInhibit enables or disables the process-wide no-switch flag. While
// set, PortOn/PortOff become no-ops without altering tracked intent.
func (b *Board) SetInhibit(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inhibit = enabled
}

func (b *Board) PortOn(port int) error {
	return b.drive(port, true)
}

func (b *Board) PortOff(port int) error {
	return b.drive(port, false)
}

func (b *Board) drive(port int, active bool) error {
	b.mu.Lock()
	line, ok := b.lines[port]
	inhibited := b.inhibit
	b.mu.Unlock()

	if !ok {
		return fmt.Errorf("relay: port %d is not wired", port)
	}
	if inhibited {
		return nil
	}
	if err := b.gpio.Drive(line.Pin, line.ActiveHigh, active); err != nil {
		log.Error().Err(err).Int("port", port).Bool("active", active).Msg("relay write failed")
		return err
	}
	return nil
}

// Cleanup drives every wired output inactive and is safe to call more
// than once, though the supervisor calls it exactly once during shutdown.
func (b *Board) Cleanup() {
	b.mu.Lock()
	lines := make([]Line, 0, len(b.lines))
	for _, l := range b.lines {
		lines = append(lines, l)
	}
	b.mu.Unlock()

	for _, l := range lines {
		if err := b.gpio.Drive(l.Pin, l.ActiveHigh, false); err != nil {
			log.Error().Err(err).Int("port", l.Port).Msg("failed to return relay to inactive during cleanup")
		}
	}
}
