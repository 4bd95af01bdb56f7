// Package real implements the hardware abstraction layer against an
// actual Raspberry Pi: GPIO via the pinctrl CLI tool, temperatures via
// /sys and the 1-Wire w1_slave file, reachability via ICMP.
package real

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// pinctrlSet shells out to `pinctrl set <pin> <opts...>`, exactly the
// way the board's vendor tooling expects pin configuration to be driven.
func pinctrlSet(pin int, opts ...string) error {
	args := append([]string{"set", fmt.Sprint(pin)}, opts...)
	cmd := exec.Command("pinctrl", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pinctrl set failed: %w (output: %s)", err, string(out))
	}
	return nil
}

// pinctrlLevel shells out to `pinctrl lev <pin>` for a fast level read.
func pinctrlLevel(pin int) (bool, error) {
	cmd := exec.Command("pinctrl", "lev", fmt.Sprint(pin))
	out, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("failed to read level for pin %d: %w", pin, err)
	}
	trimmed := strings.TrimSpace(string(out))
	switch trimmed {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, fmt.Errorf("unexpected output from pinctrl lev: %q", trimmed)
	}
}

// GPIO drives relay lines through pinctrl. NO_DEVICES short-circuits every
// write to a no-op, leaving reads functional, for bench testing without a
// wired board.
type GPIO struct {
	NoDevices bool
}

func NewGPIO(noDevices bool) *GPIO {
	return &GPIO{NoDevices: noDevices}
}

func (g *GPIO) Configure(pin int, activeHigh bool) error {
	if g.NoDevices {
		return nil
	}
	if err := pinctrlSet(pin, "op", "pn"); err != nil {
		return err
	}
	// Boot state must always be inactive regardless of polarity.
	return g.Drive(pin, activeHigh, false)
}

func (g *GPIO) Drive(pin int, activeHigh bool, active bool) error {
	if g.NoDevices {
		return nil
	}
	high := active == activeHigh
	level := "dl"
	if high {
		level = "dh"
	}
	if err := pinctrlSet(pin, "op", "pn", level); err != nil {
		log.Error().Err(err).Int("pin", pin).Msg("failed to drive GPIO line")
		return err
	}
	return nil
}

func (g *GPIO) Level(pin int) (bool, error) {
	return pinctrlLevel(pin)
}
