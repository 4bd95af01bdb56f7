package actuator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastTimings() ColorTimings {
	return ColorTimings{
		AdvanceDelay: 2 * time.Millisecond,
		SwitchDelay:  4 * time.Millisecond,
		ProgramSync:  5 * time.Millisecond,
		ResyncIdle:   5 * time.Millisecond,
		CheckState:   5 * time.Millisecond,
	}
}

func TestDefaultColorTimingsMatchProtocol(t *testing.T) {
	timings := DefaultColorTimings()
	assert.Equal(t, 1200*time.Millisecond, timings.AdvanceDelay)
	assert.Equal(t, 1300*time.Millisecond, timings.SwitchDelay)
	assert.Equal(t, 17*time.Second, timings.ProgramSync)
	assert.Equal(t, 12*time.Second, timings.ResyncIdle)
	assert.Equal(t, 17*time.Second, timings.CheckState)
}

func waitForColorID(t *testing.T, c *ColorDriver, want int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.CurrentColorID() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, want, c.CurrentColorID())
}

func TestColorDriverResetSetsKnownPosition(t *testing.T) {
	relay := newFakeRelay()
	light := NewLight(3, relay, nil)
	driver := NewColorDriverWithTimings(light, nil, fastTimings())
	defer driver.Stop()

	driver.Reset()

	// currentColorID starts at 0, so wait on PositionKnown for Reset to
	// finish rather than on the color id.
	require.Eventually(t, driver.PositionKnown, time.Second, time.Millisecond)
	assert.Equal(t, 0, driver.CurrentColorID())
	assert.True(t, driver.PositionKnown())
}

func TestColorDriverNextAdvancesModuloColorCount(t *testing.T) {
	relay := newFakeRelay()
	light := NewLight(3, relay, nil)
	driver := NewColorDriverWithTimings(light, nil, fastTimings())
	defer driver.Stop()

	driver.Reset()
	waitForColorID(t, driver, 0, time.Second)

	driver.Next()
	waitForColorID(t, driver, 1, time.Second)
}

func TestColorDriverSetAdvancesToTarget(t *testing.T) {
	relay := newFakeRelay()
	light := NewLight(3, relay, nil)
	driver := NewColorDriverWithTimings(light, nil, fastTimings())
	defer driver.Stop()

	driver.Set(5)

	waitForColorID(t, driver, 5, time.Second)
}

func TestColorDriverSetSleepsTwicePerAdvanceStep(t *testing.T) {
	relay := newFakeRelay()
	light := NewLight(3, relay, nil)
	timings := fastTimings() // AdvanceDelay 2ms, SwitchDelay 4ms
	driver := NewColorDriverWithTimings(light, nil, timings)
	defer driver.Stop()

	driver.Reset()
	require.Eventually(t, driver.PositionKnown, time.Second, time.Millisecond)

	const steps = 3
	start := time.Now()
	driver.Set(steps)
	waitForColorID(t, driver, steps, time.Second)
	elapsed := time.Since(start)

	// Each advance step sleeps twice at SwitchDelay (off, then on); a
	// single-sleep-per-step regression would finish in roughly half
	// this time.
	assert.GreaterOrEqual(t, elapsed, time.Duration(steps)*2*timings.SwitchDelay)
}

func TestColorDriverHardStopClearsPendingAndInterruptsInFlight(t *testing.T) {
	relay := newFakeRelay()
	light := NewLight(3, relay, nil)
	timings := fastTimings()
	timings.ProgramSync = 200 * time.Millisecond
	driver := NewColorDriverWithTimings(light, nil, timings)
	defer driver.Stop()

	driver.Reset() // will be mid-flight when HardStop lands
	driver.Set(10) // queued, should be dropped by HardStop
	time.Sleep(2 * time.Millisecond)

	driver.HardStop()

	// Position should not have completed to id 10 shortly afterward,
	// since the queued Set was cleared.
	time.Sleep(50 * time.Millisecond)
	assert.NotEqual(t, 10, driver.CurrentColorID())
}

func TestColorDriverCurrentColorIDStaysInRange(t *testing.T) {
	relay := newFakeRelay()
	light := NewLight(3, relay, nil)
	driver := NewColorDriverWithTimings(light, nil, fastTimings())
	defer driver.Stop()

	driver.Set(16)
	waitForColorID(t, driver, 16, time.Second)

	assert.GreaterOrEqual(t, driver.CurrentColorID(), 0)
	assert.Less(t, driver.CurrentColorID(), colorCount)
}
