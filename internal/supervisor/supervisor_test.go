package supervisor

import (
	"path/filepath"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjpetersen/pipool-controller/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Ports: config.Ports{
			Pump: 1, Heater: 2, Light: 3,
			PumpSpeedS1: 4, PumpSpeedS2: 5, PumpSpeedS3: 6, PumpSpeedS4: 7,
		},
		MaxWaterTemp:            32,
		MaxHeaterRuntimeSeconds: 14400,
		MQTTBroker:              "tcp://127.0.0.1:1",
		DBPath:                  filepath.Join(t.TempDir(), "test.db"),
		HardwareMode:            "simulated",
		NoDevices:               true,
		Simulation: config.SimulationConfig{
			TimeMultiplier: 1,
		},
	}
}

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	s, err := New(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		// Shutdown-sequence tests already stop these themselves; guard
		// against the resulting double-close panics during cleanup.
		defer func() { recover() }()
		s.ping.Stop()
		s.bus.Stop()
		s.logStore.Close()
	})
	return s
}

func TestNewBuildsEverySimulatedComponent(t *testing.T) {
	s := newTestSupervisor(t)

	assert.NotNil(t, s.sim)
	assert.NotNil(t, s.pump)
	assert.NotNil(t, s.heater)
	assert.NotNil(t, s.light)
	assert.NotNil(t, s.colorDriver)
	assert.NotNil(t, s.watch)
	assert.NotNil(t, s.snapshot)
}

func TestTickAdvancesSimulationWithoutPanicking(t *testing.T) {
	s := newTestSupervisor(t)

	assert.NotPanics(t, func() { s.tick() })

	assert.NotZero(t, s.sim.WaterTemp())
}

func TestTickRunsRepeatedlyWithoutDeadlock(t *testing.T) {
	s := newTestSupervisor(t)

	for i := 0; i < 5; i++ {
		s.tick()
	}
}

func TestTickSafelyRecoversFromPanickingStep(t *testing.T) {
	s := newTestSupervisor(t)

	orig := s.heater
	s.heater = nil // dereferencing a nil *actuator.Heater inside tick panics

	ok := s.tickSafely()
	assert.False(t, ok)

	s.heater = orig
}

// TestLoopRecoveryMatchesEmergencyStopContract exercises the same
// emergency-stop calls loop() makes after a failed tickSafely, since
// driving loop() itself deterministically would require racing its
// internal ticker against the test.
func TestLoopRecoveryMatchesEmergencyStopContract(t *testing.T) {
	s := newTestSupervisor(t)
	s.pump.On()

	orig := s.heater
	s.heater = nil

	ok := s.tickSafely()
	require.False(t, ok)

	s.pump.HardStop()
	s.heater = orig
	s.heater.HardStop()
	s.colorDriver.HardStop()

	assert.False(t, s.pump.IsOn())
	assert.False(t, s.heater.IsOn())
}

func TestShutdownRunsExactlyOnceAndCallsExitFunc(t *testing.T) {
	s := newTestSupervisor(t)

	var exitCode int32 = -1
	var calls int32
	orig := ExitFunc
	ExitFunc = func(code int) {
		atomic.StoreInt32(&exitCode, int32(code))
		atomic.AddInt32(&calls, 1)
	}
	defer func() { ExitFunc = orig }()

	s.shutdown("SIGTERM")
	s.shutdown("SIGTERM")

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, int32(0), atomic.LoadInt32(&exitCode))
	assert.False(t, s.pump.IsOn())
	assert.False(t, s.heater.IsOn())
}

func TestShutdownContinuesPastAPanickingStep(t *testing.T) {
	s := newTestSupervisor(t)
	s.relayBoard = nil // Cleanup on a nil board panics; later steps must still run

	var called bool
	orig := ExitFunc
	ExitFunc = func(int) { called = true }
	defer func() { ExitFunc = orig }()

	assert.NotPanics(t, func() { s.shutdown("SIGINT") })
	assert.True(t, called)
}

func TestSecondSignalDuringShutdownForcesExit(t *testing.T) {
	s := newTestSupervisor(t)

	forced := make(chan int, 1)
	orig := ExitFunc
	ExitFunc = func(code int) {
		select {
		case forced <- code:
		default:
		}
	}
	defer func() { ExitFunc = orig }()

	s.signals <- syscall.SIGTERM
	s.shutdown("SIGINT")

	select {
	case code := <-forced:
		assert.Equal(t, 1, code)
	case <-time.After(2 * time.Second):
		t.Fatal("expected second signal to force an exit")
	}
}
