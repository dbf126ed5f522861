//go:build !windows
// +build !windows

package dht

import (
	"runtime/debug"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func registerTestPin(t *testing.T, name string) *gpiotest.Pin {
	t.Helper()
	pin := &gpiotest.Pin{N: name, Num: 4}
	require.NoError(t, gpioreg.Register(pin))
	t.Cleanup(func() {
		_ = gpioreg.Unregister(name)
	})
	return pin
}

func gcPercent() int {
	percent := debug.SetGCPercent(-1)
	debug.SetGCPercent(percent)
	return percent
}

func TestNewDHT(t *testing.T) {
	pin := registerTestPin(t, "DHTTEST4")

	dht, err := NewDHT("DHTTEST4", DHT22)
	require.NoError(t, err)

	assert.Equal(t, gpio.High, pin.Read())
	assert.Equal(t, "DHT{DHTTEST4(4)}", dht.String())
	assert.Equal(t, DHT22, dht.Type())
	assert.Greater(t, dht.timing.ClockHz, uint32(0))
	assert.GreaterOrEqual(t, dht.timing.TimeoutLoops(), uint32(1))
	assert.Equal(t, uint32(50), dht.timing.BitThresholdMicros)
	assert.IsType(t, gcPause{}, dht.irq)
}

func TestNewDHT_PinNotFound(t *testing.T) {
	_, err := NewDHT("DHTTEST_MISSING", Unknown)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DHTTEST_MISSING")
}

func TestNewDHT_OptionsOverrideDefaults(t *testing.T) {
	registerTestPin(t, "DHTTEST5")

	dht, err := NewDHT("DHTTEST5", DHT11, WithTiming(simTiming))
	require.NoError(t, err)
	assert.Equal(t, simTiming, dht.timing)
}

func TestCalibrate(t *testing.T) {
	pin := &gpiotest.Pin{N: "CAL"}
	hz := calibrate(pin)
	assert.Greater(t, hz, uint32(0))
}

func TestHostClock_Wraps(t *testing.T) {
	// started more than 2^32 ms ago, both counters have wrapped
	clock := hostClock{start: time.Now().Add(-(1<<32)*time.Millisecond - 3*time.Millisecond)}

	ms := clock.Millis()
	assert.GreaterOrEqual(t, ms, uint32(3))
	assert.Less(t, ms, uint32(60000))

	us := clock.Micros()
	assert.GreaterOrEqual(t, us, uint32(3000))
	assert.Less(t, us, uint32(60000000))

	clock = hostClock{start: time.Now().Add(-(1<<32)*time.Microsecond + 100*time.Microsecond)}
	before := clock.Micros()
	clock.SleepMicros(300)
	assert.GreaterOrEqual(t, clock.Micros()-before, uint32(300))
}

func TestHostClock_Sleep(t *testing.T) {
	clock := newHostClock()

	start := time.Now()
	clock.SleepMicros(200)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Microsecond)

	before := clock.Millis()
	clock.SleepMillis(2)
	assert.GreaterOrEqual(t, clock.Millis()-before, uint32(2))
	clock.Yield()
}

func TestGCPause_Overlapping(t *testing.T) {
	previous := debug.SetGCPercent(100)
	defer debug.SetGCPercent(previous)

	a, b := gcPause{}, gcPause{}

	a.Disable()
	assert.Equal(t, -1, gcPercent())
	b.Disable()
	a.Enable()
	// b is still sampling
	assert.Equal(t, -1, gcPercent())
	b.Enable()
	assert.Equal(t, 100, gcPercent())

	// and again in nested order
	a.Disable()
	b.Disable()
	b.Enable()
	a.Enable()
	assert.Equal(t, 100, gcPercent())
}

func TestGCPause_ConcurrentSensors(t *testing.T) {
	previous := debug.SetGCPercent(100)
	defer debug.SetGCPercent(previous)

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			var pause gcPause
			for j := 0; j < 100; j++ {
				pause.Disable()
				pause.Enable()
			}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	assert.Equal(t, 100, gcPercent())
}
