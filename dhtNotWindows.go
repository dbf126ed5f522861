//go:build !windows
// +build !windows

package dht

import (
	"fmt"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// NewDHT to create a new DHT struct on a periph.io pin, for example "GPIO4".
// Call HostInit first. sensorType may be Unknown to detect it on first Read.
func NewDHT(pinName string, sensorType SensorType, opts ...Option) (*DHT, error) {
	// get pin
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("pin %q not found", pinName)
	}

	// set pin to high so ready for first read
	err := pin.Out(gpio.High)
	if err != nil {
		return nil, fmt.Errorf("pin out high error: %w", err)
	}

	timing := DefaultTiming()
	timing.ClockHz = calibrate(pin)

	opts = append([]Option{WithTiming(timing), WithInterrupts(gcPause{})}, opts...)
	return New(pin, newHostClock(), sensorType, opts...), nil
}

// calibrate measures how fast the pin can be polled and returns the clock
// rate for which Timing.TimeoutLoops polls take about 100 us.
// Note that pin read takes around .2 microsecond (us) on Raspberry PI 3.
func calibrate(pin gpio.PinIO) uint32 {
	const reads = 10000

	startTime := time.Now()
	for i := 0; i < reads; i++ {
		pin.Read()
	}
	elapsed := time.Since(startTime)
	if elapsed <= 0 {
		return DefaultTiming().ClockHz
	}

	// TimeoutLoops is ClockHz / 40000, reads per 100 us is reads per second / 10000
	hz := float64(reads) / elapsed.Seconds() * 4
	if hz > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(hz)
}

type hostClock struct {
	start time.Time
}

func newHostClock() hostClock {
	return hostClock{start: time.Now()}
}

func (c hostClock) Millis() uint32 {
	return uint32(time.Since(c.start) / time.Millisecond)
}

func (c hostClock) Micros() uint32 {
	return uint32(time.Since(c.start) / time.Microsecond)
}

// SleepMicros busy waits below a millisecond, time.Sleep overshoots too much there.
func (c hostClock) SleepMicros(us uint32) {
	d := time.Duration(us) * time.Microsecond
	if d >= time.Millisecond {
		time.Sleep(d)
		return
	}
	startTime := time.Now()
	for time.Since(startTime) < d {
	}
}

func (c hostClock) SleepMillis(ms uint32) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

func (c hostClock) Yield() {
	runtime.Gosched()
}

// gcPause is the closest a Go program gets to disabling interrupts: it
// disables garbage collection and pins the goroutine to its OS thread.
// The GC percent is process wide, so pauses of all sensors share one count
// and the saved percent is restored when the last one ends.
type gcPause struct{}

var gcPauses struct {
	sync.Mutex
	depth     int
	gcPercent int
}

func (gcPause) Disable() {
	runtime.LockOSThread()
	gcPauses.Lock()
	if gcPauses.depth == 0 {
		gcPauses.gcPercent = debug.SetGCPercent(-1)
	}
	gcPauses.depth++
	gcPauses.Unlock()
}

func (gcPause) Enable() {
	gcPauses.Lock()
	gcPauses.depth--
	if gcPauses.depth == 0 {
		debug.SetGCPercent(gcPauses.gcPercent)
	}
	gcPauses.Unlock()
	runtime.UnlockOSThread()
}
