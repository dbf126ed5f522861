package dht

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// InvalidValue is stored in humidity and temperature when the last read failed.
const InvalidValue float32 = -999

// TemperatureUnit is the temperature unit wanted, either Celsius or Fahrenheit
type TemperatureUnit int

const (
	// Celsius temperature unit
	Celsius TemperatureUnit = iota
	// Fahrenheit temperature unit
	Fahrenheit
)

// SensorType is the sensor family attached to the pin.
type SensorType int

const (
	// Unknown means the type has not been detected yet.
	Unknown SensorType = iota
	// DHT11 and compatible (DHT12)
	DHT11
	// DHT22 and compatible (AM2302, DHT33, DHT44)
	DHT22
)

// String implements fmt.Stringer.
func (t SensorType) String() string {
	switch t {
	case DHT11:
		return "DHT11"
	case DHT22:
		return "DHT22"
	default:
		return "unknown"
	}
}

// wakeup is how long the line has to be held low to wake the sensor.
func (t SensorType) wakeup() time.Duration {
	if t == DHT11 {
		return 18 * time.Millisecond
	}
	return time.Millisecond
}

// readDelay is the minimum time between two transactions, in milliseconds.
func (t SensorType) readDelay() uint16 {
	if t == DHT11 {
		return 1250
	}
	return 2500
}

// Pin is the part of gpio.PinIO the driver needs. Any periph pin satisfies it.
type Pin interface {
	Out(l gpio.Level) error
	In(pull gpio.Pull, edge gpio.Edge) error
	Read() gpio.Level
}

// Clock gives monotonic time and delays. Millis and Micros wrap around.
type Clock interface {
	Millis() uint32
	Micros() uint32
	SleepMicros(us uint32)
	SleepMillis(ms uint32)
	// Yield lets other pending work run during a blocking wait.
	Yield()
}

// Interrupts masks whatever platform activity would disturb edge timing.
// Disable and Enable are always called in pairs.
type Interrupts interface {
	Disable()
	Enable()
}

type noInterrupts struct{}

func (noInterrupts) Disable() {}
func (noInterrupts) Enable()  {}

// Timing holds the protocol timing constants.
type Timing struct {
	// BitThresholdMicros separates a "0" (~26-28 us high) from a "1" (~70 us high).
	BitThresholdMicros uint32
	// ClockHz is the rate edge polling is budgeted against, see TimeoutLoops.
	ClockHz uint32
	// SettleMicros is the wait between releasing the line and sampling.
	SettleMicros uint32
	// WakeupMarginPercent is added on top of the sensor's wake-up time.
	WakeupMarginPercent uint32
}

// DefaultTiming returns timing for a 16 MHz platform.
func DefaultTiming() Timing {
	return Timing{
		BitThresholdMicros:  50,
		ClockHz:             16000000,
		SettleMicros:        40,
		WakeupMarginPercent: 10,
	}
}

// TimeoutLoops is the poll ceiling for one edge. A poll costs at least four
// clock cycles, so ClockHz/40000 polls is at most 100 us.
func (t Timing) TimeoutLoops() uint32 {
	loops := t.ClockHz / 40000
	if loops == 0 {
		return 1
	}
	return loops
}

// Option configures a DHT at construction.
type Option func(*DHT)

// WithTiming replaces the default protocol timing.
func WithTiming(timing Timing) Option {
	return func(dht *DHT) {
		dht.timing = timing
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(dht *DHT) {
		if logger != nil {
			dht.logger = logger
		}
	}
}

// WithInterrupts sets the interrupt suppression primitive.
func WithInterrupts(irq Interrupts) Option {
	return func(dht *DHT) {
		if irq != nil {
			dht.irq = irq
		}
	}
}

// DHT struct to interface with the sensor.
// Call New or NewDHT to create a new one.
type DHT struct {
	mu sync.Mutex

	pin    Pin
	clock  Clock
	irq    Interrupts
	timing Timing
	logger *slog.Logger
	name   string

	sensorType     SensorType
	wakeup         time.Duration
	readDelay      uint16
	autoReadDelay  bool
	lastRead       uint32
	waitForRead    bool
	disableIRQ     bool
	frame          Frame
	humidity       float32
	temperature    float32
	humidityOffset float32
	tempOffset     float32

	// continuous sensing, see SenseContinuous
	cancel  context.CancelFunc
	stopped chan struct{}
}
