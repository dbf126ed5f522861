// Package dht reads DHT11 / DHT22 / AM2302 humidity and temperature sensors
// over a single GPIO line.
package dht

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"periph.io/x/host/v3"
)

// HostInit calls periph.io host.Init(). This needs to be done before NewDHT can be used.
func HostInit() error {
	_, err := host.Init()
	return err
}

// Reading is a snapshot of the last read.
type Reading struct {
	// Humidity in %RH, InvalidValue if the read failed
	Humidity float32
	// Temperature in Celsius, InvalidValue if the read failed
	Temperature float32
	Type        SensorType
	// Timestamp is the Clock.Millis of the transaction
	Timestamp uint32
}

// Valid reports whether the reading holds decoded values.
func (r Reading) Valid() bool {
	return r.Humidity != InvalidValue && r.Temperature != InvalidValue
}

// TemperatureIn returns the temperature in the given unit.
func (r Reading) TemperatureIn(unit TemperatureUnit) float32 {
	if unit == Fahrenheit && r.Temperature != InvalidValue {
		return r.Temperature*9/5 + 32
	}
	return r.Temperature
}

// New creates a DHT on an already configured pin.
// sensorType may be Unknown, in which case the first Read detects it.
func New(pin Pin, clock Clock, sensorType SensorType, opts ...Option) *DHT {
	dht := &DHT{
		pin:         pin,
		clock:       clock,
		irq:         noInterrupts{},
		timing:      DefaultTiming(),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		name:        "DHT",
		humidity:    InvalidValue,
		temperature: InvalidValue,
		disableIRQ:  true,
	}
	if s, ok := pin.(fmt.Stringer); ok {
		dht.name = "DHT{" + s.String() + "}"
	}
	for _, opt := range opts {
		opt(dht)
	}

	dht.autoReadDelay = true
	dht.setType(sensorType)

	// first read does not have to wait for the interval
	dht.lastRead = clock.Millis() - uint32(dht.readDelay)

	return dht
}

// Read reads the sensor, or keeps the previous values if the last read was
// less than ReadDelay ago. With WaitForReading set it instead waits for the
// interval to pass and then reads.
// The first Read detects the sensor type when it is Unknown.
func (dht *DHT) Read() error {
	return dht.ReadContext(context.Background())
}

// ReadContext is Read with a context that can abort waiting for the interval.
// A transaction, once started, is never aborted.
func (dht *DHT) ReadContext(ctx context.Context) error {
	dht.mu.Lock()
	defer dht.mu.Unlock()
	return dht.read(ctx, dht.waitForRead)
}

func (dht *DHT) read(ctx context.Context, wait bool) error {
	if dht.sensorType == Unknown {
		return dht.detect()
	}

	if dht.clock.Millis()-dht.lastRead < uint32(dht.readDelay) {
		if !wait {
			return nil
		}
		err := dht.waitForInterval(ctx)
		if err != nil {
			return err
		}
	}

	return dht.transact()
}

// waitForInterval sleeps in 1 ms steps until ReadDelay has passed since the
// last transaction. It never takes more than ReadDelay steps.
func (dht *DHT) waitForInterval(ctx context.Context) error {
	delay := uint32(dht.readDelay)
	for steps := delay; steps > 0 && dht.clock.Millis()-dht.lastRead < delay; steps-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		dht.clock.SleepMillis(1)
		dht.clock.Yield()
	}
	return nil
}

// detect tries DHT22 timing, then DHT11 timing.
func (dht *DHT) detect() error {
	dht.setType(DHT22)
	err := dht.transact()
	if err == nil {
		dht.logger.Debug("sensor detected", "sensor", dht.name, "type", dht.sensorType)
		return nil
	}

	dht.setType(DHT11)
	err = dht.transact()
	if err == nil {
		dht.logger.Debug("sensor detected", "sensor", dht.name, "type", dht.sensorType)
		return nil
	}

	// retry next time
	dht.setType(Unknown)
	return err
}

// transact runs one transaction and updates the cached values.
func (dht *DHT) transact() error {
	dht.lastRead = dht.clock.Millis()

	err := dht.readSensor()
	if err == nil {
		dht.humidity, dht.temperature, err = decodeFrame(dht.frame, dht.sensorType, dht.humidityOffset, dht.tempOffset)
	}
	if err != nil {
		dht.humidity = InvalidValue
		dht.temperature = InvalidValue
		dht.logger.Debug("read failed", "sensor", dht.name, "type", dht.sensorType, "error", err)
		return err
	}

	return nil
}

func (dht *DHT) setType(sensorType SensorType) {
	dht.sensorType = sensorType
	dht.wakeup = sensorType.wakeup()
	if dht.autoReadDelay {
		dht.readDelay = sensorType.readDelay()
	}
}

// Type returns the sensor type, Unknown until detected.
func (dht *DHT) Type() SensorType {
	dht.mu.Lock()
	defer dht.mu.Unlock()
	return dht.sensorType
}

// SetType forces the sensor type. Unknown makes the next Read detect it again.
func (dht *DHT) SetType(sensorType SensorType) {
	dht.mu.Lock()
	defer dht.mu.Unlock()
	dht.setType(sensorType)
}

// Humidity returns the last humidity in %RH, or InvalidValue.
func (dht *DHT) Humidity() float32 {
	dht.mu.Lock()
	defer dht.mu.Unlock()
	return dht.humidity
}

// Temperature returns the last temperature in Celsius, or InvalidValue.
func (dht *DHT) Temperature() float32 {
	dht.mu.Lock()
	defer dht.mu.Unlock()
	return dht.temperature
}

// Snapshot returns the last values as a Reading.
func (dht *DHT) Snapshot() Reading {
	dht.mu.Lock()
	defer dht.mu.Unlock()
	return dht.snapshot()
}

func (dht *DHT) snapshot() Reading {
	return Reading{
		Humidity:    dht.humidity,
		Temperature: dht.temperature,
		Type:        dht.sensorType,
		Timestamp:   dht.lastRead,
	}
}

// SetHumidityOffset sets the offset added to humidity before clamping.
// Offsets work well in the normal range but distort the ends of it.
func (dht *DHT) SetHumidityOffset(offset float32) {
	dht.mu.Lock()
	defer dht.mu.Unlock()
	dht.humidityOffset = offset
}

// HumidityOffset returns the humidity offset.
func (dht *DHT) HumidityOffset() float32 {
	dht.mu.Lock()
	defer dht.mu.Unlock()
	return dht.humidityOffset
}

// SetTemperatureOffset sets the offset added to temperature. The result is not clamped.
func (dht *DHT) SetTemperatureOffset(offset float32) {
	dht.mu.Lock()
	defer dht.mu.Unlock()
	dht.tempOffset = offset
}

// TemperatureOffset returns the temperature offset.
func (dht *DHT) TemperatureOffset() float32 {
	dht.mu.Lock()
	defer dht.mu.Unlock()
	return dht.tempOffset
}

// ReadDelay returns the minimum milliseconds between transactions.
func (dht *DHT) ReadDelay() uint16 {
	dht.mu.Lock()
	defer dht.mu.Unlock()
	return dht.readDelay
}

// SetReadDelay sets the minimum milliseconds between transactions.
// 0 reverts to the default of the sensor type.
func (dht *DHT) SetReadDelay(ms uint16) {
	dht.mu.Lock()
	defer dht.mu.Unlock()
	if ms == 0 {
		dht.autoReadDelay = true
		dht.readDelay = dht.sensorType.readDelay()
		return
	}
	dht.autoReadDelay = false
	dht.readDelay = ms
}

// WaitForReading reports whether Read waits for the interval instead of
// returning the previous values.
func (dht *DHT) WaitForReading() bool {
	dht.mu.Lock()
	defer dht.mu.Unlock()
	return dht.waitForRead
}

// SetWaitForReading sets whether Read waits for the interval.
func (dht *DHT) SetWaitForReading(wait bool) {
	dht.mu.Lock()
	defer dht.mu.Unlock()
	dht.waitForRead = wait
}

// SuppressInterrupts reports whether bit sampling runs with interrupts disabled.
func (dht *DHT) SuppressInterrupts() bool {
	dht.mu.Lock()
	defer dht.mu.Unlock()
	return dht.disableIRQ
}

// SetSuppressInterrupts turns interrupt suppression during bit sampling on or off.
func (dht *DHT) SetSuppressInterrupts(suppress bool) {
	dht.mu.Lock()
	defer dht.mu.Unlock()
	dht.disableIRQ = suppress
}

// LastRead returns the Clock.Millis of the last transaction attempt.
func (dht *DHT) LastRead() uint32 {
	dht.mu.Lock()
	defer dht.mu.Unlock()
	return dht.lastRead
}

// ReadRetry will call Read until there is no errors or the maxRetries is hit.
// Unlike Read it always waits for the read interval between attempts, so
// every attempt is a fresh transaction.
func (dht *DHT) ReadRetry(ctx context.Context, maxRetries int) (Reading, error) {
	var err error
	for i := 0; i < maxRetries || i == 0; i++ {
		if i > 0 {
			err = dht.backoff(ctx)
			if err != nil {
				return Reading{}, err
			}
		}

		var reading Reading
		reading, err = dht.readFresh(ctx)
		if err == nil {
			return reading, nil
		}
	}
	return Reading{}, err
}

// readFresh reads, waiting for the interval if needed.
func (dht *DHT) readFresh(ctx context.Context) (Reading, error) {
	dht.mu.Lock()
	defer dht.mu.Unlock()
	err := dht.read(ctx, true)
	if err != nil {
		return Reading{}, err
	}
	return dht.snapshot(), nil
}

// backoff waits for the read interval after a failed attempt.
func (dht *DHT) backoff(ctx context.Context) error {
	dht.mu.Lock()
	defer dht.mu.Unlock()
	return dht.waitForInterval(ctx)
}

// ReadBackground reads the sensor every interval until ctx is done, calling
// fn with every good reading. Run it as a goroutine.
// If there are ongoing read errors fn is simply not called; reads are then
// retried as soon as the sensor read interval allows.
func (dht *DHT) ReadBackground(ctx context.Context, interval time.Duration, fn func(Reading)) {
	var err error
	startTime := time.Now().Add(-interval)

	for {
		if err == nil {
			// no read error, wait for interval or done
			select {
			case <-time.After(interval - time.Since(startTime)):
			case <-ctx.Done():
				return
			}
		} else {
			// read error, only wait for the sensor
			if dht.backoff(ctx) != nil {
				return
			}
		}

		startTime = time.Now()
		var reading Reading
		reading, err = dht.readFresh(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		fn(reading)
	}
}
