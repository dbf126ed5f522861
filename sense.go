package dht

import (
	"context"
	"errors"
	"time"

	"periph.io/x/conn/v3/physic"
)

var _ physic.SenseEnv = (*DHT)(nil)

// Env converts the reading to periph physic units. Pressure is not measured.
func (r Reading) Env() physic.Env {
	return physic.Env{
		Temperature: physic.ZeroCelsius + physic.Temperature(float64(r.Temperature)*float64(physic.Kelvin)),
		Humidity:    physic.RelativeHumidity(float64(r.Humidity) * float64(physic.PercentRH)),
	}
}

func (dht *DHT) String() string {
	return dht.name
}

// Sense implements physic.SenseEnv. It follows the same interval rules as Read.
func (dht *DHT) Sense(e *physic.Env) error {
	reading, err := dht.readSnapshot(context.Background())
	if err != nil {
		return err
	}
	if !reading.Valid() {
		return ErrInvalidReading
	}
	env := reading.Env()
	e.Temperature = env.Temperature
	e.Humidity = env.Humidity
	return nil
}

// readSnapshot is Read followed by Snapshot without releasing the lock, so a
// concurrent read cannot replace the values in between.
func (dht *DHT) readSnapshot(ctx context.Context) (Reading, error) {
	dht.mu.Lock()
	defer dht.mu.Unlock()
	if err := dht.read(ctx, dht.waitForRead); err != nil {
		return Reading{}, err
	}
	return dht.snapshot(), nil
}

// SenseContinuous implements physic.SenseEnv. Readings are sent every
// interval until Halt is called, which closes the channel.
func (dht *DHT) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	if interval <= 0 {
		return nil, errors.New("dht: interval must be positive")
	}

	dht.mu.Lock()
	defer dht.mu.Unlock()
	if dht.cancel != nil {
		return nil, errors.New("dht: already sensing continuously")
	}

	ctx, cancel := context.WithCancel(context.Background())
	envs := make(chan physic.Env)
	stopped := make(chan struct{})
	dht.cancel = cancel
	dht.stopped = stopped

	go func() {
		defer close(stopped)
		defer close(envs)
		dht.ReadBackground(ctx, interval, func(reading Reading) {
			select {
			case envs <- reading.Env():
			case <-ctx.Done():
			}
		})
	}()

	return envs, nil
}

// Precision implements physic.SenseEnv.
func (dht *DHT) Precision(e *physic.Env) {
	dht.mu.Lock()
	defer dht.mu.Unlock()
	e.Pressure = 0
	if dht.sensorType == DHT11 {
		e.Temperature = physic.Kelvin
		e.Humidity = physic.PercentRH
		return
	}
	e.Temperature = physic.Kelvin / 10
	e.Humidity = physic.PercentRH / 10
}

// Halt stops continuous sensing. It implements conn.Resource.
func (dht *DHT) Halt() error {
	dht.mu.Lock()
	cancel, stopped := dht.cancel, dht.stopped
	dht.cancel = nil
	dht.stopped = nil
	dht.mu.Unlock()

	if cancel != nil {
		cancel()
		<-stopped
	}
	return nil
}
