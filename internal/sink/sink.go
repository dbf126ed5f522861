// Package sink delivers sensor readings to MQTT and InfluxDB.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	dht "github.com/MichaelS11/go-dhtnew"
)

// Sample is a good reading taken at a wall clock time.
type Sample struct {
	Sensor  string
	Reading dht.Reading
	Unit    dht.TemperatureUnit
	Time    time.Time
}

// Humidity is the humidity rounded to the sensor's 0.1 resolution.
func (s Sample) Humidity() float64 {
	return round1(s.Reading.Humidity)
}

// Temperature is the temperature in s.Unit rounded to 0.1.
func (s Sample) Temperature() float64 {
	return round1(s.Reading.TemperatureIn(s.Unit))
}

func (s Sample) unitName() string {
	if s.Unit == dht.Fahrenheit {
		return "F"
	}
	return "C"
}

func round1(v float32) float64 {
	return math.Round(float64(v)*10) / 10
}

type payload struct {
	Sensor      string  `json:"sensor"`
	Type        string  `json:"type"`
	Humidity    float64 `json:"humidity"`
	Temperature float64 `json:"temperature"`
	Unit        string  `json:"unit"`
	TsMs        int64   `json:"ts_ms"`
}

// MarshalJSON encodes the sample as published on MQTT.
func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal(payload{
		Sensor:      s.Sensor,
		Type:        s.Reading.Type.String(),
		Humidity:    s.Humidity(),
		Temperature: s.Temperature(),
		Unit:        s.unitName(),
		TsMs:        s.Time.UnixMilli(),
	})
}

// Sink receives samples.
type Sink interface {
	Write(ctx context.Context, s Sample) error
	Close() error
}

// Multi writes every sample to all sinks.
type Multi []Sink

// Write writes to every sink, even when one fails.
func (m Multi) Write(ctx context.Context, s Sample) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Write(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m Multi) Close() error {
	var errs []error
	for _, sink := range m {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
