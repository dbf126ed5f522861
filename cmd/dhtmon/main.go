// Command dhtmon reads a DHT11/DHT22 sensor on a GPIO pin and publishes
// the readings to MQTT and/or InfluxDB.
//
// Usage:
//
//	dhtmon [-config dhtmon.yaml] [-once]
//
// With -once a single reading is printed to stdout and dhtmon exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	dht "github.com/MichaelS11/go-dhtnew"
	"github.com/MichaelS11/go-dhtnew/internal/config"
	"github.com/MichaelS11/go-dhtnew/internal/logging"
	"github.com/MichaelS11/go-dhtnew/internal/sink"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	once := flag.Bool("once", false, "print one reading and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *once); err != nil {
		fmt.Fprintln(os.Stderr, "dhtmon:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, once bool) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	}

	logger := logging.New(cfg.Logging, version).Sensor(cfg.Sensor)

	sensorType, err := cfg.Sensor.SensorType()
	if err != nil {
		return err
	}
	unit, err := cfg.Sensor.TemperatureUnit()
	if err != nil {
		return err
	}

	if err := dht.HostInit(); err != nil {
		return fmt.Errorf("host init: %w", err)
	}

	sensor, err := dht.NewDHT(cfg.Sensor.Pin, sensorType, dht.WithLogger(logger.Logger))
	if err != nil {
		return err
	}
	defer sensor.Halt()

	sensor.SetReadDelay(cfg.Sensor.ReadDelayMs)
	sensor.SetWaitForReading(cfg.Sensor.WaitForReading)
	sensor.SetSuppressInterrupts(cfg.Sensor.SuppressInterrupts)
	sensor.SetHumidityOffset(cfg.Sensor.HumidityOffset)
	sensor.SetTemperatureOffset(cfg.Sensor.TemperatureOffset)

	if once {
		reading, err := sensor.ReadRetry(ctx, cfg.Sensor.Retries)
		if err != nil {
			return err
		}
		fmt.Printf("%v humidity %.1f %% temperature %.1f %s\n",
			reading.Type, reading.Humidity, reading.TemperatureIn(unit), unitSymbol(unit))
		return nil
	}

	sinks := openSinks(cfg, logger)
	defer sinks.Close()

	logger.Info("starting", "type", sensorType, "interval", cfg.Sensor.Interval)

	sensor.ReadBackground(ctx, cfg.Sensor.Interval, func(reading dht.Reading) {
		sample := sink.Sample{
			Sensor:  cfg.Sensor.Name,
			Reading: reading,
			Unit:    unit,
			Time:    time.Now(),
		}
		logger.Debug("reading", "type", reading.Type, "humidity", sample.Humidity(), "temperature", sample.Temperature())

		writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := sinks.Write(writeCtx, sample); err != nil {
			logger.Warn("publish failed", "error", err)
		}
	})

	logger.Info("stopped")
	return nil
}

// openSinks connects the enabled sinks. A sink that fails to connect is
// logged and skipped, readings still go to the others.
func openSinks(cfg *config.Config, logger *logging.Logger) sink.Multi {
	var sinks sink.Multi

	mqttSink, err := sink.NewMQTT(cfg.MQTT, cfg.Sensor.Name)
	switch {
	case err == nil:
		sinks = append(sinks, mqttSink)
	case !errors.Is(err, sink.ErrDisabled):
		logger.Error("mqtt unavailable", "error", err)
	}

	influxSink, err := sink.NewInflux(cfg.InfluxDB)
	switch {
	case err == nil:
		influxSink.SetOnError(func(err error) {
			logger.Warn("influxdb write failed", "error", err)
		})
		sinks = append(sinks, influxSink)
	case !errors.Is(err, sink.ErrDisabled):
		logger.Error("influxdb unavailable", "error", err)
	}

	return sinks
}

func unitSymbol(unit dht.TemperatureUnit) string {
	if unit == dht.Fahrenheit {
		return "F"
	}
	return "C"
}
