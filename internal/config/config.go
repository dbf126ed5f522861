// Package config loads the dhtmon configuration from YAML, with environment
// variable overrides for deployment specific values and secrets.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	dht "github.com/MichaelS11/go-dhtnew"
)

// Config is the root configuration structure for dhtmon.
type Config struct {
	Sensor   SensorConfig   `yaml:"sensor"`
	Logging  LoggingConfig  `yaml:"logging"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
}

// SensorConfig describes the sensor and how it is polled.
type SensorConfig struct {
	// Name identifies the sensor in published readings.
	Name string `yaml:"name"`
	// Pin is the periph.io pin name, e.g. "GPIO4".
	Pin string `yaml:"pin"`
	// Type is "auto", "dht11" or "dht22".
	Type string `yaml:"type"`
	// ReadDelayMs overrides the minimum time between reads, 0 is the type default.
	ReadDelayMs        uint16        `yaml:"read_delay_ms"`
	WaitForReading     bool          `yaml:"wait_for_reading"`
	SuppressInterrupts bool          `yaml:"suppress_interrupts"`
	HumidityOffset     float32       `yaml:"humidity_offset"`
	TemperatureOffset  float32       `yaml:"temperature_offset"`
	Unit               string        `yaml:"unit"`
	Interval           time.Duration `yaml:"interval"`
	Retries            int           `yaml:"retries"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MQTTConfig contains MQTT broker connection and publish settings.
type MQTTConfig struct {
	Enabled     bool             `yaml:"enabled"`
	Broker      MQTTBrokerConfig `yaml:"broker"`
	Auth        MQTTAuthConfig   `yaml:"auth"`
	QoS         int              `yaml:"qos"`
	Retain      bool             `yaml:"retain"`
	TopicPrefix string           `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// Load reads configuration from a YAML file, applies environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load for configuration already in memory.
func Parse(data []byte) (*Config, error) {
	cfg := defaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

func defaultConfig() *Config {
	return &Config{
		Sensor: SensorConfig{
			Name:               "dht",
			Pin:                "GPIO4",
			Type:               "auto",
			SuppressInterrupts: true,
			Unit:               "celsius",
			Interval:           30 * time.Second,
			Retries:            11,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "dhtmon",
			},
			QoS:         1,
			Retain:      true,
			TopicPrefix: "dhtmon",
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Bucket:        "sensors",
			BatchSize:     100,
			FlushInterval: 10,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	// Sensor
	if v := os.Getenv("DHTMON_PIN"); v != "" {
		cfg.Sensor.Pin = v
	}
	if v := os.Getenv("DHTMON_SENSOR_TYPE"); v != "" {
		cfg.Sensor.Type = v
	}

	// Logging
	if v := os.Getenv("DHTMON_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// MQTT
	if v := os.Getenv("DHTMON_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DHTMON_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DHTMON_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("DHTMON_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Sensor.Pin == "" {
		errs = append(errs, "sensor.pin is required")
	}
	if _, err := c.Sensor.SensorType(); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := c.Sensor.TemperatureUnit(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Sensor.Interval <= 0 {
		errs = append(errs, "sensor.interval must be positive")
	}
	if c.Sensor.Retries < 1 {
		errs = append(errs, "sensor.retries must be at least 1")
	}

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required")
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required")
		}
		if c.InfluxDB.Bucket == "" || c.InfluxDB.Org == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// SensorType maps the type string to a dht.SensorType.
func (s SensorConfig) SensorType() (dht.SensorType, error) {
	switch strings.ToLower(s.Type) {
	case "", "auto":
		return dht.Unknown, nil
	case "dht11":
		return dht.DHT11, nil
	case "dht22", "am2302":
		return dht.DHT22, nil
	}
	return dht.Unknown, fmt.Errorf("sensor.type %q must be auto, dht11 or dht22", s.Type)
}

// TemperatureUnit maps the unit string to a dht.TemperatureUnit.
func (s SensorConfig) TemperatureUnit() (dht.TemperatureUnit, error) {
	switch strings.ToLower(s.Unit) {
	case "", "c", "celsius":
		return dht.Celsius, nil
	case "f", "fahrenheit":
		return dht.Fahrenheit, nil
	}
	return dht.Celsius, fmt.Errorf("sensor.unit %q must be celsius or fahrenheit", s.Unit)
}
