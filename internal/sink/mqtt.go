package sink

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/MichaelS11/go-dhtnew/internal/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultKeepAlive      = 30 * time.Second
	disconnectQuiesceMs   = 250

	statusOnline  = "online"
	statusOffline = "offline"
)

// mqttClient is the part of pahomqtt.Client the sink uses.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes samples as JSON to <prefix>/<sensor>/state and keeps a
// retained online/offline status on <prefix>/<sensor>/status.
//
// Safe for concurrent use, paho serialises publishes.
type MQTT struct {
	client mqttClient
	cfg    config.MQTTConfig
	sensor string
}

// NewMQTT connects to the broker.
//
// Parameters:
//   - cfg: MQTT section of the configuration
//   - sensor: sensor name used in topics
//
// Returns:
//   - *MQTT: connected sink
//   - error: ErrDisabled, or ErrConnectionFailed wrapping the cause
func NewMQTT(cfg config.MQTTConfig, sensor string) (*MQTT, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	m := &MQTT{cfg: cfg, sensor: sensor}

	opts := buildClientOptions(cfg)
	opts.SetWill(m.statusTopic(), statusOffline, 1, true)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		// restore status after every reconnect
		m.publishStatus(statusOnline)
	})

	client := pahomqtt.NewClient(opts)
	m.client = client

	if err := connect(client, defaultConnectTimeout); err != nil {
		return nil, err
	}

	return m, nil
}

// mqttConnector is the part of pahomqtt.Client used to connect.
type mqttConnector interface {
	Connect() pahomqtt.Token
	Disconnect(quiesce uint)
}

// connect waits up to timeout for the first connection. With connect retry
// on, paho keeps retrying in the background until Disconnect, so the client
// is disconnected on failure.
func connect(client mqttConnector, timeout time.Duration) error {
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, timeout)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return nil
}

func newMQTTWithClient(client mqttClient, cfg config.MQTTConfig, sensor string) *MQTT {
	return &MQTT{client: client, cfg: cfg, sensor: sensor}
}

func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	return opts
}

func (m *MQTT) stateTopic() string {
	return m.cfg.TopicPrefix + "/" + m.sensor + "/state"
}

func (m *MQTT) statusTopic() string {
	return m.cfg.TopicPrefix + "/" + m.sensor + "/status"
}

func (m *MQTT) publishStatus(status string) pahomqtt.Token {
	return m.client.Publish(m.statusTopic(), 1, true, status)
}

// Write publishes the sample and waits for the broker to acknowledge it,
// or for ctx to be done.
func (m *MQTT) Write(ctx context.Context, s Sample) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding sample: %w", err)
	}

	// #nosec G115 -- qos validated to 0..2 by config
	token := m.client.Publish(m.stateTopic(), byte(m.cfg.QoS), m.cfg.Retain, data)
	return waitToken(ctx, token)
}

// Close publishes the offline status and disconnects.
func (m *MQTT) Close() error {
	token := m.publishStatus(statusOffline)
	token.WaitTimeout(time.Second)
	m.client.Disconnect(disconnectQuiesceMs)
	return nil
}

func waitToken(ctx context.Context, token pahomqtt.Token) error {
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrPublishFailed, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}
