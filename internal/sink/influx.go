package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/MichaelS11/go-dhtnew/internal/config"
)

const (
	defaultPingTimeout = 5 * time.Second

	// millisecondsPerSecond converts seconds to milliseconds for the InfluxDB API.
	millisecondsPerSecond = 1000

	measurement = "dht"
)

// pointWriter is the part of api.WriteAPI the sink uses.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Influx writes samples as points of the "dht" measurement, tagged with
// sensor and type. Writes are batched and non-blocking, failures arrive on
// the callback set with SetOnError.
type Influx struct {
	client   influxdb2.Client
	writeAPI pointWriter

	onError func(err error)
	mu      sync.RWMutex
}

// NewInflux connects to InfluxDB and checks that it is healthy.
func NewInflux(cfg config.InfluxDBConfig) (*Influx, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10
	}

	// #nosec G115 -- values validated above to be positive
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultPingTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	in := &Influx{client: client, writeAPI: writeAPI}
	go in.handleWriteErrors(writeAPI.Errors())

	return in, nil
}

func (in *Influx) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		in.mu.RLock()
		callback := in.onError
		in.mu.RUnlock()

		if callback != nil {
			callback(err)
		}
	}
}

// SetOnError sets a callback for async write errors.
func (in *Influx) SetOnError(callback func(err error)) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.onError = callback
}

// Write queues the sample. It does not block.
func (in *Influx) Write(_ context.Context, s Sample) error {
	in.writeAPI.WritePoint(samplePoint(s))
	return nil
}

func samplePoint(s Sample) *write.Point {
	return influxdb2.NewPoint(
		measurement,
		map[string]string{
			"sensor": s.Sensor,
			"type":   s.Reading.Type.String(),
			"unit":   s.unitName(),
		},
		map[string]interface{}{
			"humidity":    s.Humidity(),
			"temperature": s.Temperature(),
		},
		s.Time,
	)
}

// Close flushes pending points and closes the client.
func (in *Influx) Close() error {
	in.writeAPI.Flush()
	if in.client != nil {
		in.client.Close()
	}
	return nil
}
