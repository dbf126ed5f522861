//go:build windows
// +build windows

package dht

// NewDHT is not available on Windows, there is no GPIO backend.
// Use New with your own Pin and Clock instead.
func NewDHT(pinName string, sensorType SensorType, opts ...Option) (*DHT, error) {
	return nil, ErrUnsupported
}
