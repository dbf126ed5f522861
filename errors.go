package dht

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeoutAcknowledge means the sensor never released the line to start its response.
	ErrTimeoutAcknowledge = errors.New("dht: timeout waiting for acknowledge")
	// ErrSensorNotReady means the line stayed high after the acknowledge,
	// usually because the sensor was polled too soon or is not connected.
	ErrSensorNotReady = errors.New("dht: sensor not ready")
	// ErrTimeoutBit means a bit's low or high phase took too long.
	ErrTimeoutBit = errors.New("dht: timeout reading bit")
	// ErrBitShift means the humidity high bit was set, which no sensor sends.
	ErrBitShift = errors.New("dht: bit shift anomaly")
	// ErrChecksum means the frame was received in full but did not add up.
	ErrChecksum = errors.New("dht: checksum mismatch")
	// ErrInvalidReading is returned by Sense when the cached values are invalid.
	ErrInvalidReading = errors.New("dht: no valid reading")
	// ErrUnsupported is returned on platforms without a GPIO backend.
	ErrUnsupported = errors.New("dht: unsupported platform")
)

// Phase is the line level being timed when a bit times out.
type Phase int

const (
	// PhaseLow is the gap before the bit.
	PhaseLow Phase = iota
	// PhaseHigh is the pulse carrying the bit value.
	PhaseHigh
)

func (p Phase) String() string {
	if p == PhaseHigh {
		return "high"
	}
	return "low"
}

// BitTimeoutError reports which bit and phase timed out.
type BitTimeoutError struct {
	Bit   int
	Phase Phase
}

func (e *BitTimeoutError) Error() string {
	return fmt.Sprintf("%v: bit %d %v phase", ErrTimeoutBit, e.Bit, e.Phase)
}

// Is lets errors.Is match ErrTimeoutBit.
func (e *BitTimeoutError) Is(target error) bool {
	return target == ErrTimeoutBit
}

// ChecksumError carries the received and computed checksum.
type ChecksumError struct {
	Got  uint8
	Want uint8
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%v: got 0x%02x want 0x%02x", ErrChecksum, e.Got, e.Want)
}

// Is lets errors.Is match ErrChecksum.
func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksum
}
