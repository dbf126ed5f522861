package dht

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// readSensor wakes the sensor and reads one frame into dht.frame.
func (dht *DHT) readSensor() error {
	dht.frame = Frame{}

	// send start low
	err := dht.pin.Out(gpio.Low)
	if err != nil {
		dht.pin.Out(gpio.High)
		return fmt.Errorf("pin out low error: %w", err)
	}
	dht.clock.SleepMicros(dht.wakeupMicros())

	// release the line, the pull up takes it high
	err = dht.pin.In(gpio.PullUp, gpio.NoEdge)
	if err != nil {
		dht.pin.Out(gpio.High)
		return fmt.Errorf("pin in error: %w", err)
	}
	dht.clock.SleepMicros(dht.timing.SettleMicros)

	err = dht.sample()

	// set pin to high so ready for next time
	errOut := dht.pin.Out(gpio.High)
	if err == nil && errOut != nil {
		err = fmt.Errorf("pin out high error: %w", errOut)
	}
	return err
}

// sample times the acknowledge and the 40 data bits. It is the only part run
// with interrupts disabled.
func (dht *DHT) sample() error {
	if dht.disableIRQ {
		dht.irq.Disable()
		defer dht.irq.Enable()
	}

	loops := dht.timing.TimeoutLoops()

	// sensor pulls low, then high, then low again to start the first bit
	if !dht.waitWhile(gpio.Low, loops) {
		return ErrTimeoutAcknowledge
	}
	if !dht.waitWhile(gpio.High, loops) {
		return ErrSensorNotReady
	}

	var mask uint8 = 0x80
	idx := 0
	for i := 0; i < 40; i++ {
		if !dht.waitWhile(gpio.Low, loops) {
			return &BitTimeoutError{Bit: i, Phase: PhaseLow}
		}

		start := dht.clock.Micros()
		if !dht.waitWhile(gpio.High, loops) {
			return &BitTimeoutError{Bit: i, Phase: PhaseHigh}
		}
		// ~26-28 us high is a 0, ~70 us is a 1
		if dht.clock.Micros()-start > dht.timing.BitThresholdMicros {
			dht.frame[idx] |= mask
		}

		mask >>= 1
		if mask == 0 {
			mask = 0x80
			idx++
		}
	}

	// humidity never reaches 0x8000 or 128 %, so a set high bit means the
	// sampling loop slipped by one edge
	if dht.frame[0]&0x80 != 0 {
		return ErrBitShift
	}

	return nil
}

// waitWhile polls the pin while it reads level, at most loops times.
// It returns false on timeout.
func (dht *DHT) waitWhile(level gpio.Level, loops uint32) bool {
	for dht.pin.Read() == level {
		loops--
		if loops == 0 {
			return false
		}
	}
	return true
}

// wakeupMicros is the wake-up time plus the configured margin.
func (dht *DHT) wakeupMicros() uint32 {
	us := uint32(dht.wakeup.Microseconds())
	return us * (100 + dht.timing.WakeupMarginPercent) / 100
}
