package dht

// Frame is the 5 bytes sent by the sensor: humidity high/low, temperature
// high/low and a checksum of the first four.
type Frame [5]byte

// Checksum returns the 8 bit truncated sum of the four data bytes.
func (f Frame) Checksum() uint8 {
	return f[0] + f[1] + f[2] + f[3]
}

// Valid reports whether the checksum byte matches the data bytes.
func (f Frame) Valid() bool {
	return f[4] == f.Checksum()
}

// decodeValues converts the data bytes for the given sensor type.
// Offsets are applied and humidity is clamped to [0, 100].
func decodeValues(f Frame, sensorType SensorType, humidityOffset, tempOffset float32) (humidity, temperature float32) {
	if sensorType == DHT22 {
		humidity = float32(int(f[0])*256+int(f[1])) * 0.1
		temperature = float32(int(f[2]&0x7f)*256+int(f[3])) * 0.1
	} else {
		humidity = float32(f[0]) + float32(f[1])*0.1
		temperature = float32(f[2]&0x7f) + float32(f[3])*0.1
	}

	// high bit of temperature is the sign
	if f[2]&0x80 != 0 {
		temperature = -temperature
	}

	humidity += humidityOffset
	if humidity < 0 {
		humidity = 0
	} else if humidity > 100 {
		humidity = 100
	}
	// temperature is not clamped, an offset may move it past the sensor range
	temperature += tempOffset

	return humidity, temperature
}

// decodeFrame decodes and checks a frame. On checksum mismatch both values
// are InvalidValue.
func decodeFrame(f Frame, sensorType SensorType, humidityOffset, tempOffset float32) (humidity, temperature float32, err error) {
	humidity, temperature = decodeValues(f, sensorType, humidityOffset, tempOffset)
	if !f.Valid() {
		return InvalidValue, InvalidValue, &ChecksumError{Got: f[4], Want: f.Checksum()}
	}
	return humidity, temperature, nil
}
