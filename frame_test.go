package dht

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeValues_DHT22(t *testing.T) {
	f := Frame{0x02, 0x8C, 0x01, 0x09, 0x9B}

	humidity, temperature := decodeValues(f, DHT22, 0, 0)
	// (2*256+140)*0.1 and (1*256+9)*0.1
	assert.InDelta(t, 65.2, humidity, 0.001)
	assert.InDelta(t, 26.5, temperature, 0.001)

	// 0x02+0x8C+0x01+0x09 is 0x98, so this frame is rejected as a whole
	_, _, err := decodeFrame(f, DHT22, 0, 0)
	require.ErrorIs(t, err, ErrChecksum)
	var sumErr *ChecksumError
	require.ErrorAs(t, err, &sumErr)
	assert.Equal(t, uint8(0x9B), sumErr.Got)
	assert.Equal(t, uint8(0x98), sumErr.Want)

	f[4] = 0x98
	humidity, temperature, err = decodeFrame(f, DHT22, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 65.2, humidity, 0.001)
	assert.InDelta(t, 26.5, temperature, 0.001)
}

func TestDecodeValues_DHT11(t *testing.T) {
	humidity, temperature := decodeValues(Frame{45, 3, 21, 7}, DHT11, 0, 0)
	assert.InDelta(t, 45.3, humidity, 0.001)
	assert.InDelta(t, 21.7, temperature, 0.001)
}

func TestDecodeValues_NegativeTemperature(t *testing.T) {
	tests := []struct {
		name       string
		sensorType SensorType
		positive   Frame
		want       float32
	}{
		{name: "DHT22", sensorType: DHT22, positive: Frame{0x01, 0x90, 0x00, 0x65}, want: 10.1},
		{name: "DHT22 large", sensorType: DHT22, positive: Frame{0x01, 0x90, 0x01, 0x90}, want: 40.0},
		{name: "DHT11", sensorType: DHT11, positive: Frame{30, 0, 5, 2}, want: 5.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			negative := tt.positive
			negative[2] |= 0x80

			_, pos := decodeValues(tt.positive, tt.sensorType, 0, 0)
			_, neg := decodeValues(negative, tt.sensorType, 0, 0)
			assert.InDelta(t, tt.want, pos, 0.001)
			assert.InDelta(t, -tt.want, neg, 0.001)

			// decoding again keeps the sign
			_, again := decodeValues(negative, tt.sensorType, 0, 0)
			assert.Equal(t, neg, again)
		})
	}
}

func TestDecodeValues_Offsets(t *testing.T) {
	f := Frame{0x03, 0xDE, 0x00, 0xFA} // 99.0 %, 25.0 C

	humidity, temperature := decodeValues(f, DHT22, 2.5, 60)
	assert.Equal(t, float32(100), humidity)
	assert.InDelta(t, 85, temperature, 0.001)

	humidity, temperature = decodeValues(f, DHT22, -150, -90)
	assert.Equal(t, float32(0), humidity)
	assert.InDelta(t, -65, temperature, 0.001)

	humidity, _ = decodeValues(f, DHT22, -9, 0)
	assert.InDelta(t, 90, humidity, 0.001)
}

func TestDecodeFrame_Checksum(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 1000; i++ {
		var f Frame
		for j := range f[:4] {
			f[j] = byte(rng.Intn(256))
		}
		sensorType := DHT11
		if i%2 == 0 {
			sensorType = DHT22
		}

		f[4] = f[0] + f[1] + f[2] + f[3]
		h1, t1, err := decodeFrame(f, sensorType, 0, 0)
		require.NoError(t, err, "frame %x", f)
		h2, t2, err := decodeFrame(f, sensorType, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, h1, h2)
		assert.Equal(t, t1, t2)
		assert.GreaterOrEqual(t, h1, float32(0))
		assert.LessOrEqual(t, h1, float32(100))

		f[4] += byte(1 + rng.Intn(255))
		h, temp, err := decodeFrame(f, sensorType, 0, 0)
		require.ErrorIs(t, err, ErrChecksum, "frame %x", f)
		assert.Equal(t, InvalidValue, h)
		assert.Equal(t, InvalidValue, temp)
	}
}

func TestFrame_Checksum(t *testing.T) {
	f := Frame{0xFF, 0xFF, 0x01, 0x02}
	assert.Equal(t, uint8(0x01), f.Checksum())
	assert.False(t, f.Valid())
	f[4] = 0x01
	assert.True(t, f.Valid())
}

func TestChecksumError_Message(t *testing.T) {
	err := &ChecksumError{Got: 0x05, Want: 0x98}
	assert.Equal(t, "dht: checksum mismatch: got 0x05 want 0x98", err.Error())
	assert.ErrorIs(t, err, ErrChecksum)
}
