package dht

import (
	"periph.io/x/conn/v3/gpio"
)

// simTiming gives 100 polls per edge, the simulated pin costs 1 us per read.
var simTiming = Timing{
	BitThresholdMicros:  50,
	ClockHz:             4000000,
	SettleMicros:        40,
	WakeupMarginPercent: 10,
}

type segment struct {
	level gpio.Level
	us    uint64
}

// simSensor is a Pin, Clock and Interrupts backed by a virtual microsecond
// clock and a sensor that answers with frame.
type simSensor struct {
	now uint64

	// kind is what is wired to the pin, Unknown for nothing
	kind  SensorType
	frame Frame

	output     bool
	level      gpio.Level
	lowStart   uint64
	lowHeld    uint64
	responding bool
	respStart  uint64
	segments   []segment

	// failures
	stuckLow     bool
	failNext     int
	failEvery    int
	wakeups      int
	stallBit     int
	stallBitLow  int
	transactions int

	irqDepth    int
	irqDisables int
	yields      int
}

func newSim(kind SensorType, frame Frame) *simSensor {
	return &simSensor{
		now:         10000000,
		kind:        kind,
		frame:       frame,
		output:      true,
		level:       gpio.High,
		stallBit:    -1,
		stallBitLow: -1,
	}
}

func validFrame(b0, b1, b2, b3 byte) Frame {
	f := Frame{b0, b1, b2, b3}
	f[4] = f.Checksum()
	return f
}

func (s *simSensor) String() string { return "SIM" }

func (s *simSensor) Out(l gpio.Level) error {
	if l == gpio.Low && !(s.output && s.level == gpio.Low) {
		s.lowStart = s.now
		s.transactions++
	}
	s.output = true
	s.level = l
	s.responding = false
	return nil
}

func (s *simSensor) In(pull gpio.Pull, edge gpio.Edge) error {
	if s.output && s.level == gpio.Low {
		s.lowHeld = s.now - s.lowStart
		s.responding = s.answers(s.lowHeld)
		if s.responding {
			s.respStart = s.now
			s.segments = s.waveform()
		}
	}
	s.output = false
	return nil
}

func (s *simSensor) answers(held uint64) bool {
	s.wakeups++
	if s.failEvery > 0 && s.wakeups%s.failEvery == 0 {
		return false
	}
	if s.failNext > 0 {
		s.failNext--
		return false
	}
	switch s.kind {
	case DHT11:
		return held >= 18000
	case DHT22:
		return held >= 800
	}
	return false
}

func (s *simSensor) waveform() []segment {
	segs := []segment{{gpio.High, 20}, {gpio.Low, 80}, {gpio.High, 80}}
	for i := 0; i < 40; i++ {
		low := uint64(50)
		if i == s.stallBitLow {
			low = 1000000
		}
		segs = append(segs, segment{gpio.Low, low})

		high := uint64(26)
		if s.frame[i/8]&(0x80>>(i%8)) != 0 {
			high = 70
		}
		if i == s.stallBit {
			high = 1000000
		}
		segs = append(segs, segment{gpio.High, high})
	}
	return append(segs, segment{gpio.Low, 50})
}

func (s *simSensor) Read() gpio.Level {
	defer func() { s.now++ }()
	if s.stuckLow {
		return gpio.Low
	}
	if s.output {
		return s.level
	}
	if !s.responding {
		return gpio.High
	}
	t := s.now - s.respStart
	for _, seg := range s.segments {
		if t < seg.us {
			return seg.level
		}
		t -= seg.us
	}
	return gpio.High
}

func (s *simSensor) Millis() uint32        { return uint32(s.now / 1000) }
func (s *simSensor) Micros() uint32        { return uint32(s.now) }
func (s *simSensor) SleepMicros(us uint32) { s.now += uint64(us) }
func (s *simSensor) SleepMillis(ms uint32) { s.now += uint64(ms) * 1000 }
func (s *simSensor) Yield()                { s.yields++ }

func (s *simSensor) Disable() {
	s.irqDepth++
	s.irqDisables++
}

func (s *simSensor) Enable() { s.irqDepth-- }

// advance moves the virtual clock forward.
func (s *simSensor) advance(ms uint64) { s.now += ms * 1000 }

func newSimDHT(s *simSensor, sensorType SensorType) *DHT {
	return New(s, s, sensorType, WithTiming(simTiming), WithInterrupts(s))
}
