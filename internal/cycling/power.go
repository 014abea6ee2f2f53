package cycling

import (
	"time"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/wire"
)

// Cycling Power Measurement flag bits
const (
	powerFlagPedalBalance       = 0
	powerFlagPedalBalanceLeft   = 1
	powerFlagAccumulatedTorque  = 2
	powerFlagTorqueCrankBased   = 3
	powerFlagWheelRevolutions   = 4
	powerFlagCrankRevolutions   = 5
	powerFlagExtremeForce       = 6
	powerFlagExtremeTorque      = 7
	powerFlagExtremeAngles      = 8
	powerFlagTopDeadSpot        = 9
	powerFlagBottomDeadSpot     = 10
	powerFlagAccumulatedEnergy  = 11
	powerFlagOffsetCompensation = 12
)

var now = time.Now

// PowerMeasurement is a decoded Cycling Power Measurement (0x2A63) value.
type PowerMeasurement struct {
	Timestamp time.Time
	Flags     wire.FlagSet
	// Truncated is set when the value ended before every flagged field was read.
	Truncated bool

	HasInstantaneousPower bool
	InstantaneousPower    int16 // watts

	HasPedalPowerBalance bool
	PedalPowerBalance    uint8 // 1/2 percent
	// PedalBalanceLeftReference is true when the balance refers to the left pedal.
	PedalBalanceLeftReference bool

	HasAccumulatedTorque bool
	AccumulatedTorque    uint16 // 1/32 Nm
	TorqueCrankBased     bool

	Revolutions

	HasExtremeForceMagnitudes bool
	MaximumForceMagnitude     int16 // newtons
	MinimumForceMagnitude     int16

	HasExtremeTorqueMagnitudes bool
	MaximumTorqueMagnitude     int16 // 1/32 Nm
	MinimumTorqueMagnitude     int16

	HasExtremeAngles bool
	MaximumAngle     uint16 // degrees, 12 bits
	MinimumAngle     uint16

	HasTopDeadSpotAngle bool
	TopDeadSpotAngle    uint16 // degrees

	HasBottomDeadSpotAngle bool
	BottomDeadSpotAngle    uint16

	HasAccumulatedEnergy bool
	AccumulatedEnergy    uint16 // kJ

	OffsetCompensationIndicator bool
}

func (m *PowerMeasurement) truncate() *PowerMeasurement {
	m.Truncated = true
	return m
}

// PedalPowerBalancePercent returns the balance in percent.
func (m *PowerMeasurement) PedalPowerBalancePercent() float64 {
	return float64(m.PedalPowerBalance) / 2
}

// AccumulatedTorqueNm returns the accumulated torque in newton metres.
func (m *PowerMeasurement) AccumulatedTorqueNm() float64 {
	return float64(m.AccumulatedTorque) / 32
}

// DecodePowerMeasurement parses a Cycling Power Measurement value.
// It returns nil for an empty buffer. A buffer that ends early yields the fields
// read so far with Truncated set.
// See: https://www.bluetooth.com/specifications/specs/cycling-power-service-1-1/
func DecodePowerMeasurement(buf []byte) *PowerMeasurement {
	if len(buf) == 0 {
		return nil
	}
	m := &PowerMeasurement{Timestamp: now()}
	r := wire.NewReader(buf)

	rawFlags, ok := r.Uint16()
	if !ok {
		return m.truncate()
	}
	flags := wire.FlagSet(rawFlags)
	m.Flags = flags
	m.OffsetCompensationIndicator = flags.Has(powerFlagOffsetCompensation)

	// 1. Instantaneous Power (SINT16, watts), always present
	if m.InstantaneousPower, ok = r.Int16(); !ok {
		return m.truncate()
	}
	m.HasInstantaneousPower = true

	// 2. Pedal Power Balance (UINT8, 1/2 percent)
	if flags.Has(powerFlagPedalBalance) {
		if m.PedalPowerBalance, ok = r.Uint8(); !ok {
			return m.truncate()
		}
		m.HasPedalPowerBalance = true
		m.PedalBalanceLeftReference = flags.Has(powerFlagPedalBalanceLeft)
	}

	// 3. Accumulated Torque (UINT16, 1/32 Nm)
	if flags.Has(powerFlagAccumulatedTorque) {
		if m.AccumulatedTorque, ok = r.Uint16(); !ok {
			return m.truncate()
		}
		m.HasAccumulatedTorque = true
		m.TorqueCrankBased = flags.Has(powerFlagTorqueCrankBased)
	}

	// 4. Wheel Revolution Data (UINT32 revolutions, UINT16 1/2048 s event time)
	if flags.Has(powerFlagWheelRevolutions) {
		if !readWheelPair(r, &m.Revolutions) {
			return m.truncate()
		}
	}

	// 5. Crank Revolution Data (UINT16 revolutions, UINT16 1/1024 s event time)
	if flags.Has(powerFlagCrankRevolutions) {
		if !readCrankPair(r, &m.Revolutions) {
			return m.truncate()
		}
	}

	// 6. Extreme Force Magnitudes (SINT16 max, SINT16 min, newtons)
	if flags.Has(powerFlagExtremeForce) {
		b, ok := r.Bytes(4)
		if !ok {
			return m.truncate()
		}
		m.MaximumForceMagnitude = int16(uint16(b[0]) | uint16(b[1])<<8)
		m.MinimumForceMagnitude = int16(uint16(b[2]) | uint16(b[3])<<8)
		m.HasExtremeForceMagnitudes = true
	}

	// 7. Extreme Torque Magnitudes (SINT16 max, SINT16 min, 1/32 Nm)
	if flags.Has(powerFlagExtremeTorque) {
		b, ok := r.Bytes(4)
		if !ok {
			return m.truncate()
		}
		m.MaximumTorqueMagnitude = int16(uint16(b[0]) | uint16(b[1])<<8)
		m.MinimumTorqueMagnitude = int16(uint16(b[2]) | uint16(b[3])<<8)
		m.HasExtremeTorqueMagnitudes = true
	}

	// 8. Extreme Angles (UINT12 max in the low bits, UINT12 min in the high bits)
	if flags.Has(powerFlagExtremeAngles) {
		b, ok := r.Bytes(3)
		if !ok {
			return m.truncate()
		}
		m.MaximumAngle, m.MinimumAngle = unpackAngles(b)
		m.HasExtremeAngles = true
	}

	// 9. Top Dead Spot Angle (UINT16, degrees)
	if flags.Has(powerFlagTopDeadSpot) {
		if m.TopDeadSpotAngle, ok = r.Uint16(); !ok {
			return m.truncate()
		}
		m.HasTopDeadSpotAngle = true
	}

	// 10. Bottom Dead Spot Angle (UINT16, degrees)
	if flags.Has(powerFlagBottomDeadSpot) {
		if m.BottomDeadSpotAngle, ok = r.Uint16(); !ok {
			return m.truncate()
		}
		m.HasBottomDeadSpotAngle = true
	}

	// 11. Accumulated Energy (UINT16, kJ)
	if flags.Has(powerFlagAccumulatedEnergy) {
		if m.AccumulatedEnergy, ok = r.Uint16(); !ok {
			return m.truncate()
		}
		m.HasAccumulatedEnergy = true
	}

	return m
}

// unpackAngles splits the 24-bit extreme angle field into its two 12-bit halves.
func unpackAngles(b []byte) (maximum, minimum uint16) {
	maximum = uint16(b[0]) | uint16(b[1]&0x0F)<<8
	minimum = uint16(b[1]>>4) | uint16(b[2])<<4
	return maximum, minimum
}

func readWheelPair(r *wire.Reader, rev *Revolutions) bool {
	b, ok := r.Bytes(6)
	if !ok {
		return false
	}
	rev.CumulativeWheelRevolutions = uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	rev.LastWheelEventTime = uint16(b[4]) | uint16(b[5])<<8
	rev.HasWheelRevolutions = true
	return true
}

func readCrankPair(r *wire.Reader, rev *Revolutions) bool {
	b, ok := r.Bytes(4)
	if !ok {
		return false
	}
	rev.CumulativeCrankRevolutions = uint16(b[0]) | uint16(b[1])<<8
	rev.LastCrankEventTime = uint16(b[2]) | uint16(b[3])<<8
	rev.HasCrankRevolutions = true
	return true
}
