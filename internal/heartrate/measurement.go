// Package heartrate decodes the Heart Rate Service characteristics.
package heartrate

import (
	"time"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/wire"
)

const (
	flagRateUint16     = 0
	flagEnergyExpended = 3
	flagRRIntervals    = 4

	// RRTicksPerSecond is the RR interval clock.
	RRTicksPerSecond = 1024
)

var now = time.Now

// ContactStatus is the sensor contact state carried in flag bits 1-2.
type ContactStatus uint8

const (
	ContactNotSupported ContactStatus = iota
	ContactNotDetected
	ContactDetected
)

func (c ContactStatus) String() string {
	switch c {
	case ContactNotDetected:
		return "Not Detected"
	case ContactDetected:
		return "Detected"
	default:
		return "Not Supported"
	}
}

func contactStatusFromFlags(flags wire.FlagSet) ContactStatus {
	switch (uint32(flags) & 0x06) >> 1 {
	case 2:
		return ContactNotDetected
	case 3:
		return ContactDetected
	default:
		return ContactNotSupported
	}
}

// Measurement is a decoded Heart Rate Measurement (0x2A37) value.
type Measurement struct {
	Timestamp time.Time
	Flags     wire.FlagSet
	Truncated bool

	HasHeartRate bool
	HeartRate    uint16 // bpm

	ContactStatus ContactStatus

	HasEnergyExpended bool
	EnergyExpended    uint16 // kJ

	// RRIntervals are raw 1/1024 s ticks, oldest first.
	RRIntervals []uint16
}

// RRDurations converts the raw RR intervals.
func (m *Measurement) RRDurations() []time.Duration {
	out := make([]time.Duration, len(m.RRIntervals))
	for i, rr := range m.RRIntervals {
		out[i] = time.Duration(rr) * time.Second / RRTicksPerSecond
	}
	return out
}

// DecodeMeasurement parses a Heart Rate Measurement value.
// See: https://www.bluetooth.com/specifications/specs/heart-rate-service-1-0/
func DecodeMeasurement(buf []byte) *Measurement {
	if len(buf) == 0 {
		return nil
	}
	m := &Measurement{Timestamp: now()}
	r := wire.NewReader(buf)

	rawFlags, _ := r.Uint8()
	flags := wire.FlagSet(rawFlags)
	m.Flags = flags
	m.ContactStatus = contactStatusFromFlags(flags)

	// 1. Heart Rate (UINT8 or UINT16 depending on bit 0)
	if flags.Has(flagRateUint16) {
		v, ok := r.Uint16()
		if !ok {
			m.Truncated = true
			return m
		}
		m.HeartRate = v
	} else {
		v, ok := r.Uint8()
		if !ok {
			m.Truncated = true
			return m
		}
		m.HeartRate = uint16(v)
	}
	m.HasHeartRate = true

	// 2. Energy Expended (UINT16, kJ)
	if flags.Has(flagEnergyExpended) {
		v, ok := r.Uint16()
		if !ok {
			m.Truncated = true
			return m
		}
		m.EnergyExpended = v
		m.HasEnergyExpended = true
	}

	// 3. RR-Intervals (UINT16 each, until the end of the value)
	if flags.Has(flagRRIntervals) {
		for r.Remaining() >= 2 {
			rr, _ := r.Uint16()
			m.RRIntervals = append(m.RRIntervals, rr)
		}
		if r.Remaining() != 0 {
			m.Truncated = true
		}
	}
	return m
}

// BodySensorLocation is the Body Sensor Location (0x2A38) value.
type BodySensorLocation uint8

const (
	LocationOther BodySensorLocation = iota
	LocationChest
	LocationWrist
	LocationFinger
	LocationHand
	LocationEarLobe
	LocationFoot
)

var bodySensorLocationNames = [...]string{"Other", "Chest", "Wrist", "Finger", "Hand", "Ear Lobe", "Foot"}

func (l BodySensorLocation) String() string {
	if int(l) < len(bodySensorLocationNames) {
		return bodySensorLocationNames[l]
	}
	return bodySensorLocationNames[LocationOther]
}

// DecodeBodySensorLocation maps unknown codes to LocationOther. ok is false for an
// empty value.
func DecodeBodySensorLocation(buf []byte) (BodySensorLocation, bool) {
	if len(buf) == 0 {
		return LocationOther, false
	}
	if int(buf[0]) >= len(bodySensorLocationNames) {
		return LocationOther, true
	}
	return BodySensorLocation(buf[0]), true
}

// ResetEnergyExpended is the Heart Rate Control Point command that zeroes the energy
// counter.
func ResetEnergyExpended() []byte {
	return []byte{0x01}
}
