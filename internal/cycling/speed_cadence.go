package cycling

import (
	"time"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/wire"
)

const (
	cscFlagWheelRevolutions = 0
	cscFlagCrankRevolutions = 1
)

// SpeedCadenceMeasurement is a decoded CSC Measurement (0x2A5B) value.
// Wheel event times tick at 1/1024 s.
type SpeedCadenceMeasurement struct {
	Timestamp time.Time
	Flags     wire.FlagSet
	Truncated bool

	Revolutions
}

// DecodeSpeedCadenceMeasurement parses a CSC Measurement value.
// See: https://www.bluetooth.com/specifications/specs/cycling-speed-and-cadence-service-1-0/
func DecodeSpeedCadenceMeasurement(buf []byte) *SpeedCadenceMeasurement {
	if len(buf) == 0 {
		return nil
	}
	m := &SpeedCadenceMeasurement{Timestamp: now()}
	r := wire.NewReader(buf)

	rawFlags, _ := r.Uint8()
	flags := wire.FlagSet(rawFlags)
	m.Flags = flags

	if flags.Has(cscFlagWheelRevolutions) && !readWheelPair(r, &m.Revolutions) {
		m.Truncated = true
		return m
	}
	if flags.Has(cscFlagCrankRevolutions) && !readCrankPair(r, &m.Revolutions) {
		m.Truncated = true
		return m
	}
	return m
}
