package ftms

import (
	"time"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/wire"
)

// SupportedResistanceRange is a decoded Supported Resistance Level Range (0x2AD6) value.
type SupportedResistanceRange struct {
	Timestamp time.Time
	Truncated bool

	// HasRange is set once both bounds are read.
	HasRange            bool
	Minimum             float64 // unitless, 0.1 resolution
	Maximum             float64
	HasMinimumIncrement bool
	MinimumIncrement    float64
}

// DecodeSupportedResistanceRange parses three SINT16/UINT16 values at 0.1 resolution.
// A value cut short keeps the bounds it holds.
func DecodeSupportedResistanceRange(buf []byte) *SupportedResistanceRange {
	if len(buf) == 0 {
		return nil
	}
	rng := &SupportedResistanceRange{Timestamp: now()}
	r := wire.NewReader(buf)
	minimum, ok1 := r.Int16()
	maximum, ok2 := r.Int16()
	if !ok1 || !ok2 {
		rng.Truncated = true
		return rng
	}
	rng.Minimum = float64(minimum) * 0.1
	rng.Maximum = float64(maximum) * 0.1
	rng.HasRange = true

	increment, ok := r.Uint16()
	if !ok {
		rng.Truncated = true
		return rng
	}
	rng.MinimumIncrement = float64(increment) * 0.1
	rng.HasMinimumIncrement = true
	return rng
}

// SupportedPowerRange is a decoded Supported Power Range (0x2AD8) value.
type SupportedPowerRange struct {
	Timestamp time.Time
	Truncated bool

	HasRange            bool
	MinimumWatts        int16
	MaximumWatts        int16
	HasMinimumIncrement bool
	MinimumIncrement    uint16
}

// Clamp limits a target power to the advertised range.
func (p *SupportedPowerRange) Clamp(watts int16) int16 {
	if !p.HasRange {
		return watts
	}
	if watts < p.MinimumWatts {
		return p.MinimumWatts
	}
	if watts > p.MaximumWatts {
		return p.MaximumWatts
	}
	return watts
}

func DecodeSupportedPowerRange(buf []byte) *SupportedPowerRange {
	if len(buf) == 0 {
		return nil
	}
	rng := &SupportedPowerRange{Timestamp: now()}
	r := wire.NewReader(buf)
	minimum, ok1 := r.Int16()
	maximum, ok2 := r.Int16()
	if !ok1 || !ok2 {
		rng.Truncated = true
		return rng
	}
	rng.MinimumWatts = minimum
	rng.MaximumWatts = maximum
	rng.HasRange = true

	increment, ok := r.Uint16()
	if !ok {
		rng.Truncated = true
		return rng
	}
	rng.MinimumIncrement = increment
	rng.HasMinimumIncrement = true
	return rng
}
