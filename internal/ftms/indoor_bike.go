// Package ftms decodes and encodes the Fitness Machine Service (0x1826) values used
// by indoor bikes and smart trainers.
// See: https://www.bluetooth.com/specifications/specs/fitness-machine-service-1-0/
package ftms

import (
	"time"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/wire"
)

var now = time.Now

// Indoor Bike Data flag bit positions
const (
	ibdFlagMoreData             = 0 // 0 = Instantaneous Speed present, 1 = not present
	ibdFlagAverageSpeed         = 1
	ibdFlagInstantaneousCadence = 2
	ibdFlagAverageCadence       = 3
	ibdFlagTotalDistance        = 4
	ibdFlagResistanceLevel      = 5
	ibdFlagInstantaneousPower   = 6
	ibdFlagAveragePower         = 7
	ibdFlagExpendedEnergy       = 8
	ibdFlagHeartRate            = 9
	ibdFlagMetabolicEquivalent  = 10
	ibdFlagElapsedTime          = 11
	ibdFlagRemainingTime        = 12
)

// IndoorBikeData holds the fields of an Indoor Bike Data (0x2AD2) notification.
// A Has flag is only set once its field has actually been read.
type IndoorBikeData struct {
	Timestamp time.Time
	Flags     wire.FlagSet
	Truncated bool

	HasInstantaneousSpeed   bool
	HasAverageSpeed         bool
	HasInstantaneousCadence bool
	HasAverageCadence       bool
	HasTotalDistance        bool
	HasResistanceLevel      bool
	HasInstantaneousPower   bool
	HasAveragePower         bool
	HasExpendedEnergy       bool
	HasHeartRate            bool
	HasMetabolicEquivalent  bool
	HasElapsedTime          bool
	HasRemainingTime        bool

	InstantaneousSpeedKmh   float64 // km/h
	AverageSpeedKmh         float64 // km/h
	InstantaneousCadenceRpm float64 // rpm
	AverageCadenceRpm       float64 // rpm
	TotalDistanceMeters     uint32  // meters
	ResistanceLevel         int16   // unitless
	InstantaneousPowerWatts int16   // watts
	AveragePowerWatts       int16   // watts
	TotalEnergyKJ           uint16  // kJ
	EnergyPerHourKJ         uint16  // kJ/hour
	EnergyPerMinuteKJ       uint8   // kJ/min
	HeartRateBpm            uint8   // bpm
	MetabolicEquivalent     float64 // MET
	ElapsedTimeSeconds      uint16  // seconds
	RemainingTimeSeconds    uint16  // seconds
}

func (d *IndoorBikeData) truncate() *IndoorBikeData {
	d.Truncated = true
	return d
}

// DecodeIndoorBikeData parses an Indoor Bike Data value. Fields follow the flag word in
// declared order; decoding stops at the first field the buffer cannot hold.
func DecodeIndoorBikeData(buf []byte) *IndoorBikeData {
	if len(buf) == 0 {
		return nil
	}
	data := &IndoorBikeData{Timestamp: now()}
	r := wire.NewReader(buf)

	rawFlags, ok := r.Uint16()
	if !ok {
		return data.truncate()
	}
	flags := wire.FlagSet(rawFlags)
	data.Flags = flags

	// 1. Instantaneous Speed (UINT16, 0.01 km/h), present when More Data is clear
	if !flags.Has(ibdFlagMoreData) {
		v, ok := r.Uint16()
		if !ok {
			return data.truncate()
		}
		data.InstantaneousSpeedKmh = float64(v) * 0.01
		data.HasInstantaneousSpeed = true
	}

	// 2. Average Speed (UINT16, 0.01 km/h)
	if flags.Has(ibdFlagAverageSpeed) {
		v, ok := r.Uint16()
		if !ok {
			return data.truncate()
		}
		data.AverageSpeedKmh = float64(v) * 0.01
		data.HasAverageSpeed = true
	}

	// 3. Instantaneous Cadence (UINT16, 0.5 rpm)
	if flags.Has(ibdFlagInstantaneousCadence) {
		v, ok := r.Uint16()
		if !ok {
			return data.truncate()
		}
		data.InstantaneousCadenceRpm = float64(v) * 0.5
		data.HasInstantaneousCadence = true
	}

	// 4. Average Cadence (UINT16, 0.5 rpm)
	if flags.Has(ibdFlagAverageCadence) {
		v, ok := r.Uint16()
		if !ok {
			return data.truncate()
		}
		data.AverageCadenceRpm = float64(v) * 0.5
		data.HasAverageCadence = true
	}

	// 5. Total Distance (UINT24, meters)
	if flags.Has(ibdFlagTotalDistance) {
		if data.TotalDistanceMeters, ok = r.Uint24(); !ok {
			return data.truncate()
		}
		data.HasTotalDistance = true
	}

	// 6. Resistance Level (SINT16, unitless)
	if flags.Has(ibdFlagResistanceLevel) {
		if data.ResistanceLevel, ok = r.Int16(); !ok {
			return data.truncate()
		}
		data.HasResistanceLevel = true
	}

	// 7. Instantaneous Power (SINT16, watts)
	if flags.Has(ibdFlagInstantaneousPower) {
		if data.InstantaneousPowerWatts, ok = r.Int16(); !ok {
			return data.truncate()
		}
		data.HasInstantaneousPower = true
	}

	// 8. Average Power (SINT16, watts)
	if flags.Has(ibdFlagAveragePower) {
		if data.AveragePowerWatts, ok = r.Int16(); !ok {
			return data.truncate()
		}
		data.HasAveragePower = true
	}

	// 9. Expended Energy (UINT16 total, UINT16 per hour, UINT8 per minute)
	if flags.Has(ibdFlagExpendedEnergy) {
		b, ok := r.Bytes(5)
		if !ok {
			return data.truncate()
		}
		data.TotalEnergyKJ = uint16(b[0]) | uint16(b[1])<<8
		data.EnergyPerHourKJ = uint16(b[2]) | uint16(b[3])<<8
		data.EnergyPerMinuteKJ = b[4]
		data.HasExpendedEnergy = true
	}

	// 10. Heart Rate (UINT8, bpm)
	if flags.Has(ibdFlagHeartRate) {
		if data.HeartRateBpm, ok = r.Uint8(); !ok {
			return data.truncate()
		}
		data.HasHeartRate = true
	}

	// 11. Metabolic Equivalent (UINT8, 0.1 MET)
	if flags.Has(ibdFlagMetabolicEquivalent) {
		v, ok := r.Uint8()
		if !ok {
			return data.truncate()
		}
		data.MetabolicEquivalent = float64(v) * 0.1
		data.HasMetabolicEquivalent = true
	}

	// 12. Elapsed Time (UINT16, seconds)
	if flags.Has(ibdFlagElapsedTime) {
		if data.ElapsedTimeSeconds, ok = r.Uint16(); !ok {
			return data.truncate()
		}
		data.HasElapsedTime = true
	}

	// 13. Remaining Time (UINT16, seconds)
	if flags.Has(ibdFlagRemainingTime) {
		if data.RemainingTimeSeconds, ok = r.Uint16(); !ok {
			return data.truncate()
		}
		data.HasRemainingTime = true
	}

	return data
}
