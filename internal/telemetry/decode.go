package telemetry

import (
	"errors"
	"fmt"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/cycling"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/ftms"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/gatt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/heartrate"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/kinetic"
)

var (
	ErrUnknownKind  = errors.New("unknown stream kind")
	ErrNotDecodable = errors.New("stream is write-only")
	ErrMalformed    = errors.New("malformed value")
)

const rrIntervalToMsec = 1000.0 / heartrate.RRTicksPerSecond

// SystemID is a Device Information System ID value.
type SystemID []byte

func (s SystemID) String() string {
	return kinetic.FormatSystemID(s)
}

// Decode parses buf as a value of kind. The result is the record type of the matching
// decoder, e.g. *ftms.IndoorBikeData for KindIndoorBikeData.
func Decode(kind gatt.Kind, buf []byte) (any, error) {
	switch kind {
	case gatt.KindHeartRate:
		return orMalformed(kind, heartrate.DecodeMeasurement(buf))
	case gatt.KindBodySensorLocation:
		loc, ok := heartrate.DecodeBodySensorLocation(buf)
		if !ok {
			return nil, fmt.Errorf("%w: %s is empty", ErrMalformed, kind)
		}
		return loc, nil
	case gatt.KindSpeedCadence:
		return orMalformed(kind, cycling.DecodeSpeedCadenceMeasurement(buf))
	case gatt.KindSpeedCadenceFeature:
		return orMalformed(kind, cycling.DecodeSpeedCadenceFeatures(buf))
	case gatt.KindSensorLocation:
		loc, ok := cycling.DecodeSensorLocation(buf)
		if !ok {
			return nil, fmt.Errorf("%w: %s is empty", ErrMalformed, kind)
		}
		return loc, nil
	case gatt.KindCyclingPower:
		return orMalformed(kind, cycling.DecodePowerMeasurement(buf))
	case gatt.KindCyclingPowerFeature:
		return orMalformed(kind, cycling.DecodePowerFeatures(buf))
	case gatt.KindIndoorBikeData:
		return orMalformed(kind, ftms.DecodeIndoorBikeData(buf))
	case gatt.KindFTMSFeature:
		return orMalformed(kind, ftms.DecodeFeatures(buf))
	case gatt.KindTrainingStatus:
		return orMalformed(kind, ftms.DecodeTrainingStatus(buf))
	case gatt.KindSupportedResistanceRange:
		return orMalformed(kind, ftms.DecodeSupportedResistanceRange(buf))
	case gatt.KindSupportedPowerRange:
		return orMalformed(kind, ftms.DecodeSupportedPowerRange(buf))
	case gatt.KindFTMSControlPoint:
		return orMalformed(kind, ftms.DecodeControlPointResponse(buf))
	case gatt.KindFTMSMachineStatus:
		return orMalformed(kind, ftms.DecodeMachineStatus(buf))
	case gatt.KindSystemID:
		if err := kinetic.ValidateSystemID(buf); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		return SystemID(append([]byte(nil), buf...)), nil
	case gatt.KindKineticConfig:
		return orMalformed(kind, kinetic.DecodeConfig(buf))
	case gatt.KindKineticControlPoint:
		return orMalformed(kind, kinetic.DecodeControlPointResponse(buf))
	case gatt.KindKineticDebug:
		return orMalformed(kind, kinetic.DecodeDebugData(buf))
	case gatt.KindInRideControlPoint, gatt.KindSmartControlControlPoint:
		return nil, fmt.Errorf("%w: %s", ErrNotDecodable, kind)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// orMalformed keeps a nil record from turning into a non-nil interface.
func orMalformed[T any](kind gatt.Kind, record *T) (any, error) {
	if record == nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, kind)
	}
	return record, nil
}

// recordMetrics extracts the values a record carries directly. Speed and cadence
// that need a previous sample are added by the Monitor.
func recordMetrics(record any) Metrics {
	m := Metrics{}
	switch r := record.(type) {
	case *heartrate.Measurement:
		if r.HasHeartRate {
			m[MetricHeartRate] = float64(r.HeartRate)
		}
		if r.HasEnergyExpended {
			m[MetricTotalEnergy] = float64(r.EnergyExpended)
		}
		if n := len(r.RRIntervals); n > 0 {
			m[MetricRRInterval] = float64(r.RRIntervals[n-1]) * rrIntervalToMsec
		}
	case *cycling.PowerMeasurement:
		if r.HasInstantaneousPower {
			m[MetricInstantaneousPower] = float64(r.InstantaneousPower)
		}
		if r.HasPedalPowerBalance {
			m[MetricPedalBalance] = r.PedalPowerBalancePercent()
		}
		if r.HasAccumulatedEnergy {
			m[MetricTotalEnergy] = float64(r.AccumulatedEnergy)
		}
	case *ftms.IndoorBikeData:
		indoorBikeMetrics(r, m)
	case *ftms.MachineStatus:
		if r.HasTargetPower {
			m[MetricTargetPower] = float64(r.TargetPowerWatts)
		}
		if r.HasTargetResistance {
			m[MetricTargetResistance] = r.TargetResistanceLevel
		}
		if r.HasSimulation {
			m[MetricTargetGrade] = r.Simulation.GradePercent
		}
	case *kinetic.DebugData:
		m[MetricTargetResistance] = float64(r.TargetResistance)
		m[MetricActualResistance] = float64(r.ActualResistance)
	}
	return m
}

func indoorBikeMetrics(data *ftms.IndoorBikeData, m Metrics) {
	if data.HasInstantaneousSpeed {
		m[MetricInstantaneousSpeed] = data.InstantaneousSpeedKmh
	}
	if data.HasAverageSpeed {
		m[MetricAverageSpeed] = data.AverageSpeedKmh
	}
	if data.HasInstantaneousCadence {
		m[MetricInstantaneousCadence] = data.InstantaneousCadenceRpm
	}
	if data.HasAverageCadence {
		m[MetricAverageCadence] = data.AverageCadenceRpm
	}
	if data.HasTotalDistance {
		m[MetricTotalDistance] = float64(data.TotalDistanceMeters)
	}
	if data.HasResistanceLevel {
		m[MetricResistanceLevel] = float64(data.ResistanceLevel)
	}
	if data.HasInstantaneousPower {
		m[MetricInstantaneousPower] = float64(data.InstantaneousPowerWatts)
	}
	if data.HasAveragePower {
		m[MetricAveragePower] = float64(data.AveragePowerWatts)
	}
	if data.HasExpendedEnergy {
		m[MetricTotalEnergy] = float64(data.TotalEnergyKJ)
		m[MetricEnergyPerHour] = float64(data.EnergyPerHourKJ)
		m[MetricEnergyPerMinute] = float64(data.EnergyPerMinuteKJ)
	}
	if data.HasHeartRate {
		m[MetricHeartRate] = float64(data.HeartRateBpm)
	}
	if data.HasMetabolicEquivalent {
		m[MetricMetabolicEquivalent] = data.MetabolicEquivalent
	}
	if data.HasElapsedTime {
		m[MetricElapsedTime] = float64(data.ElapsedTimeSeconds)
	}
	if data.HasRemainingTime {
		m[MetricRemainingTime] = float64(data.RemainingTimeSeconds)
	}
}
