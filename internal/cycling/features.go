package cycling

import (
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/wire"
)

// PowerFeature is a bit index of the Cycling Power Feature (0x2A65) value.
type PowerFeature uint

const (
	PowerFeaturePedalPowerBalance PowerFeature = iota
	PowerFeatureAccumulatedTorque
	PowerFeatureWheelRevolutionData
	PowerFeatureCrankRevolutionData
	PowerFeatureExtremeMagnitudes
	PowerFeatureExtremeAngles
	PowerFeatureDeadSpotAngles
	PowerFeatureAccumulatedEnergy
	PowerFeatureOffsetCompensationIndicator
	PowerFeatureOffsetCompensation
	PowerFeatureContentMasking
	PowerFeatureMultipleSensorLocations
	PowerFeatureCrankLengthAdjustment
	PowerFeatureChainLengthAdjustment
	PowerFeatureChainWeightAdjustment
	PowerFeatureSpanLengthAdjustment
	PowerFeatureSensorMeasurementContext
	PowerFeatureInstantaneousMeasurementDirection
	PowerFeatureFactoryCalibrationDate
)

var powerFeatureNames = map[PowerFeature]string{
	PowerFeaturePedalPowerBalance:                 "Pedal Power Balance",
	PowerFeatureAccumulatedTorque:                 "Accumulated Torque",
	PowerFeatureWheelRevolutionData:               "Wheel Revolution Data",
	PowerFeatureCrankRevolutionData:               "Crank Revolution Data",
	PowerFeatureExtremeMagnitudes:                 "Extreme Magnitudes",
	PowerFeatureExtremeAngles:                     "Extreme Angles",
	PowerFeatureDeadSpotAngles:                    "Top and Bottom Dead Spot Angles",
	PowerFeatureAccumulatedEnergy:                 "Accumulated Energy",
	PowerFeatureOffsetCompensationIndicator:       "Offset Compensation Indicator",
	PowerFeatureOffsetCompensation:                "Offset Compensation",
	PowerFeatureContentMasking:                    "Content Masking",
	PowerFeatureMultipleSensorLocations:           "Multiple Sensor Locations",
	PowerFeatureCrankLengthAdjustment:             "Crank Length Adjustment",
	PowerFeatureChainLengthAdjustment:             "Chain Length Adjustment",
	PowerFeatureChainWeightAdjustment:             "Chain Weight Adjustment",
	PowerFeatureSpanLengthAdjustment:              "Span Length Adjustment",
	PowerFeatureSensorMeasurementContext:          "Sensor Measurement Context",
	PowerFeatureInstantaneousMeasurementDirection: "Instantaneous Measurement Direction",
	PowerFeatureFactoryCalibrationDate:            "Factory Calibration Date",
}

func (f PowerFeature) String() string {
	if name, ok := powerFeatureNames[f]; ok {
		return name
	}
	return "Reserved"
}

// PowerFeatures is a decoded Cycling Power Feature value.
type PowerFeatures struct {
	Raw wire.FlagSet
}

func (f PowerFeatures) Supports(feature PowerFeature) bool {
	return f.Raw.Has(uint(feature))
}

// Supported lists the known features that are set.
func (f PowerFeatures) Supported() []PowerFeature {
	var out []PowerFeature
	for _, bit := range f.Raw.Bits() {
		if _, ok := powerFeatureNames[PowerFeature(bit)]; ok {
			out = append(out, PowerFeature(bit))
		}
	}
	return out
}

// DecodePowerFeatures parses the 32-bit feature word. Short values are zero extended.
func DecodePowerFeatures(buf []byte) *PowerFeatures {
	if len(buf) == 0 {
		return nil
	}
	var raw uint32
	for i := 0; i < len(buf) && i < 4; i++ {
		raw |= uint32(buf[i]) << (8 * i)
	}
	return &PowerFeatures{Raw: wire.FlagSet(raw)}
}

// SpeedCadenceFeatures is a decoded CSC Feature (0x2A5C) value.
type SpeedCadenceFeatures struct {
	Raw                     wire.FlagSet
	WheelRevolutionData     bool
	CrankRevolutionData     bool
	MultipleSensorLocations bool
}

func DecodeSpeedCadenceFeatures(buf []byte) *SpeedCadenceFeatures {
	if len(buf) == 0 {
		return nil
	}
	raw := uint32(buf[0])
	if len(buf) > 1 {
		raw |= uint32(buf[1]) << 8
	}
	flags := wire.FlagSet(raw)
	return &SpeedCadenceFeatures{
		Raw:                     flags,
		WheelRevolutionData:     flags.Has(0),
		CrankRevolutionData:     flags.Has(1),
		MultipleSensorLocations: flags.Has(2),
	}
}
