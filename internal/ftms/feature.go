package ftms

import (
	"time"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/wire"
)

// MachineFeature is a bit of the Fitness Machine Features field.
type MachineFeature uint

const (
	MachineAverageSpeed MachineFeature = iota
	MachineCadence
	MachineTotalDistance
	MachineInclination
	MachineElevationGain
	MachinePace
	MachineStepCount
	MachineResistanceLevel
	MachineStrideCount
	MachineExpendedEnergy
	MachineHeartRateMeasurement
	MachineMetabolicEquivalent
	MachineElapsedTime
	MachineRemainingTime
	MachinePowerMeasurement
	MachineForceOnBeltAndPowerOutput
	MachineUserDataRetention
)

// TargetSettingFeature is a bit of the Target Setting Features field.
type TargetSettingFeature uint

const (
	TargetSpeed TargetSettingFeature = iota
	TargetInclination
	TargetResistance
	TargetPower
	TargetHeartRate
	TargetExpendedEnergy
	TargetStepNumber
	TargetStrideNumber
	TargetDistance
	TargetTrainingTime
	TargetTimeInTwoHRZones
	TargetTimeInThreeHRZones
	TargetTimeInFiveHRZones
	TargetIndoorBikeSimulation
	TargetWheelCircumference
	TargetSpinDownControl
	TargetCadence
)

// Features is a decoded Fitness Machine Feature (0x2ACC) value.
type Features struct {
	Timestamp time.Time
	Truncated bool

	HasMachine bool
	Machine    wire.FlagSet

	HasTargetSettings bool
	TargetSettings    wire.FlagSet
}

func (f *Features) Supports(feature MachineFeature) bool {
	return f.HasMachine && f.Machine.Has(uint(feature))
}

func (f *Features) SupportsTarget(feature TargetSettingFeature) bool {
	return f.HasTargetSettings && f.TargetSettings.Has(uint(feature))
}

// DecodeFeatures parses the two 32-bit feature words.
func DecodeFeatures(buf []byte) *Features {
	if len(buf) == 0 {
		return nil
	}
	f := &Features{Timestamp: now()}
	r := wire.NewReader(buf)

	machine, ok := r.Uint32()
	if !ok {
		f.Truncated = true
		return f
	}
	f.Machine = wire.FlagSet(machine)
	f.HasMachine = true

	target, ok := r.Uint32()
	if !ok {
		f.Truncated = true
		return f
	}
	f.TargetSettings = wire.FlagSet(target)
	f.HasTargetSettings = true
	return f
}
