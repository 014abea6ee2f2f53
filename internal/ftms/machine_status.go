package ftms

import (
	"time"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/wire"
)

// MachineStatus is a decoded Fitness Machine Status (0x2ADA) notification. Which
// parameter is present depends on OpCode.
type MachineStatus struct {
	Timestamp time.Time
	OpCode    MachineStatusOpCode
	Truncated bool

	HasStopPauseParameter bool
	Stopped               bool // false means paused

	HasTargetSpeed bool
	TargetSpeedKmh float64

	HasTargetIncline     bool
	TargetInclinePercent float64

	HasTargetResistance   bool
	TargetResistanceLevel float64

	HasTargetPower   bool
	TargetPowerWatts int16

	HasTargetHeartRate bool
	TargetHeartRateBpm uint8

	HasTargetedExpendedEnergy bool
	TargetedExpendedEnergy    uint16 // kcal

	HasTargetedSteps bool
	TargetedSteps    uint16

	HasTargetedStrides bool
	TargetedStrides    uint16

	HasTargetedDistance    bool
	TargetedDistanceMeters uint32

	HasTargetedTrainingTime bool
	TargetedTrainingTime    time.Duration

	HasSimulation bool
	Simulation    SimulationParameters

	HasWheelCircumference bool
	WheelCircumferenceMM  float64

	HasSpinDownStatus bool
	SpinDownStatus    SpinDownStatus
	HasSpinDownTime   bool
	SpinDownTime      time.Duration

	HasTargetedCadence bool
	TargetedCadenceRpm float64
}

// DecodeMachineStatus parses a machine status notification. Unknown op codes decode to
// StatusReservedForFutureUse with no parameter.
func DecodeMachineStatus(buf []byte) *MachineStatus {
	if len(buf) == 0 {
		return nil
	}
	s := &MachineStatus{Timestamp: now(), OpCode: MachineStatusOpCodeFromCode(buf[0])}
	r := wire.NewReader(buf[1:])
	ok := true

	switch s.OpCode {
	case StatusStoppedOrPausedByUser:
		var v uint8
		if v, ok = r.Uint8(); ok {
			s.Stopped = v == stopParameter
			s.HasStopPauseParameter = true
		}
	case StatusTargetSpeedChanged:
		var v uint16
		if v, ok = r.Uint16(); ok {
			s.TargetSpeedKmh = float64(v) * 0.01
			s.HasTargetSpeed = true
		}
	case StatusTargetInclineChanged:
		var v int16
		if v, ok = r.Int16(); ok {
			s.TargetInclinePercent = float64(v) * 0.1
			s.HasTargetIncline = true
		}
	case StatusTargetResistanceLevelChanged:
		// some trainers send a SINT16, older ones the single UINT8 byte
		if r.Remaining() >= 2 {
			v, _ := r.Int16()
			s.TargetResistanceLevel = float64(v) * 0.1
			s.HasTargetResistance = true
		} else {
			var v uint8
			if v, ok = r.Uint8(); ok {
				s.TargetResistanceLevel = float64(v) * 0.1
				s.HasTargetResistance = true
			}
		}
	case StatusTargetPowerChanged:
		if s.TargetPowerWatts, ok = r.Int16(); ok {
			s.HasTargetPower = true
		}
	case StatusTargetHeartRateChanged:
		if s.TargetHeartRateBpm, ok = r.Uint8(); ok {
			s.HasTargetHeartRate = true
		}
	case StatusTargetedExpendedEnergyChanged:
		if s.TargetedExpendedEnergy, ok = r.Uint16(); ok {
			s.HasTargetedExpendedEnergy = true
		}
	case StatusTargetedStepsChanged:
		if s.TargetedSteps, ok = r.Uint16(); ok {
			s.HasTargetedSteps = true
		}
	case StatusTargetedStridesChanged:
		if s.TargetedStrides, ok = r.Uint16(); ok {
			s.HasTargetedStrides = true
		}
	case StatusTargetedDistanceChanged:
		if s.TargetedDistanceMeters, ok = r.Uint24(); ok {
			s.HasTargetedDistance = true
		}
	case StatusTargetedTrainingTimeChanged:
		var v uint16
		if v, ok = r.Uint16(); ok {
			s.TargetedTrainingTime = time.Duration(v) * time.Second
			s.HasTargetedTrainingTime = true
		}
	case StatusIndoorBikeSimulationParametersChanged:
		var b []byte
		if b, ok = r.Bytes(6); ok {
			s.Simulation = SimulationParameters{
				WindSpeedMps:                 float64(int16(uint16(b[0])|uint16(b[1])<<8)) * 0.001,
				GradePercent:                 float64(int16(uint16(b[2])|uint16(b[3])<<8)) * 0.01,
				RollingResistanceCoefficient: float64(b[4]) * 0.0001,
				WindResistanceCoefficient:    float64(b[5]) * 0.01,
			}
			s.HasSimulation = true
		}
	case StatusWheelCircumferenceChanged:
		var v uint16
		if v, ok = r.Uint16(); ok {
			s.WheelCircumferenceMM = float64(v) * 0.1
			s.HasWheelCircumference = true
		}
	case StatusSpinDownStatus:
		var v uint8
		if v, ok = r.Uint8(); ok {
			s.SpinDownStatus = SpinDownStatusFromCode(v)
			s.HasSpinDownStatus = true
			if s.SpinDownStatus == SpinDownSuccess || s.SpinDownStatus == SpinDownError {
				// spin down time in ms, optional
				if ms, present := r.Uint16(); present {
					s.SpinDownTime = time.Duration(ms) * time.Millisecond
					s.HasSpinDownTime = true
				}
			}
		}
	case StatusTargetedCadenceChanged:
		var v uint16
		if v, ok = r.Uint16(); ok {
			s.TargetedCadenceRpm = float64(v) * 0.5
			s.HasTargetedCadence = true
		}
	}
	s.Truncated = !ok
	return s
}
