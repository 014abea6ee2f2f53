package ftms

import "fmt"

// ControlOpCode is a Fitness Machine Control Point op code.
type ControlOpCode uint8

const (
	OpRequestControl                ControlOpCode = 0x00
	OpReset                         ControlOpCode = 0x01
	OpSetTargetSpeed                ControlOpCode = 0x02
	OpSetTargetInclination          ControlOpCode = 0x03
	OpSetTargetResistanceLevel      ControlOpCode = 0x04
	OpSetTargetPower                ControlOpCode = 0x05
	OpSetTargetHeartRate            ControlOpCode = 0x06
	OpStartOrResume                 ControlOpCode = 0x07
	OpStopOrPause                   ControlOpCode = 0x08
	OpSetTargetedExpendedEnergy     ControlOpCode = 0x09
	OpSetTargetedSteps              ControlOpCode = 0x0A
	OpSetTargetedStrides            ControlOpCode = 0x0B
	OpSetTargetedDistance           ControlOpCode = 0x0C
	OpSetTargetedTrainingTime       ControlOpCode = 0x0D
	OpSetTargetedTimeInTwoHRZones   ControlOpCode = 0x0E
	OpSetTargetedTimeInThreeHRZones ControlOpCode = 0x0F
	OpSetTargetedTimeInFiveHRZones  ControlOpCode = 0x10
	OpSetIndoorBikeSimulation       ControlOpCode = 0x11
	OpSetWheelCircumference         ControlOpCode = 0x12
	OpSpinDownControl               ControlOpCode = 0x13
	OpSetTargetedCadence            ControlOpCode = 0x14
	OpResponseCode                  ControlOpCode = 0x80
	OpUnknown                       ControlOpCode = 0xFF
)

var controlOpCodeNames = map[ControlOpCode]string{
	OpRequestControl:                "Request Control",
	OpReset:                         "Reset",
	OpSetTargetSpeed:                "Set Target Speed",
	OpSetTargetInclination:          "Set Target Inclination",
	OpSetTargetResistanceLevel:      "Set Target Resistance",
	OpSetTargetPower:                "Set Target Power",
	OpSetTargetHeartRate:            "Set Target Heart Rate",
	OpStartOrResume:                 "Start/Resume",
	OpStopOrPause:                   "Stop/Pause",
	OpSetTargetedExpendedEnergy:     "Set Targeted Expended Energy",
	OpSetTargetedSteps:              "Set Targeted Steps",
	OpSetTargetedStrides:            "Set Targeted Strides",
	OpSetTargetedDistance:           "Set Targeted Distance",
	OpSetTargetedTrainingTime:       "Set Targeted Training Time",
	OpSetTargetedTimeInTwoHRZones:   "Set Targeted Time In Two HR Zones",
	OpSetTargetedTimeInThreeHRZones: "Set Targeted Time In Three HR Zones",
	OpSetTargetedTimeInFiveHRZones:  "Set Targeted Time In Five HR Zones",
	OpSetIndoorBikeSimulation:       "Set Indoor Bike Simulation",
	OpSetWheelCircumference:         "Set Wheel Circumference",
	OpSpinDownControl:               "Spin Down Control",
	OpSetTargetedCadence:            "Set Targeted Cadence",
	OpResponseCode:                  "Response Code",
	OpUnknown:                       "Unknown",
}

// ControlOpCodeFromCode maps unlisted codes to OpUnknown.
func ControlOpCodeFromCode(code uint8) ControlOpCode {
	if _, ok := controlOpCodeNames[ControlOpCode(code)]; ok {
		return ControlOpCode(code)
	}
	return OpUnknown
}

func (o ControlOpCode) String() string {
	if name, ok := controlOpCodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%02X)", uint8(o))
}

// ResultCode is the outcome carried by a control point response.
type ResultCode uint8

const (
	ResultReserved            ResultCode = 0x00
	ResultSuccess             ResultCode = 0x01
	ResultOpCodeNotSupported  ResultCode = 0x02
	ResultInvalidParameter    ResultCode = 0x03
	ResultOperationFailed     ResultCode = 0x04
	ResultControlNotPermitted ResultCode = 0x05
)

var resultCodeNames = [...]string{
	"Reserved", "Success", "Op Code Not Supported", "Invalid Parameter", "Operation Failed",
	"Control Not Permitted",
}

// ResultCodeFromCode maps unlisted codes to ResultReserved.
func ResultCodeFromCode(code uint8) ResultCode {
	if int(code) < len(resultCodeNames) {
		return ResultCode(code)
	}
	return ResultReserved
}

func (r ResultCode) String() string {
	if int(r) < len(resultCodeNames) {
		return resultCodeNames[r]
	}
	return resultCodeNames[ResultReserved]
}

// MachineStatusOpCode is the first byte of a Fitness Machine Status notification.
type MachineStatusOpCode uint8

const (
	StatusReservedForFutureUse                  MachineStatusOpCode = 0x00
	StatusReset                                 MachineStatusOpCode = 0x01
	StatusStoppedOrPausedByUser                 MachineStatusOpCode = 0x02
	StatusStoppedBySafetyKey                    MachineStatusOpCode = 0x03
	StatusStartedOrResumedByUser                MachineStatusOpCode = 0x04
	StatusTargetSpeedChanged                    MachineStatusOpCode = 0x05
	StatusTargetInclineChanged                  MachineStatusOpCode = 0x06
	StatusTargetResistanceLevelChanged          MachineStatusOpCode = 0x07
	StatusTargetPowerChanged                    MachineStatusOpCode = 0x08
	StatusTargetHeartRateChanged                MachineStatusOpCode = 0x09
	StatusTargetedExpendedEnergyChanged         MachineStatusOpCode = 0x0A
	StatusTargetedStepsChanged                  MachineStatusOpCode = 0x0B
	StatusTargetedStridesChanged                MachineStatusOpCode = 0x0C
	StatusTargetedDistanceChanged               MachineStatusOpCode = 0x0D
	StatusTargetedTrainingTimeChanged           MachineStatusOpCode = 0x0E
	StatusTargetedTimeInTwoHRZonesChanged       MachineStatusOpCode = 0x0F
	StatusTargetedTimeInThreeHRZonesChanged     MachineStatusOpCode = 0x10
	StatusTargetedTimeInFiveHRZonesChanged      MachineStatusOpCode = 0x11
	StatusIndoorBikeSimulationParametersChanged MachineStatusOpCode = 0x12
	StatusWheelCircumferenceChanged             MachineStatusOpCode = 0x13
	StatusSpinDownStatus                        MachineStatusOpCode = 0x14
	StatusTargetedCadenceChanged                MachineStatusOpCode = 0x15
	StatusControlPermissionLost                 MachineStatusOpCode = 0xFF
)

// MachineStatusOpCodeFromCode maps unlisted codes to StatusReservedForFutureUse.
func MachineStatusOpCodeFromCode(code uint8) MachineStatusOpCode {
	if code <= uint8(StatusTargetedCadenceChanged) || code == uint8(StatusControlPermissionLost) {
		return MachineStatusOpCode(code)
	}
	return StatusReservedForFutureUse
}

var machineStatusNames = map[MachineStatusOpCode]string{
	StatusReservedForFutureUse:                  "Reserved",
	StatusReset:                                 "Reset",
	StatusStoppedOrPausedByUser:                 "Stopped or Paused by User",
	StatusStoppedBySafetyKey:                    "Stopped by Safety Key",
	StatusStartedOrResumedByUser:                "Started or Resumed by User",
	StatusTargetSpeedChanged:                    "Target Speed Changed",
	StatusTargetInclineChanged:                  "Target Incline Changed",
	StatusTargetResistanceLevelChanged:          "Target Resistance Level Changed",
	StatusTargetPowerChanged:                    "Target Power Changed",
	StatusTargetHeartRateChanged:                "Target Heart Rate Changed",
	StatusTargetedExpendedEnergyChanged:         "Targeted Expended Energy Changed",
	StatusTargetedStepsChanged:                  "Targeted Steps Changed",
	StatusTargetedStridesChanged:                "Targeted Strides Changed",
	StatusTargetedDistanceChanged:               "Targeted Distance Changed",
	StatusTargetedTrainingTimeChanged:           "Targeted Training Time Changed",
	StatusTargetedTimeInTwoHRZonesChanged:       "Targeted Time In Two HR Zones Changed",
	StatusTargetedTimeInThreeHRZonesChanged:     "Targeted Time In Three HR Zones Changed",
	StatusTargetedTimeInFiveHRZonesChanged:      "Targeted Time In Five HR Zones Changed",
	StatusIndoorBikeSimulationParametersChanged: "Indoor Bike Simulation Parameters Changed",
	StatusWheelCircumferenceChanged:             "Wheel Circumference Changed",
	StatusSpinDownStatus:                        "Spin Down Status",
	StatusTargetedCadenceChanged:                "Targeted Cadence Changed",
	StatusControlPermissionLost:                 "Control Permission Lost",
}

func (s MachineStatusOpCode) String() string {
	if name, ok := machineStatusNames[s]; ok {
		return name
	}
	return machineStatusNames[StatusReservedForFutureUse]
}

// SpinDownStatus is the parameter of a spin down status notification.
type SpinDownStatus uint8

const (
	SpinDownReserved     SpinDownStatus = 0x00
	SpinDownRequested    SpinDownStatus = 0x01
	SpinDownSuccess      SpinDownStatus = 0x02
	SpinDownError        SpinDownStatus = 0x03
	SpinDownStopPedaling SpinDownStatus = 0x04
)

var spinDownStatusNames = [...]string{"Reserved", "Spin Down Requested", "Success", "Error", "Stop Pedaling"}

// SpinDownStatusFromCode maps unlisted codes to SpinDownReserved.
func SpinDownStatusFromCode(code uint8) SpinDownStatus {
	if int(code) < len(spinDownStatusNames) {
		return SpinDownStatus(code)
	}
	return SpinDownReserved
}

func (s SpinDownStatus) String() string {
	if int(s) < len(spinDownStatusNames) {
		return spinDownStatusNames[s]
	}
	return spinDownStatusNames[SpinDownReserved]
}

// TrainingStatusCode is the status byte of a Training Status notification.
type TrainingStatusCode uint8

const (
	TrainingOther TrainingStatusCode = iota
	TrainingIdle
	TrainingWarmingUp
	TrainingLowIntensityInterval
	TrainingHighIntensityInterval
	TrainingRecoveryInterval
	TrainingIsometric
	TrainingHeartRateControl
	TrainingFitnessTest
	TrainingSpeedOutsideControlRegionLow
	TrainingSpeedOutsideControlRegionHigh
	TrainingCoolDown
	TrainingWattControl
	TrainingManualMode
	TrainingPreWorkout
	TrainingPostWorkout
)

var trainingStatusNames = [...]string{
	"Other", "Idle", "Warming Up", "Low Intensity Interval", "High Intensity Interval",
	"Recovery Interval", "Isometric", "Heart Rate Control", "Fitness Test",
	"Speed Outside Control Region - Low", "Speed Outside Control Region - High", "Cool Down",
	"Watt Control", "Manual Mode", "Pre-Workout", "Post-Workout",
}

// TrainingStatusCodeFromCode maps unlisted codes to TrainingOther.
func TrainingStatusCodeFromCode(code uint8) TrainingStatusCode {
	if int(code) < len(trainingStatusNames) {
		return TrainingStatusCode(code)
	}
	return TrainingOther
}

func (s TrainingStatusCode) String() string {
	if int(s) < len(trainingStatusNames) {
		return trainingStatusNames[s]
	}
	return trainingStatusNames[TrainingOther]
}
