package smartcontrol

import "github.com/lowaak/smart-trainer/trainer-protocol/internal/kinetic"

// Control types, the first byte of every command.
const (
	ControlSetPerformance      byte = 0x00
	ControlFirmware            byte = 0x01
	ControlMotorSpeed          byte = 0x02
	ControlSpindownCalibration byte = 0x03
	ControlAntiRattle          byte = 0x04
)

// ControlMode selects how the unit applies resistance.
type ControlMode uint8

const (
	ModeERG        ControlMode = 0x00
	ModeFluid      ControlMode = 0x01
	ModeResistance ControlMode = 0x02
	ModeSimulation ControlMode = 0x03
)

var controlModeNames = [...]string{"ERG", "Fluid", "Resistance", "Simulation"}

// ControlModeFromCode maps unknown codes to ModeERG.
func ControlModeFromCode(code uint8) ControlMode {
	if int(code) < len(controlModeNames) {
		return ControlMode(code)
	}
	return ModeERG
}

func (m ControlMode) String() string {
	if int(m) < len(controlModeNames) {
		return controlModeNames[m]
	}
	return controlModeNames[ModeERG]
}

// CalibrationState is the spin down calibration progress reported in the Kinetic
// config value.
type CalibrationState = kinetic.CalibrationState

const (
	CalibrationNotPerformed    = kinetic.CalibrationNotPerformed
	CalibrationInitializing    = kinetic.CalibrationInitializing
	CalibrationSpeedUp         = kinetic.CalibrationSpeedUp
	CalibrationStartCoasting   = kinetic.CalibrationStartCoasting
	CalibrationCoasting        = kinetic.CalibrationCoasting
	CalibrationSpeedUpDetected = kinetic.CalibrationSpeedUpDetected
	CalibrationComplete        = kinetic.CalibrationComplete
)

// CalibrationStateFromCode maps unknown codes to CalibrationNotPerformed.
func CalibrationStateFromCode(code uint8) CalibrationState {
	return kinetic.CalibrationStateFromCode(code)
}
