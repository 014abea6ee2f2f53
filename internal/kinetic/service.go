package kinetic

import (
	"encoding/binary"
	"time"
)

const setDeviceNameOpCode = 0x09

// CalibrationState is the spin down calibration progress.
type CalibrationState uint8

const (
	CalibrationNotPerformed    CalibrationState = 0
	CalibrationInitializing    CalibrationState = 1
	CalibrationSpeedUp         CalibrationState = 2
	CalibrationStartCoasting   CalibrationState = 3
	CalibrationCoasting        CalibrationState = 4
	CalibrationSpeedUpDetected CalibrationState = 5
	CalibrationComplete        CalibrationState = 10
)

var calibrationStateNames = map[CalibrationState]string{
	CalibrationNotPerformed:    "Not Performed",
	CalibrationInitializing:    "Initializing",
	CalibrationSpeedUp:         "Speed Up",
	CalibrationStartCoasting:   "Start Coasting",
	CalibrationCoasting:        "Coasting",
	CalibrationSpeedUpDetected: "Speed Up Detected",
	CalibrationComplete:        "Complete",
}

// CalibrationStateFromCode maps unknown codes to CalibrationNotPerformed.
func CalibrationStateFromCode(code uint8) CalibrationState {
	if _, ok := calibrationStateNames[CalibrationState(code)]; ok {
		return CalibrationState(code)
	}
	return CalibrationNotPerformed
}

func (s CalibrationState) String() string {
	if name, ok := calibrationStateNames[s]; ok {
		return name
	}
	return calibrationStateNames[CalibrationNotPerformed]
}

// Config is a decoded Kinetic service configuration (E9410301) value.
type Config struct {
	Timestamp           time.Time
	SystemStatus        uint16
	CalibrationState    CalibrationState
	SpindownTime        time.Duration
	FirmwareUpdateState uint8
	BLERevision         uint8
	AntiRattleRamp      uint8
}

// DecodeConfig needs all eight bytes; anything shorter yields nil.
func DecodeConfig(buf []byte) *Config {
	if len(buf) < 8 {
		return nil
	}
	return &Config{
		Timestamp:           now(),
		SystemStatus:        binary.LittleEndian.Uint16(buf[0:2]),
		CalibrationState:    CalibrationStateFromCode(buf[2]),
		SpindownTime:        time.Duration(binary.LittleEndian.Uint16(buf[3:5])) * time.Millisecond,
		FirmwareUpdateState: buf[5],
		BLERevision:         buf[6],
		AntiRattleRamp:      buf[7],
	}
}

// ControlPointResponse acknowledges a write to the Kinetic control point (E9410302).
type ControlPointResponse struct {
	Timestamp   time.Time
	RequestCode uint8
	Result      uint8
}

func DecodeControlPointResponse(buf []byte) *ControlPointResponse {
	if len(buf) < 3 {
		return nil
	}
	return &ControlPointResponse{Timestamp: now(), RequestCode: buf[1], Result: buf[2]}
}

// Mode is the resistance unit mode reported in debug data.
type Mode uint8

const (
	ModeErg Mode = iota
	ModePosition
	ModeSimulation
)

var modeNames = [...]string{"Erg", "Position", "Simulation"}

// ModeFromCode maps unknown codes to ModeErg.
func ModeFromCode(code uint8) Mode {
	if int(code) < len(modeNames) {
		return Mode(code)
	}
	return ModeErg
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return modeNames[ModeErg]
}

// DebugData is a decoded Kinetic debug (E9410303) value.
type DebugData struct {
	Timestamp        time.Time
	Mode             Mode
	TargetResistance uint16
	ActualResistance uint16
	TargetPosition   uint16
	ActualPosition   uint16
	TempSensorValue  uint16
	TempDieValue     uint16
	TempCalculated   uint16
	HomeAccuracy     uint16
	BLEBuild         uint8
}

// DecodeDebugData needs all eighteen bytes; anything shorter yields nil.
func DecodeDebugData(buf []byte) *DebugData {
	if len(buf) < 18 {
		return nil
	}
	le := binary.LittleEndian
	return &DebugData{
		Timestamp:        now(),
		Mode:             ModeFromCode(buf[0]),
		TargetResistance: le.Uint16(buf[1:3]),
		ActualResistance: le.Uint16(buf[3:5]),
		TargetPosition:   le.Uint16(buf[5:7]),
		ActualPosition:   le.Uint16(buf[7:9]),
		TempSensorValue:  le.Uint16(buf[9:11]),
		TempDieValue:     le.Uint16(buf[11:13]),
		TempCalculated:   le.Uint16(buf[13:15]),
		HomeAccuracy:     le.Uint16(buf[15:17]),
		BLEBuild:         buf[17],
	}
}

// SetDeviceName renames the unit through the Kinetic control point.
func SetDeviceName(name string) []byte {
	return append([]byte{setDeviceNameOpCode}, name...)
}
