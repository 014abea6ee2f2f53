// Package inride builds commands for the inRide power sensor. Every command is
// prefixed with a two byte key picked from the unit's system ID.
package inride

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/kinetic"
)

// Sensor command op codes
const (
	opSetSpindownParams = 0x01
	opSetName           = 0x02
	opStartCalibration  = 0x03
	opStopCalibration   = 0x04
	opSetSpindownTime   = 0x05
)

// Calibration timing constants, in ticks of the 32 kHz sensor clock.
const (
	calibrationReady    = 602
	calibrationStart    = 655
	calibrationEnd      = 950
	calibrationDebounce = 327

	spindownTicksPerSecond = 32768
)

const (
	minNameLength = 3
	maxNameLength = 8
)

// SensorUpdateRate is how often the sensor reports.
type SensorUpdateRate int

const (
	UpdateRate1000ms SensorUpdateRate = 1000
	UpdateRate500ms  SensorUpdateRate = 500
	UpdateRate250ms  SensorUpdateRate = 250

	updateRateFast = UpdateRate250ms
)

// intervalCode maps a rate to the sensor's interval code. Unknown rates fall back to
// the 1000 ms code.
func (r SensorUpdateRate) intervalCode() uint16 {
	switch r {
	case UpdateRate500ms:
		return 16
	case UpdateRate250ms:
		return 8
	default:
		return 32
	}
}

// CommandKeyForSystemID returns [sid[sid[3]%6], sid[sid[5]%6]].
func CommandKeyForSystemID(sid []byte) ([]byte, error) {
	if err := kinetic.ValidateSystemID(sid); err != nil {
		return nil, err
	}
	return []byte{sid[int(sid[3])%kinetic.SystemIDLength], sid[int(sid[5])%kinetic.SystemIDLength]}, nil
}

func header(sid []byte, op byte) ([]byte, error) {
	key, err := CommandKeyForSystemID(sid)
	if err != nil {
		return nil, err
	}
	return append(key, op), nil
}

func StartCalibration(sid []byte) ([]byte, error) {
	return header(sid, opStartCalibration)
}

func StopCalibration(sid []byte) ([]byte, error) {
	return header(sid, opStopCalibration)
}

// SetSpindownTime writes round(seconds*32768) as a little endian 32-bit tick count.
func SetSpindownTime(sid []byte, seconds float64) ([]byte, error) {
	cmd, err := header(sid, opSetSpindownTime)
	if err != nil {
		return nil, err
	}
	ticks := uint32(int64(math.Floor(seconds*spindownTicksPerSecond + 0.5)))
	return binary.LittleEndian.AppendUint32(cmd, ticks), nil
}

// ConfigureSensor sends the fixed calibration timing and the requested update rate.
func ConfigureSensor(sid []byte, rate SensorUpdateRate) ([]byte, error) {
	cmd, err := header(sid, opSetSpindownParams)
	if err != nil {
		return nil, err
	}
	for _, v := range []uint16{
		calibrationReady,
		calibrationStart,
		calibrationEnd,
		calibrationDebounce,
		rate.intervalCode(),
		updateRateFast.intervalCode(),
	} {
		cmd = binary.LittleEndian.AppendUint16(cmd, v)
	}
	return cmd, nil
}

// SetPeripheralName renames the sensor. The UTF-8 name must be 3 to 8 bytes long.
func SetPeripheralName(sid []byte, name string) ([]byte, error) {
	if err := kinetic.ValidateSystemID(sid); err != nil {
		return nil, err
	}
	if n := len(name); n < minNameLength || n > maxNameLength {
		return nil, fmt.Errorf("%w: peripheral name must be %d to %d bytes, got %d", kinetic.ErrInvalidInput, minNameLength, maxNameLength, n)
	}
	cmd, err := header(sid, opSetName)
	if err != nil {
		return nil, err
	}
	return append(cmd, name...), nil
}
