package ftms

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/wire"
)

// Stop/Pause parameter values
const (
	stopParameter  = 0x01
	pauseParameter = 0x02

	spinDownStart  = 0x01
	spinDownIgnore = 0x02
)

// SimulationParameters are the indoor bike simulation values shared by the control
// point command and the machine status notification.
type SimulationParameters struct {
	WindSpeedMps                 float64 // 0.001 m/s
	GradePercent                 float64 // 0.01 %
	RollingResistanceCoefficient float64 // 0.0001
	WindResistanceCoefficient    float64 // 0.01 kg/m
}

func clampInt16(v float64) int16 {
	v = math.Round(v)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

func clampUint16(v float64) uint16 {
	v = math.Round(v)
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	if v < 0 {
		return 0
	}
	return uint16(v)
}

func clampUint8(v float64) uint8 {
	v = math.Round(v)
	if v > math.MaxUint8 {
		return math.MaxUint8
	}
	if v < 0 {
		return 0
	}
	return uint8(v)
}

func command(op ControlOpCode, params ...byte) []byte {
	return append([]byte{byte(op)}, params...)
}

func appendInt16(buf []byte, v int16) []byte {
	return binary.LittleEndian.AppendUint16(buf, uint16(v))
}

// RequestControl must be acknowledged before any other control point command.
func RequestControl() []byte {
	return command(OpRequestControl)
}

func Reset() []byte {
	return command(OpReset)
}

func StartOrResume() []byte {
	return command(OpStartOrResume)
}

func Stop() []byte {
	return command(OpStopOrPause, stopParameter)
}

func Pause() []byte {
	return command(OpStopOrPause, pauseParameter)
}

// SetTargetInclination takes a grade in percent (SINT16, 0.1 %).
func SetTargetInclination(percent float64) []byte {
	return appendInt16(command(OpSetTargetInclination), clampInt16(percent*10))
}

// SetTargetResistanceLevel takes a unitless level (SINT16, 0.1 resolution).
func SetTargetResistanceLevel(level float64) []byte {
	return appendInt16(command(OpSetTargetResistanceLevel), clampInt16(level*10))
}

// SetTargetPower takes watts (SINT16).
func SetTargetPower(watts int16) []byte {
	return appendInt16(command(OpSetTargetPower), watts)
}

// SetTargetHeartRate takes bpm (UINT8).
func SetTargetHeartRate(bpm uint8) []byte {
	return command(OpSetTargetHeartRate, bpm)
}

// SetIndoorBikeSimulation sends wind speed, grade and the two resistance coefficients.
// Coefficients saturate at the limits of their UINT8 fields.
func SetIndoorBikeSimulation(p SimulationParameters) []byte {
	buf := command(OpSetIndoorBikeSimulation)
	buf = appendInt16(buf, clampInt16(p.WindSpeedMps*1000))
	buf = appendInt16(buf, clampInt16(p.GradePercent*100))
	buf = append(buf, clampUint8(p.RollingResistanceCoefficient*10000))
	buf = append(buf, clampUint8(p.WindResistanceCoefficient*100))
	return buf
}

// SetWheelCircumference takes millimetres (UINT16, 0.1 mm).
func SetWheelCircumference(mm float64) []byte {
	return binary.LittleEndian.AppendUint16(command(OpSetWheelCircumference), clampUint16(mm*10))
}

func SpinDownStart() []byte {
	return command(OpSpinDownControl, spinDownStart)
}

func SpinDownIgnore() []byte {
	return command(OpSpinDownControl, spinDownIgnore)
}

// SetTargetedCadence takes rpm (UINT16, 0.5 rpm).
func SetTargetedCadence(rpm float64) []byte {
	return binary.LittleEndian.AppendUint16(command(OpSetTargetedCadence), clampUint16(rpm*2))
}

// ControlPointResponse is the indication a machine sends back for every control
// point write.
type ControlPointResponse struct {
	Timestamp     time.Time
	RequestOpCode ControlOpCode
	Result        ResultCode

	// Spin down target speeds, only attached to a successful spin down request.
	HasTargetSpeeds    bool
	TargetSpeedLowKmh  float64
	TargetSpeedHighKmh float64
}

// Succeeded reports whether the request was accepted.
func (c *ControlPointResponse) Succeeded() bool {
	return c.Result == ResultSuccess
}

// DecodeControlPointResponse returns nil unless buf is a response (0x80) carrying at
// least the request op code and the result.
func DecodeControlPointResponse(buf []byte) *ControlPointResponse {
	if len(buf) < 3 || ControlOpCode(buf[0]) != OpResponseCode {
		return nil
	}
	resp := &ControlPointResponse{
		Timestamp:     now(),
		RequestOpCode: ControlOpCodeFromCode(buf[1]),
		Result:        ResultCodeFromCode(buf[2]),
	}
	if resp.RequestOpCode == OpSpinDownControl && resp.Result == ResultSuccess {
		r := wire.NewReader(buf[3:])
		low, okLow := r.Uint16()
		high, okHigh := r.Uint16()
		if okLow && okHigh {
			resp.TargetSpeedLowKmh = float64(low) * 0.01
			resp.TargetSpeedHighKmh = float64(high) * 0.01
			resp.HasTargetSpeeds = true
		}
	}
	return resp
}
