// Package smartcontrol builds commands for Kinetic Smart Control trainers. Each
// command ends with a random nonce and is obfuscated with the keyed hash before it is
// written. Multi-byte fields are big endian.
package smartcontrol

import (
	"encoding/binary"
	"math"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/kinetic"
)

// Simulation field ceilings: one step past these wraps the 16-bit field.
const (
	maxWeightKg     = 655.36
	maxCoefficient  = 6.5536
	maxGradePercent = 45.0
	maxFluidLevel   = 9
)

type options struct {
	nonces kinetic.NonceSource
}

func defaultOptions() options {
	return options{nonces: kinetic.RandomNonce}
}

// Option configures an Encoder or a Chunker.
type Option func(*options)

// WithNonceSource replaces the random nonce generator.
func WithNonceSource(src kinetic.NonceSource) Option {
	return func(o *options) {
		if src != nil {
			o.nonces = src
		}
	}
}

// Encoder builds obfuscated commands. It holds no mutable state and is safe for
// concurrent use when its NonceSource is.
type Encoder struct {
	hash   kinetic.Hash8
	nonces kinetic.NonceSource
}

func NewEncoder(hash kinetic.Hash8, opts ...Option) *Encoder {
	if hash == nil {
		panic("Encoder: hash cannot be nil")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Encoder{hash: hash, nonces: o.nonces}
}

func (e *Encoder) seal(cmd []byte) []byte {
	cmd = append(cmd, e.nonces.Nonce())
	return kinetic.Obfuscate(cmd, kinetic.CommandSeed, e.hash)
}

// Deobfuscate recovers the plaintext of a command built by this encoder.
func (e *Encoder) Deobfuscate(cmd []byte) []byte {
	return kinetic.Deobfuscate(cmd, kinetic.CommandSeed, e.hash)
}

func (e *Encoder) StartCalibration() []byte {
	return e.seal([]byte{ControlSpindownCalibration, 0x01})
}

func (e *Encoder) StopCalibration() []byte {
	return e.seal([]byte{ControlSpindownCalibration, 0x00})
}

// SetERGMode holds a target power in watts.
func (e *Encoder) SetERGMode(watts int) []byte {
	watts = max(0, min(math.MaxUint16, watts))
	cmd := []byte{ControlSetPerformance, byte(ModeERG)}
	return e.seal(binary.BigEndian.AppendUint16(cmd, uint16(watts)))
}

// SetFluidMode emulates a fluid trainer at level 0 to 9.
func (e *Encoder) SetFluidMode(level int) []byte {
	level = max(0, min(maxFluidLevel, level))
	return e.seal([]byte{ControlSetPerformance, byte(ModeFluid), byte(level)})
}

// SetResistanceMode applies a fixed brake fraction in [0, 1].
func (e *Encoder) SetResistanceMode(resistance float64) []byte {
	resistance = math.Max(0, math.Min(1, resistance))
	cmd := []byte{ControlSetPerformance, byte(ModeResistance)}
	return e.seal(binary.BigEndian.AppendUint16(cmd, fixed16(resistance*math.MaxUint16)))
}

// SimulationParameters describe the rider and the road for simulation mode.
type SimulationParameters struct {
	WeightKg           float64
	RollingCoefficient float64
	WindCoefficient    float64
	GradePercent       float64
	WindSpeedMps       float64
}

// SetSimulationMode lets the unit compute resistance from the rider's physics.
func (e *Encoder) SetSimulationMode(p SimulationParameters) []byte {
	cmd := []byte{ControlSetPerformance, byte(ModeSimulation)}
	for _, v := range []float64{
		math.Min(maxWeightKg, p.WeightKg) * 100,
		math.Min(maxCoefficient, p.RollingCoefficient) * 10000,
		math.Min(maxCoefficient, p.WindCoefficient) * 10000,
		math.Max(-maxGradePercent, math.Min(maxGradePercent, p.GradePercent)) * 100,
		p.WindSpeedMps * 100,
	} {
		cmd = binary.BigEndian.AppendUint16(cmd, fixed16(v))
	}
	return e.seal(cmd)
}

// fixed16 rounds half up and keeps the low 16 bits of the two's complement value.
func fixed16(v float64) uint16 {
	return uint16(int64(math.Floor(v + 0.5)))
}
