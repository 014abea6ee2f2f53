package cycling

import "github.com/lowaak/smart-trainer/trainer-protocol/internal/wire"

const (
	// DefaultWheelCircumferenceCM is a 700x25c road wheel.
	DefaultWheelCircumferenceCM = 213.3

	// CrankTimeResolutionHz is the crank event clock shared by both sensor families.
	CrankTimeResolutionHz = 1024.0

	cmPerKM        = 0.00001
	minutesPerHour = 60.0
)

// Revolutions holds the wheel and crank revolution pairs shared by the cycling power
// and speed/cadence measurements.
type Revolutions struct {
	HasWheelRevolutions        bool
	CumulativeWheelRevolutions uint32
	LastWheelEventTime         uint16

	HasCrankRevolutions        bool
	CumulativeCrankRevolutions uint16
	LastCrankEventTime         uint16
}

// Profile carries the wheel clock and counter wrap points of one sensor family.
type Profile struct {
	WheelTimeResolutionHz float64
	WheelRevolutionMax    uint32
	WheelTimeMax          uint32
	CrankMax              uint32
}

var (
	// PowerMeterProfile matches Cycling Power Measurement values.
	PowerMeterProfile = Profile{
		WheelTimeResolutionHz: 2048,
		WheelRevolutionMax:    wire.Max32,
		WheelTimeMax:          wire.Max16,
		CrankMax:              wire.MaxDoubled15,
	}

	// SpeedCadenceProfile matches CSC Measurement values.
	SpeedCadenceProfile = Profile{
		WheelTimeResolutionHz: 1024,
		WheelRevolutionMax:    wire.Max32,
		WheelTimeMax:          wire.Max16,
		CrankMax:              wire.Max16,
	}
)

// WheelSpeedKPH derives wheel speed from two samples of the same sensor.
// ok is false unless both samples carry wheel revolution data. A zero time delta
// gives a speed of exactly 0.
func (p Profile) WheelSpeedKPH(current, previous Revolutions, circumferenceCM float64) (kph float64, ok bool) {
	if !current.HasWheelRevolutions || !previous.HasWheelRevolutions {
		return 0, false
	}
	revs := wire.Delta(current.CumulativeWheelRevolutions, previous.CumulativeWheelRevolutions, p.WheelRevolutionMax)
	ticks := wire.Delta(uint32(current.LastWheelEventTime), uint32(previous.LastWheelEventTime), p.WheelTimeMax)
	if ticks == 0 || p.WheelTimeResolutionHz <= 0 {
		return 0, true
	}
	seconds := float64(ticks) / p.WheelTimeResolutionHz
	rpm := float64(revs) / (seconds / 60)
	return rpm * circumferenceCM * cmPerKM * minutesPerHour, true
}

// CrankRPM derives cadence from two samples of the same sensor.
func (p Profile) CrankRPM(current, previous Revolutions) (rpm float64, ok bool) {
	if !current.HasCrankRevolutions || !previous.HasCrankRevolutions {
		return 0, false
	}
	revs := wire.Delta(uint32(current.CumulativeCrankRevolutions), uint32(previous.CumulativeCrankRevolutions), p.CrankMax)
	ticks := wire.Delta(uint32(current.LastCrankEventTime), uint32(previous.LastCrankEventTime), p.CrankMax)
	if ticks == 0 {
		return 0, true
	}
	seconds := float64(ticks) / CrankTimeResolutionHz
	return float64(revs) / (seconds / 60), true
}

// WheelSpeedKPH uses the power meter wrap points with the given wheel clock.
func WheelSpeedKPH(current, previous Revolutions, circumferenceCM, wheelTimeResolutionHz float64) (float64, bool) {
	p := PowerMeterProfile
	p.WheelTimeResolutionHz = wheelTimeResolutionHz
	return p.WheelSpeedKPH(current, previous, circumferenceCM)
}

// CrankRPM uses the power meter wrap points.
func CrankRPM(current, previous Revolutions) (float64, bool) {
	return PowerMeterProfile.CrankRPM(current, previous)
}
