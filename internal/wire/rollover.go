package wire

import "math"

// Wrap ceilings for the counters found in cycling measurements.
const (
	// Max32 wraps cumulative wheel revolutions.
	Max32 uint32 = math.MaxUint32
	// Max16 wraps event times and speed/cadence crank counters.
	Max16 uint32 = math.MaxUint16
	// MaxDoubled15 wraps power meter crank counters and crank event times.
	MaxDoubled15 uint32 = 2 * math.MaxInt16
)

// Delta returns how far a wrapping counter moved from previous to now.
// When previous is ahead of now the counter is assumed to have wrapped at max.
// A previous value beyond max+now cannot come from a counter wrapping at max and
// yields 0.
func Delta(now, previous, max uint32) uint32 {
	if previous <= now {
		return now - previous
	}
	d := int64(max) - int64(previous) + int64(now)
	if d < 0 {
		return 0
	}
	return uint32(d)
}
