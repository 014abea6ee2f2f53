package wire

// FlagSet is the raw flag word found at the head of most characteristic values.
// Each bit announces whether the matching optional field follows.
type FlagSet uint32

// Has reports whether the given bit index is set.
func (f FlagSet) Has(bit uint) bool {
	return f&(1<<bit) != 0
}

// HasMask reports whether every bit of mask is set.
func (f FlagSet) HasMask(mask uint32) bool {
	return uint32(f)&mask == mask
}

// Bits returns the indices of the set bits in ascending order.
func (f FlagSet) Bits() []uint {
	var bits []uint
	for i := uint(0); i < 32; i++ {
		if f.Has(i) {
			bits = append(bits, i)
		}
	}
	return bits
}
