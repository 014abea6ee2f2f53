package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelta_NoWrap(t *testing.T) {
	assert.Equal(t, uint32(5), Delta(10, 5, Max16))
	assert.Equal(t, uint32(5), Delta(10, 5, 12))
	assert.Equal(t, uint32(0), Delta(7, 7, Max16))
}

func TestDelta_Wrap(t *testing.T) {
	assert.Equal(t, uint32(10), Delta(5, 65530, 65535))
	assert.Equal(t, uint32(9), Delta(5, 65530, MaxDoubled15))
	assert.Equal(t, uint32(Max32-10+3), Delta(3, 10, Max32))
}

func TestDelta_PreviousBeyondMax(t *testing.T) {
	assert.Equal(t, uint32(0), Delta(0, 65535, MaxDoubled15))
	assert.Equal(t, uint32(1), Delta(2, 65535, MaxDoubled15))
}

func TestFlagSet(t *testing.T) {
	f := FlagSet(0b1010_0001)
	assert.True(t, f.Has(0))
	assert.False(t, f.Has(1))
	assert.True(t, f.Has(5))
	assert.True(t, f.Has(7))
	assert.True(t, f.HasMask(0b1010_0000))
	assert.False(t, f.HasMask(0b0000_0011))
	assert.Equal(t, []uint{0, 5, 7}, f.Bits())
	assert.Empty(t, FlagSet(0).Bits())
}

func TestReader_LittleEndianFields(t *testing.T) {
	r := NewReader([]byte{0x7F, 0x34, 0x12, 0xFE, 0xFF, 0x01, 0x02, 0x03, 0x78, 0x56, 0x34, 0x12, 0xAA})

	u8, ok := r.Uint8()
	require.True(t, ok)
	assert.Equal(t, uint8(0x7F), u8)

	u16, ok := r.Uint16()
	require.True(t, ok)
	assert.Equal(t, uint16(0x1234), u16)

	s16, ok := r.Int16()
	require.True(t, ok)
	assert.Equal(t, int16(-2), s16)

	u24, ok := r.Uint24()
	require.True(t, ok)
	assert.Equal(t, uint32(0x030201), u24)

	u32, ok := r.Uint32()
	require.True(t, ok)
	assert.Equal(t, uint32(0x12345678), u32)

	assert.Equal(t, 1, r.Remaining())
	assert.Equal(t, []byte{0xAA}, r.Rest())
	assert.Equal(t, 0, r.Remaining())
}

func TestReader_ShortReadDoesNotConsume(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03})
	_, ok := r.Uint32()
	assert.False(t, ok)
	assert.Equal(t, 0, r.Offset())

	v, ok := r.Uint24()
	require.True(t, ok)
	assert.Equal(t, uint32(0x030201), v)

	_, ok = r.Uint8()
	assert.False(t, ok)
	_, ok = r.Bytes(-1)
	assert.False(t, ok)
}
