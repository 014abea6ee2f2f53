package wire

import "encoding/binary"

// Reader walks a characteristic value field by field.
// Every getter reports false instead of panicking once the buffer runs out, and a
// failed read does not consume anything.
type Reader struct {
	buf    []byte
	offset int
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Offset is the index of the next unread byte.
func (r *Reader) Offset() int {
	return r.offset
}

// Remaining is the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.offset
}

func (r *Reader) take(n int) ([]byte, bool) {
	if n < 0 || r.Remaining() < n {
		return nil, false
	}
	b := r.buf[r.offset : r.offset+n]
	r.offset += n
	return b, true
}

func (r *Reader) Uint8() (uint8, bool) {
	b, ok := r.take(1)
	if !ok {
		return 0, false
	}
	return b[0], true
}

// Uint16 reads a little-endian UINT16.
func (r *Reader) Uint16() (uint16, bool) {
	b, ok := r.take(2)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b), true
}

// Int16 reads a little-endian SINT16.
func (r *Reader) Int16() (int16, bool) {
	v, ok := r.Uint16()
	return int16(v), ok
}

// Uint24 reads a little-endian UINT24.
func (r *Reader) Uint24() (uint32, bool) {
	b, ok := r.take(3)
	if !ok {
		return 0, false
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16, true
}

// Uint32 reads a little-endian UINT32.
func (r *Reader) Uint32() (uint32, bool) {
	b, ok := r.take(4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

// Bytes reads n raw bytes. The returned slice aliases the input buffer.
func (r *Reader) Bytes(n int) ([]byte, bool) {
	return r.take(n)
}

// Rest consumes and returns everything left.
func (r *Reader) Rest() []byte {
	b := r.buf[r.offset:]
	r.offset = len(r.buf)
	return b
}
