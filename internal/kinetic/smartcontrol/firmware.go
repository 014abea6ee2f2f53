package smartcontrol

import (
	"errors"
	"fmt"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/kinetic"
)

const (
	// ChunkPayloadSize is the number of image bytes carried per packet.
	ChunkPayloadSize = 17

	sequenceStart = 0x80
	sequenceMask  = 0x3F
)

// ErrTransferComplete is returned when a chunk is requested past the end of the image.
var ErrTransferComplete = errors.New("firmware transfer complete")

// FirmwareCursor is the position of one update session in its image. It belongs to a
// single session and is not safe for concurrent use.
type FirmwareCursor struct {
	offset int
}

func (c *FirmwareCursor) Offset() int {
	return c.offset
}

func (c *FirmwareCursor) Reset() {
	c.offset = 0
}

// Done reports whether every byte of image has been sent.
func (c *FirmwareCursor) Done(image []byte) bool {
	return c.offset >= len(image)
}

// Chunker slices a firmware image into obfuscated control point writes.
type Chunker struct {
	hash   kinetic.Hash8
	nonces kinetic.NonceSource
}

func NewChunker(hash kinetic.Hash8, opts ...Option) *Chunker {
	if hash == nil {
		panic("Chunker: hash cannot be nil")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Chunker{hash: hash, nonces: o.nonces}
}

// Seed returns the keystream seed for a device: the hash of its system ID, or the
// command seed when sid is nil.
func (c *Chunker) Seed(sid []byte) (byte, error) {
	if sid == nil {
		return kinetic.CommandSeed, nil
	}
	if err := kinetic.ValidateSystemID(sid); err != nil {
		return 0, err
	}
	return kinetic.HashBytes(c.hash, 0, sid), nil
}

// NextChunk builds the packet at cursor and advances it by the payload length. The
// packet is [0x01, sequence, payload..., nonce]; the sequence byte is 0x80 for the
// first packet, then the packet index modulo 64.
func (c *Chunker) NextChunk(image []byte, cursor *FirmwareCursor, sid []byte) ([]byte, error) {
	if cursor == nil {
		return nil, fmt.Errorf("%w: cursor cannot be nil", kinetic.ErrInvalidInput)
	}
	if cursor.Done(image) {
		return nil, ErrTransferComplete
	}
	seed, err := c.Seed(sid)
	if err != nil {
		return nil, err
	}

	pos := cursor.offset
	size := min(ChunkPayloadSize, len(image)-pos)

	seq := byte((pos / ChunkPayloadSize) & sequenceMask)
	if pos == 0 {
		seq = sequenceStart
	}
	packet := make([]byte, 0, size+3)
	packet = append(packet, ControlFirmware, seq)
	packet = append(packet, image[pos:pos+size]...)
	packet = append(packet, c.nonces.Nonce())

	cursor.offset += size
	return kinetic.Obfuscate(packet, seed, c.hash), nil
}
