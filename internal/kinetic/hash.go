package kinetic

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
)

// CommandSeed seeds the keystream of every smart control command.
const CommandSeed byte = 0x42

const (
	hashTableEntries  = 256
	hashMatrixEntries = 256 * 256
)

// Hash8 is the keyed 8-bit mixing function the trainer firmware uses both as a rolling
// keystream and to derive a per-device seed from its system ID.
type Hash8 interface {
	Hash8WithSeed(seed, input byte) byte
}

// Hash8Func adapts a plain function to Hash8.
type Hash8Func func(seed, input byte) byte

func (f Hash8Func) Hash8WithSeed(seed, input byte) byte {
	return f(seed, input)
}

// HashTable is a Hash8 whose output depends only on seed^input: t[seed^input]. That
// holds for CRC-8 style hashes. Use HashMatrix when the hash is not known to have
// this shape.
type HashTable [256]byte

func (t *HashTable) Hash8WithSeed(seed, input byte) byte {
	return t[seed^input]
}

// HashMatrix is a Hash8 given by its full output table, m[seed][input]. It assumes
// nothing about how the hash is built.
type HashMatrix [256][256]byte

func (m *HashMatrix) Hash8WithSeed(seed, input byte) byte {
	return m[seed][input]
}

// LoadHash reads a hash from path: 256 entries give a HashTable, 65536 entries
// (seed major) a HashMatrix. Entries are raw bytes or hex (whitespace ignored).
func LoadHash(path string) (Hash8, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hash table: %w", err)
	}
	return ParseHash(data)
}

func ParseHash(data []byte) (Hash8, error) {
	entries, err := hashEntries(data)
	if err != nil {
		return nil, err
	}
	switch len(entries) {
	case hashTableEntries:
		var table HashTable
		copy(table[:], entries)
		return &table, nil
	case hashMatrixEntries:
		var m HashMatrix
		for seed := range m {
			copy(m[seed][:], entries[seed*hashTableEntries:])
		}
		return &m, nil
	}
	return nil, fmt.Errorf("%w: hash table must hold 256 or 65536 entries, got %d", ErrInvalidInput, len(entries))
}

// LoadHashTable reads a 256 entry table from path, raw or hex.
func LoadHashTable(path string) (*HashTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hash table: %w", err)
	}
	return ParseHashTable(data)
}

func ParseHashTable(data []byte) (*HashTable, error) {
	h, err := ParseHash(data)
	if err != nil {
		return nil, err
	}
	table, ok := h.(*HashTable)
	if !ok {
		return nil, fmt.Errorf("%w: hash table must hold 256 entries", ErrInvalidInput)
	}
	return table, nil
}

// hashEntries returns data itself when its length is a table size, otherwise its
// hex decoding.
func hashEntries(data []byte) ([]byte, error) {
	if n := len(data); n == hashTableEntries || n == hashMatrixEntries {
		return data, nil
	}
	text := bytes.Join(bytes.Fields(data), nil)
	raw := make([]byte, hex.DecodedLen(len(text)))
	n, err := hex.Decode(raw, text)
	if err != nil {
		return nil, fmt.Errorf("%w: hash table is neither raw nor hex: %v", ErrInvalidInput, err)
	}
	return raw[:n], nil
}

// HashBytes folds data through h starting at seed.
func HashBytes(h Hash8, seed byte, data []byte) byte {
	for _, b := range data {
		seed = h.Hash8WithSeed(seed, b)
	}
	return seed
}

// Obfuscate XORs every byte but the last (the nonce) with a keystream started from
// H(seed, nonce) and advanced with each plaintext byte. buf is modified in place.
func Obfuscate(buf []byte, seed byte, h Hash8) []byte {
	if len(buf) == 0 {
		return buf
	}
	last := len(buf) - 1
	hash := h.Hash8WithSeed(seed, buf[last])
	for i := 0; i < last; i++ {
		plain := buf[i]
		buf[i] ^= hash
		hash = h.Hash8WithSeed(hash, plain)
	}
	return buf
}

// Deobfuscate returns the plaintext of a buffer produced by Obfuscate with the same
// seed. buf is left untouched.
func Deobfuscate(buf []byte, seed byte, h Hash8) []byte {
	out := make([]byte, len(buf))
	copy(out, buf)
	if len(out) == 0 {
		return out
	}
	last := len(out) - 1
	hash := h.Hash8WithSeed(seed, out[last])
	for i := 0; i < last; i++ {
		out[i] ^= hash
		hash = h.Hash8WithSeed(hash, out[i])
	}
	return out
}
