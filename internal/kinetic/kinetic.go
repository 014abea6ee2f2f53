// Package kinetic holds what the Kinetic trainer command schemes share: system ID
// validation, the keyed 8-bit hash used to obfuscate commands, nonce generation and
// the decoders of the Kinetic configuration service.
package kinetic

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SystemIDLength is the size of the Device Information System ID (0x2A23).
const SystemIDLength = 6

// ErrInvalidInput is returned for arguments a device would reject.
var ErrInvalidInput = errors.New("invalid input")

var now = time.Now

// ValidateSystemID fails unless sid is exactly SystemIDLength bytes.
func ValidateSystemID(sid []byte) error {
	if len(sid) != SystemIDLength {
		return fmt.Errorf("%w: system id must be exactly %d bytes, got %d", ErrInvalidInput, SystemIDLength, len(sid))
	}
	return nil
}

// ParseSystemID accepts hex with optional ':' or '-' separators, e.g. "01:02:03:04:05:06".
func ParseSystemID(s string) ([]byte, error) {
	clean := strings.NewReplacer(":", "", "-", "", " ", "").Replace(s)
	sid, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: system id %q: %v", ErrInvalidInput, s, err)
	}
	if err := ValidateSystemID(sid); err != nil {
		return nil, err
	}
	return sid, nil
}

// FormatSystemID is the inverse of ParseSystemID.
func FormatSystemID(sid []byte) string {
	parts := make([]string, len(sid))
	for i, b := range sid {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}
