package ftms

import (
	"time"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/wire"
)

const (
	trainingFlagStringPresent  = 0
	trainingFlagExtendedString = 2
)

// TrainingStatus is a decoded Training Status (0x2AD3) value.
type TrainingStatus struct {
	Timestamp time.Time
	Flags     wire.FlagSet
	Truncated bool

	HasStatus bool
	Status    TrainingStatusCode

	HasStatusString bool
	StatusString    string
	// ExtendedString means the string continues in a follow-up read.
	ExtendedString bool
}

// DecodeTrainingStatus parses a Training Status value: flags, status code, then an
// optional UTF-8 string running to the end of the value.
func DecodeTrainingStatus(buf []byte) *TrainingStatus {
	if len(buf) == 0 {
		return nil
	}
	s := &TrainingStatus{Timestamp: now()}
	r := wire.NewReader(buf)

	rawFlags, _ := r.Uint8()
	flags := wire.FlagSet(rawFlags)
	s.Flags = flags
	s.ExtendedString = flags.Has(trainingFlagExtendedString)

	code, ok := r.Uint8()
	if !ok {
		s.Truncated = true
		return s
	}
	s.Status = TrainingStatusCodeFromCode(code)
	s.HasStatus = true

	if flags.Has(trainingFlagStringPresent) {
		s.StatusString = string(r.Rest())
		s.HasStatusString = true
	}
	return s
}
