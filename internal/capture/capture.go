// Package capture stores raw characteristic values as a CBOR stream so sessions can
// be replayed through the decoders later.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/gatt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/telemetry"
)

const (
	magic   = "trainer-capture"
	Version = 1
)

var ErrBadHeader = errors.New("not a capture file")

// Header opens every capture stream.
type Header struct {
	Magic   string    `cbor:"1,keyasint"`
	Version int       `cbor:"2,keyasint"`
	Created time.Time `cbor:"3,keyasint"`
}

// Frame is one raw value as it arrived.
type Frame struct {
	Source string    `cbor:"1,keyasint,omitempty"`
	Kind   gatt.Kind `cbor:"2,keyasint"`
	Time   time.Time `cbor:"3,keyasint"`
	Data   []byte    `cbor:"4,keyasint"`
}

var encMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Writer appends frames. It is safe for concurrent use and satisfies
// telemetry.Recorder.
type Writer struct {
	mu     sync.Mutex
	enc    *cbor.Encoder
	closer io.Closer
	frames int
}

var _ telemetry.Recorder = (*Writer)(nil)

// NewWriter writes the header to w.
func NewWriter(w io.Writer, created time.Time) (*Writer, error) {
	enc := encMode.NewEncoder(w)
	if err := enc.Encode(Header{Magic: magic, Version: Version, Created: created}); err != nil {
		return nil, fmt.Errorf("failed to write capture header: %w", err)
	}
	return &Writer{enc: enc}, nil
}

// Create truncates path and starts a capture in it.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture: %w", err)
	}
	w, err := NewWriter(f, time.Now())
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

func (w *Writer) Write(f Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(f); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	w.frames++
	return nil
}

func (w *Writer) Record(source string, kind gatt.Kind, at time.Time, data []byte) error {
	return w.Write(Frame{Source: source, Kind: kind, Time: at, Data: data})
}

// Frames is the number of frames written so far.
func (w *Writer) Frames() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Close closes the file opened by Create. It does nothing for NewWriter writers.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closer == nil {
		return nil
	}
	err := w.closer.Close()
	w.closer = nil
	return err
}

// Reader reads frames back in order.
type Reader struct {
	dec    *cbor.Decoder
	header Header
	closer io.Closer
}

// NewReader reads and checks the header.
func NewReader(r io.Reader) (*Reader, error) {
	dec := cbor.NewDecoder(r)
	var h Header
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadHeader, err)
	}
	if h.Magic != magic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadHeader, h.Magic)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadHeader, h.Version)
	}
	return &Reader{dec: dec, header: h}, nil
}

func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture: %w", err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next frame, or io.EOF after the last one.
func (r *Reader) Next() (Frame, error) {
	var f Frame
	if err := r.dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("failed to read frame: %w", err)
	}
	return f, nil
}

func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// ReplayStats counts what a replay did.
type ReplayStats struct {
	Frames       int
	DecodeErrors int
}

// Replay feeds every frame to monitor with its original receive time. With speed > 0
// the original pacing is kept, divided by speed; otherwise frames go through as fast
// as possible. Frames that fail to decode are logged and counted.
func Replay(ctx context.Context, logger *log.Logger, r *Reader, monitor *telemetry.Monitor, speed float64) (ReplayStats, error) {
	var (
		stats ReplayStats
		last  time.Time
	)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		f, err := r.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}

		if speed > 0 && !last.IsZero() {
			if gap := f.Time.Sub(last); gap > 0 {
				timer := time.NewTimer(time.Duration(float64(gap) / speed))
				select {
				case <-ctx.Done():
					timer.Stop()
					return stats, ctx.Err()
				case <-timer.C:
				}
			}
		}
		last = f.Time

		stats.Frames++
		if _, err := monitor.HandleAt(f.Source, f.Kind, f.Time, f.Data); err != nil {
			stats.DecodeErrors++
			logger.Printf("Replay: frame %d (%s): %v", stats.Frames, f.Kind, err)
		}
	}
}
