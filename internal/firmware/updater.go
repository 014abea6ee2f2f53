// Package firmware streams a Smart Control firmware image to a trainer.
package firmware

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/bt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/events"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/gatt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/kinetic/smartcontrol"
)

// DefaultPacketInterval spaces packets so the unit can flash each one.
const DefaultPacketInterval = 20 * time.Millisecond

var (
	ErrBusy       = errors.New("update already running")
	ErrEmptyImage = errors.New("firmware image is empty")
)

var controlPoint = gatt.Characteristic{Service: gatt.ServiceUUIDSmartControl, UUID: gatt.CharUUIDSmartControlControlPoint}

// Progress is published after every packet.
type Progress struct {
	BytesSent  int
	TotalBytes int
	Packets    int
	Percentage float64
	Elapsed    time.Duration
	Done       bool
}

// Updater sends an image packet by packet. One update runs at a time; the cursor is
// owned by the running update. Failed writes are not retried.
type Updater struct {
	logger         *log.Logger
	device         bt.Device
	chunker        *smartcontrol.Chunker
	systemID       []byte
	packetInterval time.Duration

	mu     sync.Mutex
	cursor smartcontrol.FirmwareCursor

	progress *events.ChannelEvent[Progress]
}

// NewUpdater creates an updater. systemID keys the packets to one unit; nil uses the
// shared command seed. A non-positive packetInterval means DefaultPacketInterval.
func NewUpdater(logger *log.Logger, device bt.Device, chunker *smartcontrol.Chunker, systemID []byte, packetInterval time.Duration) *Updater {
	if logger == nil {
		panic("Updater: logger cannot be nil")
	}
	if device == nil || chunker == nil {
		panic("Updater: device and chunker are required")
	}
	if packetInterval <= 0 {
		packetInterval = DefaultPacketInterval
	}
	return &Updater{
		logger:         logger,
		device:         device,
		chunker:        chunker,
		systemID:       systemID,
		packetInterval: packetInterval,
		progress:       events.NewChannelEvent[Progress](true),
	}
}

// LoadImage reads an image file.
func LoadImage(path string) ([]byte, error) {
	image, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read firmware image: %w", err)
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyImage)
	}
	return image, nil
}

// Run sends the whole image, starting from the first byte. It stops at the first write
// error or when ctx ends.
func (u *Updater) Run(ctx context.Context, image []byte) error {
	if len(image) == 0 {
		return ErrEmptyImage
	}
	if !u.mu.TryLock() {
		return ErrBusy
	}
	defer u.mu.Unlock()

	u.cursor.Reset()
	start := time.Now()
	packets := 0
	u.logger.Printf("Updater: sending %d bytes to %s", len(image), u.device.Address())

	ticker := time.NewTicker(u.packetInterval)
	defer ticker.Stop()
	for {
		packet, err := u.chunker.NextChunk(image, &u.cursor, u.systemID)
		if errors.Is(err, smartcontrol.ErrTransferComplete) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to build packet %d: %w", packets, err)
		}
		if err := u.device.Write(controlPoint, packet); err != nil {
			return fmt.Errorf("packet %d at offset %d: %w", packets, u.cursor.Offset(), err)
		}
		packets++

		sent := u.cursor.Offset()
		u.progress.Notify(Progress{
			BytesSent:  sent,
			TotalBytes: len(image),
			Packets:    packets,
			Percentage: float64(sent) / float64(len(image)) * 100,
			Elapsed:    time.Since(start),
			Done:       u.cursor.Done(image),
		})
		if u.cursor.Done(image) {
			break
		}

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("update cancelled at offset %d: %w", sent, err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("update cancelled at offset %d: %w", sent, ctx.Err())
		case <-ticker.C:
		}
	}

	u.logger.Printf("Updater: sent %d packets in %v", packets, time.Since(start))
	return nil
}

// ListenToProgress receives progress updates; the last one is replayed.
func (u *Updater) ListenToProgress(ch chan<- Progress) func() {
	return u.progress.Listen(ch)
}
