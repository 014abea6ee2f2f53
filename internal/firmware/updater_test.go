package firmware

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/bt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/gatt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/kinetic"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/kinetic/smartcontrol"
)

var (
	testLogger = log.New(io.Discard, "", 0)
	mixer      = kinetic.Hash8Func(func(seed, input byte) byte { return (seed<<1 | seed>>7) ^ input ^ 0x5A })
)

func newTestUpdater(t *testing.T, sid []byte) (*Updater, *bt.MockDevice) {
	t.Helper()
	device := bt.NewMockDevice(testLogger, "CC:DD", "Smart Control", gatt.ServiceUUIDSmartControl)
	device.SetConnected(true)
	chunker := smartcontrol.NewChunker(mixer, smartcontrol.WithNonceSource(kinetic.NonceFunc(func() byte { return 0x11 })))
	return NewUpdater(testLogger, device, chunker, sid, time.Millisecond), device
}

func testImage(n int) []byte {
	image := make([]byte, n)
	for i := range image {
		image[i] = byte(i * 7)
	}
	return image
}

func TestUpdater_SendsWholeImage(t *testing.T) {
	sid := []byte{1, 2, 3, 4, 5, 6}
	u, device := newTestUpdater(t, sid)
	progress := make(chan Progress, 8)
	u.ListenToProgress(progress)

	image := testImage(40)
	require.NoError(t, u.Run(context.Background(), image))

	writes := device.Writes()
	require.Len(t, writes, 3)

	seed := kinetic.HashBytes(mixer, 0, sid)
	var payload []byte
	var sequence []byte
	for _, w := range writes {
		assert.Equal(t, controlPoint, w.Characteristic)
		plain := kinetic.Deobfuscate(w.Data, seed, mixer)
		assert.Equal(t, smartcontrol.ControlFirmware, plain[0])
		sequence = append(sequence, plain[1])
		payload = append(payload, plain[2:len(plain)-1]...)
	}
	assert.Equal(t, []byte{0x80, 0x01, 0x02}, sequence)
	assert.Equal(t, image, payload)

	require.Len(t, progress, 3)
	var last Progress
	for range 3 {
		last = <-progress
	}
	assert.Equal(t, 40, last.BytesSent)
	assert.Equal(t, 3, last.Packets)
	assert.True(t, last.Done)
	assert.InDelta(t, 100.0, last.Percentage, 1e-9)
}

func TestUpdater_RunRestartsFromTheBeginning(t *testing.T) {
	u, device := newTestUpdater(t, nil)
	image := testImage(20)
	require.NoError(t, u.Run(context.Background(), image))
	require.NoError(t, u.Run(context.Background(), image))

	writes := device.Writes()
	require.Len(t, writes, 4)
	first := kinetic.Deobfuscate(writes[2].Data, kinetic.CommandSeed, mixer)
	assert.Equal(t, byte(0x80), first[1])
}

func TestUpdater_StopsOnWriteError(t *testing.T) {
	u, device := newTestUpdater(t, nil)
	boom := errors.New("gatt error")
	device.SetWriteError(boom)

	err := u.Run(context.Background(), testImage(40))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, device.Writes())
}

func TestUpdater_Cancelled(t *testing.T) {
	u, device := newTestUpdater(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := u.Run(ctx, testImage(100))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, device.Writes(), 1, "the first packet goes out before the wait")
}

func TestUpdater_Errors(t *testing.T) {
	u, _ := newTestUpdater(t, nil)
	assert.ErrorIs(t, u.Run(context.Background(), nil), ErrEmptyImage)

	bad, _ := newTestUpdater(t, []byte{1, 2})
	assert.ErrorIs(t, bad.Run(context.Background(), testImage(5)), kinetic.ErrInvalidInput)

	u.mu.Lock()
	assert.ErrorIs(t, u.Run(context.Background(), testImage(5)), ErrBusy)
	u.mu.Unlock()
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fw.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o600))

	image, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, image)

	empty := filepath.Join(dir, "empty.bin")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = LoadImage(empty)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = LoadImage(filepath.Join(dir, "missing.bin"))
	assert.Error(t, err)
}
