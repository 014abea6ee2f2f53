package capture

import (
	"bytes"
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/gatt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/telemetry"
)

var (
	testLogger = log.New(io.Discard, "", 0)
	start      = time.Date(2026, 5, 4, 18, 30, 0, 0, time.UTC)
)

func writeSession(t *testing.T, buf *bytes.Buffer) {
	t.Helper()
	w, err := NewWriter(buf, start)
	require.NoError(t, err)
	require.NoError(t, w.Record("AA", gatt.KindHeartRate, start, []byte{0x00, 70}))
	require.NoError(t, w.Record("AA", gatt.KindSpeedCadence, start.Add(time.Second), []byte{0x02, 10, 0, 0x00, 0x04}))
	require.NoError(t, w.Record("AA", gatt.KindSpeedCadence, start.Add(2*time.Second), []byte{0x02, 12, 0, 0x00, 0x08}))
	require.NoError(t, w.Record("AA", gatt.KindFTMSControlPoint, start.Add(3*time.Second), []byte{0x01}))
	assert.Equal(t, 4, w.Frames())
	assert.NoError(t, w.Close())
}

func TestWriterReader(t *testing.T) {
	var buf bytes.Buffer
	writeSession(t, &buf)

	r, err := NewReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, Version, r.Header().Version)
	assert.True(t, start.Equal(r.Header().Created))

	var frames []Frame
	for {
		f, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		frames = append(frames, f)
	}
	require.Len(t, frames, 4)
	assert.Equal(t, "AA", frames[0].Source)
	assert.Equal(t, gatt.KindHeartRate, frames[0].Kind)
	assert.Equal(t, []byte{0x00, 70}, frames[0].Data)
	assert.True(t, start.Add(2*time.Second).Equal(frames[2].Time))
}

func TestNewReader_RejectsOtherStreams(t *testing.T) {
	_, err := NewReader(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrBadHeader)

	data, err := cbor.Marshal(Header{Magic: "something-else", Version: Version})
	require.NoError(t, err)
	_, err = NewReader(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrBadHeader)

	data, err = cbor.Marshal(Header{Magic: magic, Version: Version + 1})
	require.NoError(t, err)
	_, err = NewReader(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrBadHeader)
}

func TestReader_TruncatedFrame(t *testing.T) {
	var buf bytes.Buffer
	writeSession(t, &buf)
	data := buf.Bytes()[:buf.Len()-2]

	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	var lastErr error
	for range 5 {
		if _, lastErr = r.Next(); lastErr != nil {
			break
		}
	}
	require.Error(t, lastErr)
	assert.NotErrorIs(t, lastErr, io.EOF)
}

func TestCreateAndOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ride.cbor")
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Record("BB", gatt.KindHeartRate, start, []byte{0x00, 99}))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	f, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "BB", f.Source)
	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReplay(t *testing.T) {
	var buf bytes.Buffer
	writeSession(t, &buf)
	r, err := NewReader(&buf)
	require.NoError(t, err)

	monitor := telemetry.NewMonitor(testLogger)
	ch := make(chan telemetry.Reading, 8)
	monitor.ListenToReadings(ch)

	stats, err := Replay(context.Background(), testLogger, r, monitor, 0)
	require.NoError(t, err)
	assert.Equal(t, ReplayStats{Frames: 4, DecodeErrors: 1}, stats)

	require.Len(t, ch, 3)
	<-ch
	<-ch
	cadence := <-ch
	assert.True(t, start.Add(2*time.Second).Equal(cadence.Time), "readings keep the captured time")
	assert.InDelta(t, 120.0, cadence.Metrics[telemetry.MetricInstantaneousCadence], 1e-9)
}

func TestReplay_Paced(t *testing.T) {
	var buf bytes.Buffer
	writeSession(t, &buf)
	r, err := NewReader(&buf)
	require.NoError(t, err)

	began := time.Now()
	stats, err := Replay(context.Background(), testLogger, r, telemetry.NewMonitor(testLogger), 100)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Frames)
	assert.GreaterOrEqual(t, time.Since(began), 25*time.Millisecond, "3 s of capture at 100x")
}

func TestReplay_Cancelled(t *testing.T) {
	var buf bytes.Buffer
	writeSession(t, &buf)
	r, err := NewReader(&buf)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Replay(ctx, testLogger, r, telemetry.NewMonitor(testLogger), 0)
	assert.ErrorIs(t, err, context.Canceled)
}
