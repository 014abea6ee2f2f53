package telemetry

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/bt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/cycling"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/ftms"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/gatt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/heartrate"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/kinetic"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/simulator"
)

var (
	testLogger = log.New(io.Discard, "", 0)
	testTime   = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	hrChar     = gatt.Characteristic{Service: gatt.ServiceUUIDHeartRate, UUID: gatt.CharUUIDHeartRateMeasurement}
)

func newTestMonitor(opts ...MonitorOption) *Monitor {
	m := NewMonitor(testLogger, opts...)
	m.clock = func() time.Time { return testTime }
	return m
}

func cscCrank(revs, eventTime uint16) []byte {
	return []byte{0x02, byte(revs), byte(revs >> 8), byte(eventTime), byte(eventTime >> 8)}
}

type recorded struct {
	source string
	kind   gatt.Kind
	at     time.Time
	data   []byte
}

type fakeRecorder struct {
	frames []recorded
	err    error
}

func (r *fakeRecorder) Record(source string, kind gatt.Kind, at time.Time, data []byte) error {
	r.frames = append(r.frames, recorded{source, kind, at, data})
	return r.err
}

func TestDecode_Kinds(t *testing.T) {
	tests := []struct {
		kind gatt.Kind
		buf  []byte
		want any
	}{
		{gatt.KindHeartRate, []byte{0x00, 72}, &heartrate.Measurement{}},
		{gatt.KindSpeedCadence, cscCrank(1, 2), &cycling.SpeedCadenceMeasurement{}},
		{gatt.KindCyclingPower, []byte{0x00, 0x00, 0xC8, 0x00}, &cycling.PowerMeasurement{}},
		{gatt.KindIndoorBikeData, []byte{0x00, 0x00, 0xC4, 0x09}, &ftms.IndoorBikeData{}},
		{gatt.KindFTMSControlPoint, []byte{0x80, 0x05, 0x01}, &ftms.ControlPointResponse{}},
		{gatt.KindFTMSMachineStatus, []byte{0x08, 0xC8, 0x00}, &ftms.MachineStatus{}},
		{gatt.KindSupportedPowerRange, []byte{0x19, 0x00, 0xD0, 0x07, 0x01, 0x00}, &ftms.SupportedPowerRange{}},
		{gatt.KindKineticConfig, make([]byte, 8), &kinetic.Config{}},
		{gatt.KindKineticDebug, make([]byte, 18), &kinetic.DebugData{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got, err := Decode(tt.kind, tt.buf)
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(gatt.KindHeartRate, nil)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode(gatt.KindKineticConfig, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrMalformed, "short kinetic values decode to nothing")

	_, err = Decode(gatt.KindFTMSControlPoint, []byte{0x05, 0xC8, 0x00})
	assert.ErrorIs(t, err, ErrMalformed, "a command is not a response")

	_, err = Decode(gatt.KindSmartControlControlPoint, []byte{1})
	assert.ErrorIs(t, err, ErrNotDecodable)

	_, err = Decode("nope", []byte{1})
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = Decode(gatt.KindSystemID, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrMalformed)
	assert.ErrorIs(t, err, kinetic.ErrInvalidInput)
}

func TestDecode_SystemID(t *testing.T) {
	got, err := Decode(gatt.KindSystemID, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x0A})
	require.NoError(t, err)
	assert.Equal(t, "01:02:03:04:05:0A", got.(SystemID).String())
}

func TestRecordMetrics_IndoorBikeData(t *testing.T) {
	// speed 25.00 km/h, cadence 90 rpm, power 200 W, heart rate 150
	buf := []byte{0x44, 0x02, 0xC4, 0x09, 0xB4, 0x00, 0xC8, 0x00, 150}
	record, err := Decode(gatt.KindIndoorBikeData, buf)
	require.NoError(t, err)

	m := recordMetrics(record)
	assert.InDelta(t, 25.0, m[MetricInstantaneousSpeed], 1e-9)
	assert.InDelta(t, 90.0, m[MetricInstantaneousCadence], 1e-9)
	assert.Equal(t, 200.0, m[MetricInstantaneousPower])
	assert.Equal(t, 150.0, m[MetricHeartRate])
	assert.Len(t, m, 4)
}

func TestRecordMetrics_HeartRateRR(t *testing.T) {
	// RR interval of 512 ticks = 500 ms
	record, err := Decode(gatt.KindHeartRate, []byte{0x10, 60, 0x00, 0x02})
	require.NoError(t, err)
	m := recordMetrics(record)
	assert.Equal(t, 60.0, m[MetricHeartRate])
	assert.InDelta(t, 500.0, m[MetricRRInterval], 1e-9)
}

func TestNewMonitor_NilLoggerPanics(t *testing.T) {
	assert.PanicsWithValue(t, "Monitor: logger cannot be nil", func() { NewMonitor(nil) })
}

func TestMonitor_DerivesCadence(t *testing.T) {
	m := newTestMonitor()

	first, err := m.Handle("dev", gatt.KindSpeedCadence, cscCrank(10, 1024))
	require.NoError(t, err)
	assert.Empty(t, first.Metrics, "needs a previous sample")

	second, err := m.Handle("dev", gatt.KindSpeedCadence, cscCrank(12, 2048))
	require.NoError(t, err)
	assert.InDelta(t, 120.0, second.Metrics[MetricInstantaneousCadence], 1e-9)
	assert.Equal(t, testTime, second.Time)
	assert.Equal(t, "dev", second.Source)

	other, err := m.Handle("other", gatt.KindSpeedCadence, cscCrank(50, 4096))
	require.NoError(t, err)
	assert.Empty(t, other.Metrics, "previous samples are per source")
}

func TestMonitor_DropsImplausibleCadence(t *testing.T) {
	m := newTestMonitor()
	_, err := m.Handle("dev", gatt.KindSpeedCadence, cscCrank(10, 1024))
	require.NoError(t, err)
	r, err := m.Handle("dev", gatt.KindSpeedCadence, cscCrank(20, 2048))
	require.NoError(t, err)
	assert.NotContains(t, r.Metrics, MetricInstantaneousCadence)
}

func TestMonitor_WheelSpeedUsesCircumference(t *testing.T) {
	wheel := func(revs uint32, eventTime uint16) []byte {
		return []byte{0x01, byte(revs), byte(revs >> 8), byte(revs >> 16), byte(revs >> 24), byte(eventTime), byte(eventTime >> 8)}
	}
	m := newTestMonitor(WithWheelCircumference(200))
	_, err := m.Handle("dev", gatt.KindSpeedCadence, wheel(100, 0))
	require.NoError(t, err)
	r, err := m.Handle("dev", gatt.KindSpeedCadence, wheel(104, 1024))
	require.NoError(t, err)
	// 4 rev/s * 2 m = 8 m/s = 28.8 km/h
	assert.InDelta(t, 28.8, r.Metrics[MetricInstantaneousSpeed], 1e-9)
}

func TestMonitor_PublishesAndTracksLatest(t *testing.T) {
	m := newTestMonitor()
	ch := make(chan Reading, 4)
	remove := m.ListenToReadings(ch)
	defer remove()

	var seen []Metrics
	m.ListenToMetrics(func(metrics Metrics) { seen = append(seen, metrics) })

	_, err := m.Handle("dev", gatt.KindHeartRate, []byte{0x00, 72})
	require.NoError(t, err)
	_, err = m.Handle("dev", gatt.KindCyclingPower, []byte{0x00, 0x00, 0xC8, 0x00})
	require.NoError(t, err)

	require.Len(t, ch, 2)
	r := <-ch
	assert.Equal(t, gatt.KindHeartRate, r.Kind)
	assert.Len(t, seen, 2)
	assert.Equal(t, Metrics{MetricHeartRate: 72, MetricInstantaneousPower: 200}, m.Latest())
}

func TestMonitor_RecordsEvenWhenDecodeFails(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("disk full")}
	m := newTestMonitor(WithRecorder(rec))

	_, err := m.Handle("dev", gatt.KindFTMSControlPoint, []byte{0x01})
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = m.HandleAt("dev", gatt.KindHeartRate, testTime.Add(time.Second), []byte{0x00, 60})
	assert.NoError(t, err, "recorder errors are only logged")

	require.Len(t, rec.frames, 2)
	assert.Equal(t, recorded{"dev", gatt.KindFTMSControlPoint, testTime, []byte{0x01}}, rec.frames[0])
	assert.Equal(t, testTime.Add(time.Second), rec.frames[1].at)
}

func newMock(services ...string) *bt.MockDevice {
	d := bt.NewMockDevice(testLogger, "AA:BB", "Sensor", services...)
	d.SetConnected(true)
	return d
}

func TestMonitor_Subscribe(t *testing.T) {
	m := newTestMonitor()
	device := newMock(gatt.ServiceUUIDHeartRate)

	unsubscribe, err := m.Subscribe(device, []gatt.Kind{gatt.KindHeartRate, gatt.KindIndoorBikeData, gatt.KindBodySensorLocation})
	require.NoError(t, err)
	assert.True(t, device.NotificationsEnabled(hrChar))

	ch := make(chan Reading, 1)
	m.ListenToReadings(ch)
	require.True(t, device.Push(hrChar, []byte{0x00, 88}))
	r := <-ch
	assert.Equal(t, "AA:BB", r.Source)
	assert.Equal(t, 88.0, r.Metrics[MetricHeartRate])

	unsubscribe()
	unsubscribe()
	assert.False(t, device.NotificationsEnabled(hrChar))
}

func TestMonitor_SubscribeErrors(t *testing.T) {
	m := newTestMonitor()
	device := newMock(gatt.ServiceUUIDHeartRate)

	_, err := m.Subscribe(device, []gatt.Kind{gatt.KindIndoorBikeData})
	assert.ErrorIs(t, err, ErrNoStreams)

	_, err = m.Subscribe(device, []gatt.Kind{"bogus"})
	assert.ErrorIs(t, err, ErrUnknownKind)

	device.SetConnected(false)
	_, err = m.Subscribe(device, []gatt.Kind{gatt.KindHeartRate})
	assert.ErrorIs(t, err, bt.ErrNotConnected)
}

func TestMonitor_ReadOnceAndPoll(t *testing.T) {
	m := newTestMonitor()
	device := newMock(gatt.ServiceUUIDFTMS)
	rangeChar := gatt.Characteristic{Service: gatt.ServiceUUIDFTMS, UUID: gatt.CharUUIDSupportedPowerRange}
	device.SetRead(rangeChar, []byte{0x19, 0x00, 0xD0, 0x07, 0x01, 0x00})

	r, err := m.ReadOnce(device, gatt.KindSupportedPowerRange)
	require.NoError(t, err)
	rng := r.Record.(*ftms.SupportedPowerRange)
	assert.Equal(t, int16(2000), rng.MaximumWatts)

	ch := make(chan Reading, 16)
	m.ListenToReadings(ch)
	require.NoError(t, m.Poll(context.Background(), device, gatt.KindSupportedPowerRange, 5*time.Millisecond))
	assert.Error(t, m.Poll(context.Background(), device, gatt.KindSupportedPowerRange, time.Millisecond), "one poll per kind and device")

	select {
	case r := <-ch:
		assert.Equal(t, gatt.KindSupportedPowerRange, r.Kind)
	case <-time.After(time.Second):
		t.Fatal("no polled reading")
	}
	m.StopPoll(gatt.KindSupportedPowerRange, device.Address())
	m.Shutdown()

	assert.Eventually(t, func() bool {
		return m.Poll(context.Background(), device, gatt.KindSupportedPowerRange, time.Hour) == nil
	}, time.Second, 5*time.Millisecond, "a stopped poll can be restarted")
	m.Shutdown()
}

func TestController_WithSimulatedTrainer(t *testing.T) {
	trainer := simulator.NewTrainer(testLogger, simulator.DefaultAddress, simulator.DefaultName)
	c := NewController(testLogger, trainer.Device())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, c.Start(ctx))
	assert.True(t, c.HasControl())
	rng, ok := c.PowerRange()
	require.True(t, ok)
	assert.Equal(t, int16(25), rng.MinimumWatts)

	require.NoError(t, c.SetTargetPower(ctx, 3000))
	assert.Equal(t, int16(2000), trainer.Values().PowerWatts, "clamped to the power range")

	require.NoError(t, c.SetSimulation(ctx, ftms.SimulationParameters{GradePercent: 4.5}))
	require.NoError(t, c.SetTargetResistance(ctx, 12.5))

	resp, err := c.SendAndWait(ctx, ftms.SpinDownStart())
	assert.ErrorIs(t, err, ErrControlRejected)
	require.NotNil(t, resp)
	assert.Equal(t, ftms.ResultOpCodeNotSupported, resp.Result)
}

func TestController_WaitTimesOut(t *testing.T) {
	device := newMock(gatt.ServiceUUIDFTMS)
	c := NewController(testLogger, device)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.SendAndWait(ctx, ftms.RequestControl())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, c.HasControl())
	require.Len(t, device.Writes(), 1)
}

func TestController_RequiresFTMS(t *testing.T) {
	c := NewController(testLogger, newMock(gatt.ServiceUUIDHeartRate))
	assert.Error(t, c.Start(context.Background()))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "25.1 km/h", Format(MetricInstantaneousSpeed, 25.06))
	assert.Equal(t, "3", Format(MetricResistanceLevel, 3))
	assert.Equal(t, "1.5", Format("unknown", 1.5))
	assert.Equal(t, []MetricID{MetricHeartRate, MetricInstantaneousPower}, Metrics{MetricInstantaneousPower: 1, MetricHeartRate: 2}.IDs())
}
