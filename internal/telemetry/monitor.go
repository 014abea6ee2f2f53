// Package telemetry turns characteristic values into decoded records and display
// metrics, and drives FTMS trainers through their control point.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/bt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/cycling"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/events"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/gatt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/safe_map"
)

const maxPlausibleRpm = 300.0

var ErrNoStreams = errors.New("no supported streams")

// Reading is one decoded value.
type Reading struct {
	Source  string // device address
	Kind    gatt.Kind
	Time    time.Time
	Record  any
	Metrics Metrics
}

// Recorder receives every raw value the monitor handles.
type Recorder interface {
	Record(source string, kind gatt.Kind, at time.Time, data []byte) error
}

type MonitorOption func(*Monitor)

// WithWheelCircumference sets the wheel used for speed; the default is
// cycling.DefaultWheelCircumferenceCM.
func WithWheelCircumference(cm float64) MonitorOption {
	return func(m *Monitor) {
		if cm > 0 {
			m.circumferenceCM = cm
		}
	}
}

func WithRecorder(r Recorder) MonitorOption {
	return func(m *Monitor) {
		m.recorder = r
	}
}

// Monitor decodes values by stream kind and publishes readings. Speed and cadence
// are derived from the previous sample of the same source and kind.
type Monitor struct {
	logger          *log.Logger
	circumferenceCM float64
	recorder        Recorder
	clock           func() time.Time

	previous *safe_map.SafeMap[string, cycling.Revolutions]
	latest   *safe_map.SafeMap[MetricID, float64]

	readings *events.ChannelEvent[Reading]
	metrics  *events.CallbackEvent[Metrics]

	pollMu sync.Mutex
	polls  map[string]context.CancelFunc
	wg     sync.WaitGroup
}

func NewMonitor(logger *log.Logger, opts ...MonitorOption) *Monitor {
	if logger == nil {
		panic("Monitor: logger cannot be nil")
	}
	m := &Monitor{
		logger:          logger,
		circumferenceCM: cycling.DefaultWheelCircumferenceCM,
		clock:           time.Now,
		previous:        safe_map.NewSafeMap[string, cycling.Revolutions](),
		latest:          safe_map.NewSafeMap[MetricID, float64](),
		readings:        events.NewChannelEvent[Reading](false),
		metrics:         events.NewCallbackEvent[Metrics](true),
		polls:           make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle decodes one value. Values that fail to decode are still recorded.
func (m *Monitor) Handle(source string, kind gatt.Kind, buf []byte) (Reading, error) {
	return m.handleAt(source, kind, m.clock(), buf)
}

// HandleAt is Handle with an explicit receive time, for replays.
func (m *Monitor) HandleAt(source string, kind gatt.Kind, at time.Time, buf []byte) (Reading, error) {
	return m.handleAt(source, kind, at, buf)
}

func (m *Monitor) handleAt(source string, kind gatt.Kind, at time.Time, buf []byte) (Reading, error) {
	if m.recorder != nil {
		if err := m.recorder.Record(source, kind, at, buf); err != nil {
			m.logger.Printf("Monitor: failed to record %s: %v", kind, err)
		}
	}

	record, err := Decode(kind, buf)
	if err != nil {
		return Reading{}, err
	}
	metrics := recordMetrics(record)
	m.derive(source, kind, record, metrics)

	reading := Reading{Source: source, Kind: kind, Time: at, Record: record, Metrics: metrics}
	m.readings.Notify(reading)
	if len(metrics) > 0 {
		for id, v := range metrics {
			m.latest.Store(id, v)
		}
		m.metrics.Notify(metrics)
	}
	return reading, nil
}

// derive adds speed and cadence computed against the previous sample.
func (m *Monitor) derive(source string, kind gatt.Kind, record any, metrics Metrics) {
	var (
		current cycling.Revolutions
		profile cycling.Profile
	)
	switch r := record.(type) {
	case *cycling.SpeedCadenceMeasurement:
		current, profile = r.Revolutions, cycling.SpeedCadenceProfile
	case *cycling.PowerMeasurement:
		current, profile = r.Revolutions, cycling.PowerMeterProfile
	default:
		return
	}
	if !current.HasWheelRevolutions && !current.HasCrankRevolutions {
		return
	}

	key := source + "/" + string(kind)
	previous, ok := m.previous.Load(key)
	m.previous.Store(key, current)
	if !ok {
		return
	}
	if rpm, ok := profile.CrankRPM(current, previous); ok && rpm <= maxPlausibleRpm {
		metrics[MetricInstantaneousCadence] = rpm
	}
	if kph, ok := profile.WheelSpeedKPH(current, previous, m.circumferenceCM); ok {
		metrics[MetricInstantaneousSpeed] = kph
	}
}

// Handler adapts Handle to a notification callback.
func (m *Monitor) Handler(source string, kind gatt.Kind) func(buf []byte) {
	return func(buf []byte) {
		if _, err := m.Handle(source, kind, buf); err != nil {
			m.logger.Printf("Monitor: [%s] %v (raw % X)", kind, err, buf)
		}
	}
}

// Subscribe enables notifications for every kind the device supports and returns a
// func that disables them again. Kinds that are not notify streams are skipped.
func (m *Monitor) Subscribe(device bt.Device, kinds []gatt.Kind) (func(), error) {
	var subscribed []gatt.Stream
	for _, kind := range kinds {
		stream, ok := gatt.StreamByKind(kind)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
		}
		if !stream.Mode.Has(gatt.ModeNotify) {
			continue
		}
		if !device.HasService(stream.Service) {
			m.logger.Printf("Monitor: skipping %s, %s does not offer service %s", stream.DisplayName, device.Address(), stream.Service)
			continue
		}
		if err := device.EnableNotifications(stream.Characteristic, m.Handler(device.Address(), kind)); err != nil {
			m.unsubscribe(device, subscribed)
			return nil, fmt.Errorf("failed to enable notifications for %s: %w", stream.DisplayName, err)
		}
		m.logger.Printf("Monitor: subscribed to %s on %s", stream.DisplayName, device.Address())
		subscribed = append(subscribed, stream)
	}
	if len(subscribed) == 0 {
		return nil, fmt.Errorf("%w on %s", ErrNoStreams, device.Address())
	}

	var once sync.Once
	return func() {
		once.Do(func() { m.unsubscribe(device, subscribed) })
	}, nil
}

func (m *Monitor) unsubscribe(device bt.Device, streams []gatt.Stream) {
	for _, s := range streams {
		if err := device.DisableNotifications(s.Characteristic); err != nil {
			m.logger.Printf("Monitor: failed to disable %s: %v", s.DisplayName, err)
		}
	}
}

// ReadOnce reads a characteristic and handles its value.
func (m *Monitor) ReadOnce(device bt.Device, kind gatt.Kind) (Reading, error) {
	stream, ok := gatt.StreamByKind(kind)
	if !ok {
		return Reading{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	buf, err := device.Read(stream.Characteristic)
	if err != nil {
		return Reading{}, fmt.Errorf("failed to read %s: %w", stream.DisplayName, err)
	}
	return m.Handle(device.Address(), kind, buf)
}

func pollKey(kind gatt.Kind, address string) string {
	return string(kind) + ":" + address
}

// Poll reads kind every period until ctx ends, the device disconnects or StopPoll is
// called. Polled values go through the same path as notifications.
func (m *Monitor) Poll(ctx context.Context, device bt.Device, kind gatt.Kind, period time.Duration) error {
	if _, ok := gatt.StreamByKind(kind); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	key := pollKey(kind, device.Address())

	m.pollMu.Lock()
	defer m.pollMu.Unlock()
	if _, exists := m.polls[key]; exists {
		return fmt.Errorf("poll already active for %s on %s", kind, device.Address())
	}
	pollCtx, cancel := context.WithCancel(ctx)
	m.polls[key] = cancel

	go_func_utils.SafeGoWait(m.logger, &m.wg, func() {
		defer func() {
			m.pollMu.Lock()
			delete(m.polls, key)
			m.pollMu.Unlock()
			cancel()
		}()
		m.logger.Printf("Monitor: polling %s on %s every %v", kind, device.Address(), period)

		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				if !device.IsConnected() {
					m.logger.Printf("Monitor: %s disconnected, stopping poll of %s", device.Address(), kind)
					return
				}
				if _, err := m.ReadOnce(device, kind); err != nil {
					m.logger.Printf("Monitor: poll of %s failed: %v", kind, err)
				}
			}
		}
	})
	return nil
}

func (m *Monitor) StopPoll(kind gatt.Kind, address string) {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()
	if cancel, ok := m.polls[pollKey(kind, address)]; ok {
		cancel()
	}
}

// Latest returns the most recent value of every metric seen so far.
func (m *Monitor) Latest() Metrics {
	return Metrics(m.latest.Snapshot())
}

// ListenToReadings receives every reading. Slow listeners miss readings.
func (m *Monitor) ListenToReadings(ch chan<- Reading) func() {
	return m.readings.Listen(ch)
}

// ListenToMetrics calls fn with the metrics of each reading that has any.
func (m *Monitor) ListenToMetrics(fn func(Metrics)) func() {
	return m.metrics.Listen(fn)
}

// Shutdown stops every poll and waits for them.
func (m *Monitor) Shutdown() {
	m.pollMu.Lock()
	for key, cancel := range m.polls {
		m.logger.Printf("Monitor: stopping poll %s", key)
		cancel()
	}
	m.pollMu.Unlock()
	m.wg.Wait()
}
