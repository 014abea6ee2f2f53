package dashboard

import (
	"slices"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/gatt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/telemetry"
)

const (
	maxLogLines = 1000

	DefaultPowerStepWatts = 10
	MinTargetPowerWatts   = 25
	MaxTargetPowerWatts   = 2000
)

// metricOrder puts the riding metrics first; anything else follows sorted.
var metricOrder = []telemetry.MetricID{
	telemetry.MetricHeartRate,
	telemetry.MetricInstantaneousPower,
	telemetry.MetricAveragePower,
	telemetry.MetricInstantaneousSpeed,
	telemetry.MetricInstantaneousCadence,
	telemetry.MetricTotalDistance,
	telemetry.MetricElapsedTime,
}

// Row is one line of a table: a label and its rendered value.
type Row struct {
	Label string
	Value string
}

// Source is what the dashboard knows about one device.
type Source struct {
	Address  string
	LastKind gatt.Kind
	LastSeen time.Time
	Readings int
}

// Model holds everything the dashboard shows. It is safe for concurrent use.
type Model struct {
	mu          sync.RWMutex
	metrics     telemetry.Metrics
	sources     map[string]*Source
	logLines    []string
	targetPower int16
}

func NewModel() *Model {
	return &Model{
		metrics:     make(telemetry.Metrics),
		sources:     make(map[string]*Source),
		targetPower: 100,
	}
}

// Apply folds a reading into the model.
func (m *Model) Apply(r telemetry.Reading) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, v := range r.Metrics {
		m.metrics[id] = v
	}
	src, ok := m.sources[r.Source]
	if !ok {
		src = &Source{Address: r.Source}
		m.sources[r.Source] = src
	}
	src.LastKind = r.Kind
	src.LastSeen = r.Time
	src.Readings++
}

// AppendLog stores a log line, keeping the most recent maxLogLines.
func (m *Model) AppendLog(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logLines = append(m.logLines, line)
	if len(m.logLines) > maxLogLines {
		m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
	}
}

// LogTail returns the last n log lines.
func (m *Model) LogTail(n int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n <= 0 {
		return []string{}
	}
	if n > len(m.logLines) {
		n = len(m.logLines)
	}
	return slices.Clone(m.logLines[len(m.logLines)-n:])
}

// MetricRows renders the current metrics in display order.
func (m *Model) MetricRows() []Row {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := make([]Row, 0, len(m.metrics))
	for _, id := range metricOrder {
		if v, ok := m.metrics[id]; ok {
			rows = append(rows, metricRow(id, v))
		}
	}
	for _, id := range m.metrics.IDs() {
		if !slices.Contains(metricOrder, id) {
			rows = append(rows, metricRow(id, m.metrics[id]))
		}
	}
	return rows
}

func metricRow(id telemetry.MetricID, v float64) Row {
	label := string(id)
	if info, ok := telemetry.GetMetricInfo(id); ok {
		label = info.DisplayName
	}
	return Row{Label: label, Value: telemetry.Format(id, v)}
}

// Sources returns every device seen, by address.
func (m *Model) Sources() []Source {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]Source, 0, len(m.sources))
	for _, s := range m.sources {
		result = append(result, *s)
	}
	slices.SortFunc(result, func(a, b Source) int {
		switch {
		case a.Address < b.Address:
			return -1
		case a.Address > b.Address:
			return 1
		}
		return 0
	})
	return result
}

func (m *Model) TargetPower() int16 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.targetPower
}

// StepTargetPower moves the target by delta watts within the allowed range and
// returns the new target.
func (m *Model) StepTargetPower(delta int) int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := int(m.targetPower) + delta
	next = max(MinTargetPowerWatts, min(MaxTargetPowerWatts, next))
	m.targetPower = int16(next)
	return m.targetPower
}
