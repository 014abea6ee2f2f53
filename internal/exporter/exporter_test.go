package exporter

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/gatt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/telemetry"
)

var testLogger = log.New(io.Discard, "", 0)

// speed 25.00 km/h, cadence 90 rpm, power 200 W, heart rate 150
var indoorBikeData = []byte{0x44, 0x02, 0xC4, 0x09, 0xB4, 0x00, 0xC8, 0x00, 150}

func newTestExporter(t *testing.T) (*Exporter, *telemetry.Monitor) {
	t.Helper()
	monitor := telemetry.NewMonitor(testLogger)
	e := NewExporter(testLogger, monitor)
	t.Cleanup(func() { _ = e.Shutdown(context.Background()) })
	return e, monitor
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestNewExporter_NilArgsPanic(t *testing.T) {
	assert.PanicsWithValue(t, "Exporter: logger cannot be nil", func() { NewExporter(nil, telemetry.NewMonitor(testLogger)) })
	assert.PanicsWithValue(t, "Exporter: monitor cannot be nil", func() { NewExporter(testLogger, nil) })
}

func TestHealth(t *testing.T) {
	e, _ := newTestExporter(t)
	rec := get(t, e.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	e, monitor := newTestExporter(t)
	_, err := monitor.Handle("AA", gatt.KindIndoorBikeData, indoorBikeData)
	require.NoError(t, err)

	body := get(t, e.Handler(), "/metrics").Body.String()
	assert.Contains(t, body, `trainer_metric_value{metric="heart_rate",unit="bpm"} 150`)
	assert.Contains(t, body, `trainer_metric_value{metric="instantaneous_power",unit="W"} 200`)
	assert.Contains(t, body, `trainer_metric_updated_timestamp_seconds{metric="instantaneous_speed"}`)
	assert.Contains(t, body, "go_goroutines")

	assert.Eventually(t, func() bool {
		return strings.Contains(get(t, e.Handler(), "/metrics").Body.String(), `trainer_readings_total{kind="indoor_bike_data"} 1`)
	}, time.Second, 10*time.Millisecond)
}

func TestLatestAPI(t *testing.T) {
	e, monitor := newTestExporter(t)

	var empty struct {
		Metrics map[string]MetricValue `json:"metrics"`
	}
	rec := get(t, e.Handler(), "/api/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &empty))
	assert.Empty(t, empty.Metrics)

	_, err := monitor.Handle("AA", gatt.KindIndoorBikeData, indoorBikeData)
	require.NoError(t, err)

	var latest struct {
		Metrics map[string]MetricValue `json:"metrics"`
	}
	rec = get(t, e.Handler(), "/api/latest")
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &latest))
	require.Contains(t, latest.Metrics, "instantaneous_cadence")
	assert.Equal(t, MetricValue{Value: 90, Unit: "rpm", Display: "Cadence", Formatted: "90 rpm"}, latest.Metrics["instantaneous_cadence"])

	var one MetricValue
	rec = get(t, e.Handler(), "/api/latest/heart_rate")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	assert.Equal(t, 150.0, one.Value)
	assert.Equal(t, "150 bpm", one.Formatted)

	rec = get(t, e.Handler(), "/api/latest/target_grade")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "target_grade")
}

func TestStartAndShutdown(t *testing.T) {
	monitor := telemetry.NewMonitor(testLogger)
	e := NewExporter(testLogger, monitor)

	addr, err := e.Start("127.0.0.1:0")
	require.NoError(t, err)
	_, err = e.Start("127.0.0.1:0")
	assert.ErrorIs(t, err, ErrAlreadyStarted)

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, e.Shutdown(ctx))

	_, err = http.Get("http://" + addr + "/health")
	assert.Error(t, err)
}
