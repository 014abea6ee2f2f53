// Package exporter publishes live trainer metrics over HTTP: a Prometheus
// scrape endpoint and a small JSON API.
package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/telemetry"
)

const readingsBuffer = 64

var ErrAlreadyStarted = errors.New("exporter already started")

// Exporter mirrors a telemetry.Monitor into Prometheus collectors.
type Exporter struct {
	logger   *log.Logger
	monitor  *telemetry.Monitor
	registry *prometheus.Registry

	values   *prometheus.GaugeVec
	updated  *prometheus.GaugeVec
	readings *prometheus.CounterVec

	router chi.Router

	mu       sync.Mutex
	server   *http.Server
	unlisten []func()
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewExporter(logger *log.Logger, monitor *telemetry.Monitor) *Exporter {
	if logger == nil {
		panic("Exporter: logger cannot be nil")
	}
	if monitor == nil {
		panic("Exporter: monitor cannot be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Exporter{
		logger:   logger,
		monitor:  monitor,
		registry: prometheus.NewRegistry(),
		values: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trainer_metric_value",
			Help: "Most recent value of a trainer metric.",
		}, []string{"metric", "unit"}),
		updated: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trainer_metric_updated_timestamp_seconds",
			Help: "Unix time a trainer metric last changed.",
		}, []string{"metric"}),
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trainer_readings_total",
			Help: "Decoded characteristic values by stream kind.",
		}, []string{"kind"}),
		ctx:    ctx,
		cancel: cancel,
	}
	e.registry.MustRegister(
		e.values,
		e.updated,
		e.readings,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	e.router = e.routes()

	e.unlisten = append(e.unlisten, monitor.ListenToMetrics(e.observe))

	readings := make(chan telemetry.Reading, readingsBuffer)
	e.unlisten = append(e.unlisten, monitor.ListenToReadings(readings))
	go_func_utils.SafeGoWait(logger, &e.wg, func() {
		for {
			select {
			case <-e.ctx.Done():
				return
			case r := <-readings:
				e.readings.WithLabelValues(string(r.Kind)).Inc()
			}
		}
	})
	return e
}

func (e *Exporter) observe(metrics telemetry.Metrics) {
	now := float64(time.Now().UnixNano()) / 1e9
	for id, v := range metrics {
		unit := ""
		if info, ok := telemetry.GetMetricInfo(id); ok {
			unit = info.Unit
		}
		e.values.WithLabelValues(string(id), unit).Set(v)
		e.updated.WithLabelValues(string(id)).Set(now)
	}
}

func (e *Exporter) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: e.logger, NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok", "service": "trainerctl"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))
	r.Route("/api", func(r chi.Router) {
		r.Get("/latest", e.getLatest)
		r.Get("/latest/{metric}", e.getMetric)
	})
	return r
}

// MetricValue is one entry of the JSON API.
type MetricValue struct {
	Value     float64 `json:"value"`
	Unit      string  `json:"unit,omitempty"`
	Display   string  `json:"display"`
	Formatted string  `json:"formatted"`
}

func metricValue(id telemetry.MetricID, v float64) MetricValue {
	mv := MetricValue{Value: v, Display: string(id), Formatted: telemetry.Format(id, v)}
	if info, ok := telemetry.GetMetricInfo(id); ok {
		mv.Unit = info.Unit
		mv.Display = info.DisplayName
	}
	return mv
}

func (e *Exporter) getLatest(w http.ResponseWriter, r *http.Request) {
	latest := e.monitor.Latest()
	result := make(map[telemetry.MetricID]MetricValue, len(latest))
	for id, v := range latest {
		result[id] = metricValue(id, v)
	}
	jsonResponse(w, http.StatusOK, map[string]interface{}{"metrics": result})
}

func (e *Exporter) getMetric(w http.ResponseWriter, r *http.Request) {
	id := telemetry.MetricID(chi.URLParam(r, "metric"))
	v, ok := e.monitor.Latest()[id]
	if !ok {
		errorResponse(w, http.StatusNotFound, fmt.Sprintf("no value for metric %q", id))
		return
	}
	jsonResponse(w, http.StatusOK, metricValue(id, v))
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]interface{}{
		"error": message,
		"code":  status,
	})
}

func (e *Exporter) Handler() http.Handler {
	return e.router
}

// Start listens on addr and serves in the background. It returns the bound
// address, useful when addr ends in ":0".
func (e *Exporter) Start(addr string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.server != nil {
		return "", ErrAlreadyStarted
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:      e.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	e.server = srv
	e.logger.Printf("Exporter: listening on %s", ln.Addr())
	go_func_utils.SafeGoWait(e.logger, &e.wg, func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Printf("Exporter: server failed: %v", err)
		}
	})
	return ln.Addr().String(), nil
}

// Shutdown stops the server, if started, and detaches from the monitor.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	srv := e.server
	unlisten := e.unlisten
	e.unlisten = nil
	e.mu.Unlock()

	for _, fn := range unlisten {
		fn()
	}
	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	e.cancel()
	e.wg.Wait()
	e.logger.Printf("Exporter: stopped")
	return err
}
