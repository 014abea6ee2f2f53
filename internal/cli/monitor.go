package cli

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/rivo/tview"
	"github.com/spf13/cobra"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/bt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/capture"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/dashboard"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/exporter"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/gatt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/telemetry"
)

const (
	monitorReadingsBuffer = 256
	controlTimeout        = 5 * time.Second
	shutdownTimeout       = 5 * time.Second
)

type monitorOptions struct {
	kinds       []string
	capturePath string
	useDash     bool
	duration    time.Duration
	targetPower int16
}

func newMonitorCommand(a *App) *cobra.Command {
	var opts monitorOptions
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Stream live readings from a device",
		Long: `Connect to a device and print every decoded reading until interrupted.

Optionally record the raw values to a capture file, serve them to Prometheus,
show the terminal dashboard, and hold an ERG target on an FTMS trainer.`,
		Example: `  trainerctl monitor --simulate --dashboard
  trainerctl monitor -a F0:12:34:56:78:9A --capture ride.cbor --exporter :9100
  trainerctl monitor --kinds heart_rate,cycling_power --duration 10m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMonitor(cmd.Context(), opts)
		},
	}
	flags := cmd.Flags()
	flags.StringSliceVar(&opts.kinds, "kinds", nil, "Streams to subscribe to (default: every stream the device offers)")
	flags.StringVar(&opts.capturePath, "capture", "", "Record raw values to this capture file")
	flags.String("exporter", "", "Serve /metrics and /api/latest on this address, e.g. :9100")
	flags.BoolVar(&opts.useDash, "dashboard", false, "Show the terminal dashboard")
	flags.DurationVar(&opts.duration, "duration", 0, "Stop after this long (default: until interrupted)")
	flags.Int16Var(&opts.targetPower, "power", 0, "Hold this ERG target in watts (FTMS trainers)")
	return cmd
}

func parseKinds(names []string) ([]gatt.Kind, error) {
	kinds := make([]gatt.Kind, 0, len(names))
	for _, name := range names {
		kind := gatt.Kind(strings.TrimSpace(name))
		if _, ok := gatt.StreamByKind(kind); !ok {
			return nil, fmt.Errorf("%w: %s", telemetry.ErrUnknownKind, name)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// defaultKinds lists the notify streams of every device type device belongs to.
func defaultKinds(device bt.Device) []gatt.Kind {
	var kinds []gatt.Kind
	for _, dt := range gatt.DeviceTypesFor(device.ServiceUUIDs()) {
		for _, s := range dt.NotifyStreams() {
			if !slices.Contains(kinds, s.Kind) {
				kinds = append(kinds, s.Kind)
			}
		}
	}
	return kinds
}

func (a *App) runMonitor(ctx context.Context, opts monitorOptions) error {
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	device, release, err := a.connect(ctx, gatt.DeviceTypeSmartTrainer)
	if err != nil {
		return err
	}
	defer release()

	monitorOpts := []telemetry.MonitorOption{telemetry.WithWheelCircumference(a.cfg.Wheel.CircumferenceCM)}
	if opts.capturePath != "" {
		w, err := capture.Create(opts.capturePath)
		if err != nil {
			return err
		}
		defer func() {
			a.logger.Printf("CLI: captured %d frames to %s", w.Frames(), opts.capturePath)
			if err := w.Close(); err != nil {
				a.logger.Printf("CLI: failed to close capture: %v", err)
			}
		}()
		monitorOpts = append(monitorOpts, telemetry.WithRecorder(w))
	}
	monitor := telemetry.NewMonitor(a.logger, monitorOpts...)
	defer monitor.Shutdown()

	if a.cfg.Exporter.Listen != "" {
		exp := exporter.NewExporter(a.logger, monitor)
		addr, err := exp.Start(a.cfg.Exporter.Listen)
		if err != nil {
			return err
		}
		a.printf("Serving metrics on http://%s/metrics\n", addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := exp.Shutdown(shutdownCtx); err != nil {
				a.logger.Printf("CLI: exporter shutdown: %v", err)
			}
		}()
	}

	kinds := defaultKinds(device)
	if len(opts.kinds) > 0 {
		if kinds, err = parseKinds(opts.kinds); err != nil {
			return err
		}
	}

	readings := make(chan telemetry.Reading, monitorReadingsBuffer)
	unlistenReadings := monitor.ListenToReadings(readings)
	defer unlistenReadings()

	unsubscribe, err := monitor.Subscribe(device, kinds)
	if err != nil {
		return err
	}
	defer unsubscribe()
	a.readFeatures(monitor, device)

	var trainer dashboard.PowerTarget
	if device.HasService(gatt.ServiceUUIDFTMS) && (opts.targetPower > 0 || opts.useDash) {
		controller := telemetry.NewController(a.logger, device)
		controlCtx, cancel := context.WithTimeout(ctx, controlTimeout)
		err := controller.Start(controlCtx)
		if err == nil && opts.targetPower > 0 {
			err = controller.SetTargetPower(controlCtx, opts.targetPower)
		}
		cancel()
		if err != nil {
			a.logger.Printf("CLI: trainer control unavailable: %v", err)
		} else {
			trainer = controller
		}
	}

	if opts.useDash {
		return a.runDashboard(ctx, monitor, trainer)
	}

	a.printf("Monitoring %s (%s), %d streams. Ctrl+C to stop.\n", device.Name(), device.Address(), len(kinds))
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-readings:
			writeReading(a.out, r)
		}
	}
}

// readFeatures reads the readable, non-notify streams once so their values show up
// in the log and the capture.
func (a *App) readFeatures(monitor *telemetry.Monitor, device bt.Device) {
	for _, dt := range gatt.DeviceTypesFor(device.ServiceUUIDs()) {
		for _, kind := range dt.Streams {
			s, ok := gatt.StreamByKind(kind)
			if !ok || !s.Mode.Has(gatt.ModeRead) || s.Mode.Has(gatt.ModeNotify) {
				continue
			}
			if r, err := monitor.ReadOnce(device, kind); err != nil {
				a.logger.Printf("CLI: read %s: %v", kind, err)
			} else {
				a.logger.Printf("CLI: %s = %+v", kind, r.Record)
			}
		}
	}
}

func (a *App) runDashboard(ctx context.Context, monitor *telemetry.Monitor, trainer dashboard.PowerTarget) error {
	d := dashboard.New(dashboard.Args{
		Logger:   a.logger,
		App:      tview.NewApplication(),
		Monitor:  monitor,
		Trainer:  trainer,
		LogLines: a.logLines,
	})
	defer d.Shutdown()
	stop := context.AfterFunc(ctx, d.Stop)
	defer stop()
	return d.Run()
}

func writeReading(w io.Writer, r telemetry.Reading) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-20s %s", r.Time.Format("15:04:05.000"), r.Kind, r.Source)
	for _, id := range r.Metrics.IDs() {
		fmt.Fprintf(&b, "  %s=%s", id, telemetry.Format(id, r.Metrics[id]))
	}
	fmt.Fprintln(w, b.String())
}
