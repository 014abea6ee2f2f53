package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/bt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/gatt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/kinetic"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/kinetic/inride"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/kinetic/smartcontrol"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/telemetry"
)

const defaultCalibrationTimeout = 2 * time.Minute

var calibrationHints = map[smartcontrol.CalibrationState]string{
	smartcontrol.CalibrationSpeedUp:       "pedal up to speed",
	smartcontrol.CalibrationStartCoasting: "stop pedalling and coast",
	smartcontrol.CalibrationCoasting:      "keep coasting",
}

type calibrateOptions struct {
	inRide   bool
	stop     bool
	timeout  time.Duration
	spindown float64
}

func newCalibrateCommand(a *App) *cobra.Command {
	var opts calibrateOptions
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Run a spin down calibration",
		Long: `Start a spin down calibration on a Kinetic Smart Control trainer and follow
its progress until it completes. With --inride the calibration commands go to
an inRide sensor instead, which does not report progress.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			if opts.inRide {
				return a.calibrateInRide(ctx, opts)
			}
			return a.calibrateSmartControl(ctx, opts)
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&opts.inRide, "inride", false, "Calibrate an inRide sensor")
	flags.BoolVar(&opts.stop, "stop", false, "Abort a running calibration")
	flags.DurationVar(&opts.timeout, "timeout", defaultCalibrationTimeout, "Give up after this long")
	flags.Float64Var(&opts.spindown, "spindown", 0, "Set the inRide spin down time in seconds first")
	return cmd
}

func (a *App) calibrateInRide(ctx context.Context, opts calibrateOptions) error {
	device, release, err := a.connect(ctx, gatt.DeviceTypeInRide)
	if err != nil {
		return err
	}
	defer release()
	sid, err := a.systemID(device)
	if err != nil {
		return err
	}

	if opts.spindown > 0 {
		cmd, err := inride.SetSpindownTime(sid, opts.spindown)
		if err != nil {
			return err
		}
		if err := device.Write(inrideControlPoint, cmd); err != nil {
			return fmt.Errorf("failed to set spin down time: %w", err)
		}
		a.printf("Spin down time set to %.2fs\n", opts.spindown)
	}

	build, verb := inride.StartCalibration, "started"
	if opts.stop {
		build, verb = inride.StopCalibration, "stopped"
	}
	cmd, err := build(sid)
	if err != nil {
		return err
	}
	if err := device.Write(inrideControlPoint, cmd); err != nil {
		return err
	}
	a.printf("Calibration %s on %s\n", verb, device.Address())
	return nil
}

func (a *App) calibrateSmartControl(ctx context.Context, opts calibrateOptions) error {
	table, err := a.cfg.HashTable()
	if err != nil {
		return err
	}
	encoder := smartcontrol.NewEncoder(table)

	device, release, err := a.connect(ctx, gatt.DeviceTypeSmartControl)
	if err != nil {
		return err
	}
	defer release()

	if opts.stop {
		if err := device.Write(smartControlPoint, encoder.StopCalibration()); err != nil {
			return err
		}
		a.printf("Calibration stopped on %s\n", device.Address())
		return nil
	}

	monitor := telemetry.NewMonitor(a.logger)
	defer monitor.Shutdown()
	readings := make(chan telemetry.Reading, monitorReadingsBuffer)
	defer monitor.ListenToReadings(readings)()
	unsubscribe, err := monitor.Subscribe(device, []gatt.Kind{gatt.KindKineticConfig})
	if err != nil {
		return err
	}
	defer unsubscribe()

	if err := device.Write(smartControlPoint, encoder.StartCalibration()); err != nil {
		return err
	}
	a.printf("Calibration started on %s\n", device.Address())
	return a.followCalibration(ctx, device, readings)
}

func (a *App) followCalibration(ctx context.Context, device bt.Device, readings <-chan telemetry.Reading) error {
	last := smartcontrol.CalibrationState(0xFF)
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("calibration did not complete: %w", ctx.Err())
		case r := <-readings:
			cfg, ok := r.Record.(*kinetic.Config)
			if !ok || r.Source != device.Address() {
				continue
			}
			state := cfg.CalibrationState
			if state == last {
				continue
			}
			last = state
			if hint, ok := calibrationHints[state]; ok {
				a.printf("Calibration: %s (%s)\n", state, hint)
			} else {
				a.printf("Calibration: %s\n", state)
			}
			if state == smartcontrol.CalibrationComplete {
				a.printf("Spin down time: %v\n", cfg.SpindownTime)
				return nil
			}
		}
	}
}
