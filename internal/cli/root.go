// Package cli is the trainerctl command line: scanning, live monitoring, capture
// replay, codec helpers and Kinetic maintenance commands.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/bt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/cycling"
)

const version = "0.3.0"

func NewRootCommand(a *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "trainerctl",
		Short: "Talk to BLE cycling trainers and sensors",
		Long: `trainerctl - decode, monitor and control BLE cycling trainers.

Understands the standard heart rate, cycling power, speed/cadence and fitness
machine services plus the Kinetic inRide and Smart Control protocols.

Settings come from trainerctl.yaml (working directory or ~/.trainerctl),
TRAINERCTL_* environment variables and flags, flags winning.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}
	root.SetOut(a.out)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "Config file (default trainerctl.yaml)")
	flags.String("log-file", "", "Log file (default ~/.trainerctl/trainerctl.log)")
	flags.Bool("log-stderr", false, "Also log to stderr")
	flags.String("store", "", "Known devices file (default ~/.trainerctl/devices.json)")
	flags.StringP("address", "a", "", "Device address")
	flags.String("system-id", "", "Kinetic system ID, e.g. 01:02:03:04:05:06")
	flags.Duration("scan-timeout", bt.DefaultScanTimeout, "How long to scan for a device")
	flags.Float64("wheel", cycling.DefaultWheelCircumferenceCM, "Wheel circumference in cm")
	flags.String("hash-table", "", "Kinetic hash table file (raw or hex)")
	flags.BoolVar(&a.simulate, "simulate", false, "Use a simulated FTMS trainer instead of BLE")

	root.AddCommand(
		newScanCommand(a),
		newDevicesCommand(a),
		newMonitorCommand(a),
		newReplayCommand(a),
		newDecodeCommand(a),
		newEncodeCommand(a),
		newFirmwareCommand(a),
		newCalibrateCommand(a),
	)
	return root
}

// Execute runs trainerctl until it finishes or is interrupted.
func Execute() error {
	return ExecuteContext(context.Background(), os.Stdout, os.Args[1:])
}

func ExecuteContext(ctx context.Context, out io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := NewApp(out)
	root := NewRootCommand(a)
	root.SetArgs(args)
	defer a.teardown()
	return root.ExecuteContext(ctx)
}
