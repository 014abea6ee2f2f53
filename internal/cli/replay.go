package cli

import (
	"fmt"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/capture"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/telemetry"
)

func newReplayCommand(a *App) *cobra.Command {
	var (
		speed   float64
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "replay <capture-file>",
		Short: "Decode a capture file recorded by monitor --capture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := capture.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			monitor := telemetry.NewMonitor(a.logger, telemetry.WithWheelCircumference(a.cfg.Wheel.CircumferenceCM))
			defer monitor.Shutdown()

			var wg sync.WaitGroup
			if verbose {
				readings := make(chan telemetry.Reading, monitorReadingsBuffer)
				unlisten := monitor.ListenToReadings(readings)
				done := make(chan struct{})
				go_func_utils.SafeGoWait(a.logger, &wg, func() {
					for {
						select {
						case r := <-readings:
							writeReading(a.out, r)
						case <-done:
							for {
								select {
								case r := <-readings:
									writeReading(a.out, r)
								default:
									return
								}
							}
						}
					}
				})
				defer func() {
					unlisten()
					close(done)
					wg.Wait()
				}()
			}

			a.printf("Capture created %s\n", r.Header().Created.Local().Format(time.DateTime))
			stats, err := capture.Replay(cmd.Context(), a.logger, r, monitor, speed)
			if err != nil {
				return fmt.Errorf("replay stopped after %d frames: %w", stats.Frames, err)
			}
			a.printf("Replayed %d frames, %d failed to decode\n", stats.Frames, stats.DecodeErrors)
			writeMetricsTable(a, monitor.Latest())
			return nil
		},
	}
	cmd.Flags().Float64Var(&speed, "speed", 0, "Playback speed relative to real time (0: as fast as possible)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every reading")
	return cmd
}

func writeMetricsTable(a *App, metrics telemetry.Metrics) {
	if len(metrics) == 0 {
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	for _, id := range metrics.IDs() {
		name := string(id)
		if info, ok := telemetry.GetMetricInfo(id); ok {
			name = info.DisplayName
		}
		fmt.Fprintf(tw, "%s\t%s\n", name, telemetry.Format(id, metrics[id]))
	}
	tw.Flush()
}
