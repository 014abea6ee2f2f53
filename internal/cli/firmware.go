package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/bt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/firmware"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/gatt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/kinetic/smartcontrol"
)

const progressBuffer = 64

func newFirmwareCommand(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "firmware <image>",
		Short: "Flash a Smart Control firmware image",
		Long: `Stream a firmware image to a Kinetic Smart Control trainer over its control
point. Needs the hash table and the unit's system ID (read from the trainer
when not configured). Failed packets are not retried; rerun to start over.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := firmware.LoadImage(args[0])
			if err != nil {
				return err
			}
			table, err := a.cfg.HashTable()
			if err != nil {
				return err
			}
			device, release, err := a.connect(cmd.Context(), gatt.DeviceTypeSmartControl)
			if err != nil {
				return err
			}
			defer release()
			sid, err := a.systemID(device)
			if err != nil {
				return err
			}
			updater := firmware.NewUpdater(a.logger, device, smartcontrol.NewChunker(table), sid, a.cfg.Firmware.PacketInterval)
			return a.runUpdate(cmd.Context(), updater, device, image)
		},
	}
	cmd.Flags().Duration("packet-interval", firmware.DefaultPacketInterval, "Delay between firmware packets")
	return cmd
}

func (a *App) runUpdate(ctx context.Context, updater *firmware.Updater, device bt.Device, image []byte) error {
	progress := make(chan firmware.Progress, progressBuffer)
	unlisten := updater.ListenToProgress(progress)
	done := make(chan struct{})
	var wg sync.WaitGroup
	go_func_utils.SafeGoWait(a.logger, &wg, func() {
		lastDecile := -1
		show := func(p firmware.Progress) {
			if decile := int(p.Percentage) / 10; decile != lastDecile {
				lastDecile = decile
				a.printf("%5.1f%%  %d/%d bytes  %d packets\n", p.Percentage, p.BytesSent, p.TotalBytes, p.Packets)
			}
		}
		for {
			select {
			case p := <-progress:
				show(p)
			case <-done:
				for {
					select {
					case p := <-progress:
						show(p)
					default:
						return
					}
				}
			}
		}
	})

	a.printf("Flashing %d bytes to %s (%s)\n", len(image), device.Name(), device.Address())
	start := time.Now()
	err := updater.Run(ctx, image)
	unlisten()
	close(done)
	wg.Wait()
	if err != nil {
		return fmt.Errorf("firmware update failed: %w", err)
	}
	a.printf("Firmware sent in %v\n", time.Since(start).Round(time.Millisecond))
	return nil
}
