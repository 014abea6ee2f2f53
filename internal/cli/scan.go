package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"tinygo.org/x/bluetooth"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/bt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/devicestore"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/gatt"
)

func newScanCommand(a *App) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List nearby trainers and sensors",
		Long: `Scan for devices advertising a heart rate, cycling, fitness machine or
Kinetic service and remember them for later commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := bt.NewManager(bluetooth.DefaultAdapter, a.logger, a.cfg.Device.ScanTimeout)
			defer manager.Shutdown()
			if err := manager.Enable(); err != nil {
				return fmt.Errorf("failed to enable bluetooth: %w", err)
			}

			filter := gatt.ScanServiceUUIDs()
			if all {
				filter = nil
			}
			a.printf("Scanning for %v...\n", a.cfg.Device.ScanTimeout)
			devices, err := manager.Scan(cmd.Context(), filter, a.cfg.Device.ScanTimeout)
			if err != nil && len(devices) == 0 {
				return err
			}
			for _, d := range devices {
				a.remember(d)
			}
			writeDeviceTable(a.out, devices)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Show every device, not only trainers and sensors")
	return cmd
}

func deviceTypeNames(serviceUUIDs []string) string {
	var names []string
	for _, dt := range gatt.DeviceTypesFor(serviceUUIDs) {
		names = append(names, dt.DisplayName)
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}

func writeDeviceTable(w io.Writer, devices []bt.Device) {
	if len(devices) == 0 {
		fmt.Fprintln(w, "No devices found")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tNAME\tRSSI\tTYPES")
	for _, d := range devices {
		name := d.Name()
		if name == "" {
			name = "Unknown"
		}
		rssi := "-"
		if v, err := d.RSSI(); err == nil {
			rssi = fmt.Sprintf("%d", v)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Address(), name, rssi, deviceTypeNames(d.ServiceUUIDs()))
	}
	tw.Flush()
}

func newDevicesCommand(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Show remembered devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			writeStoreTable(a.out, a.store)
			return nil
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "forget <address>",
			Short: "Forget a device",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, ok := a.store.Get(args[0]); !ok {
					return fmt.Errorf("%w: %s", bt.ErrUnknownDevice, args[0])
				}
				return a.store.Forget(args[0])
			},
		},
		&cobra.Command{
			Use:   "prefer <type> <address>",
			Short: "Use a device by default for a device type",
			Long:  "Types: " + strings.Join(deviceTypeIDs(), ", "),
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				typeID := gatt.DeviceTypeID(args[0])
				if !validDeviceType(typeID) {
					return fmt.Errorf("unknown device type %q (want one of %s)", args[0], strings.Join(deviceTypeIDs(), ", "))
				}
				return a.store.SetPreferredDevice(typeID, args[1])
			},
		},
	)
	return cmd
}

func deviceTypeIDs() []string {
	ids := make([]string, 0, len(gatt.AllDeviceTypes))
	for _, dt := range gatt.AllDeviceTypes {
		ids = append(ids, string(dt.ID))
	}
	return ids
}

func validDeviceType(id gatt.DeviceTypeID) bool {
	for _, dt := range gatt.AllDeviceTypes {
		if dt.ID == id {
			return true
		}
	}
	return false
}

func writeStoreTable(w io.Writer, store *devicestore.Store) {
	devices := store.List()
	if len(devices) == 0 {
		fmt.Fprintln(w, "No known devices")
		return
	}
	preferred := make(map[string][]string)
	for _, dt := range gatt.AllDeviceTypes {
		if addr := store.PreferredDevice(dt.ID); addr != "" {
			key := strings.ToUpper(addr)
			preferred[key] = append(preferred[key], string(dt.ID))
		}
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tNAME\tSYSTEM ID\tLAST SEEN\tPREFERRED FOR")
	for _, d := range devices {
		lastSeen := "-"
		if !d.LastSeen.IsZero() {
			lastSeen = d.LastSeen.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Address, orDash(d.Name), orDash(d.SystemID), lastSeen,
			orDash(strings.Join(preferred[strings.ToUpper(d.Address)], ", ")))
	}
	tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
