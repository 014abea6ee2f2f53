package cli

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/gatt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/kinetic"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/telemetry"
)

// parseHex accepts "0a1b", "0a 1b", "0a:1b" and "0x0a1b".
func parseHex(s string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", ":", "", "-", "", "0x", "", "0X", "").Replace(s)
	buf, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not hex: %v", kinetic.ErrInvalidInput, s, err)
	}
	return buf, nil
}

func kindsHelp() string {
	var b strings.Builder
	for _, s := range gatt.AllStreams {
		fmt.Fprintf(&b, "  %-28s %s\n", s.Kind, s.Description)
	}
	return b.String()
}

func newDecodeCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <kind> <hex>",
		Short: "Decode one characteristic value",
		Long:  "Decode a raw characteristic value and print the record and its metrics.\n\nKinds:\n" + kindsHelp(),
		Example: `  trainerctl decode heart_rate 10 3c 00 02
  trainerctl decode indoor_bike_data 4402c409b400c80096`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := gatt.Kind(args[0])
			buf, err := parseHex(strings.Join(args[1:], ""))
			if err != nil {
				return err
			}
			monitor := telemetry.NewMonitor(a.logger, telemetry.WithWheelCircumference(a.cfg.Wheel.CircumferenceCM))
			r, err := monitor.Handle("cli", kind, buf)
			if err != nil {
				return err
			}
			a.printf("%s: %s\n", kind, formatRecord(r.Record))
			writeMetricsTable(a, r.Metrics)
			return nil
		},
	}
}

// formatRecord prints pointers to structs by value.
func formatRecord(record any) string {
	switch v := record.(type) {
	case fmt.Stringer:
		return v.String()
	default:
		s := fmt.Sprintf("%+v", v)
		return strings.TrimPrefix(s, "&")
	}
}
