package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/bt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/ftms"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/gatt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/kinetic"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/kinetic/inride"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/kinetic/smartcontrol"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/telemetry"
)

// encodeOp builds one command from its positional arguments.
type encodeOp struct {
	args  string
	nargs int
	build func(args []float64, raw []string) ([]byte, error)
}

func simple(cmd func() []byte) encodeOp {
	return encodeOp{build: func([]float64, []string) ([]byte, error) { return cmd(), nil }}
}

func oneValue(args string, cmd func(v float64) []byte) encodeOp {
	return encodeOp{args: args, nargs: 1, build: func(v []float64, _ []string) ([]byte, error) { return cmd(v[0]), nil }}
}

func parseFloats(raw []string) ([]float64, error) {
	values := make([]float64, len(raw))
	for i, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", kinetic.ErrInvalidInput, s)
		}
		values[i] = v
	}
	return values, nil
}

func opsHelp(ops map[string]encodeOp) string {
	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString("Operations:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %s %s\n", name, ops[name].args)
	}
	return b.String()
}

func buildOp(ops map[string]encodeOp, args []string) ([]byte, error) {
	op, ok := ops[args[0]]
	if !ok {
		return nil, fmt.Errorf("%w: unknown operation %q", kinetic.ErrInvalidInput, args[0])
	}
	raw := args[1:]
	if len(raw) < op.nargs {
		return nil, fmt.Errorf("%w: %s needs %s", kinetic.ErrInvalidInput, args[0], op.args)
	}
	values, err := parseFloats(raw[:op.nargs])
	if err != nil {
		return nil, err
	}
	return op.build(values, raw[op.nargs:])
}

func newEncodeCommand(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Build control point commands, optionally sending them",
	}
	cmd.AddCommand(newFTMSEncodeCommand(a), newInRideEncodeCommand(a), newSmartEncodeCommand(a))
	return cmd
}

var ftmsOps = map[string]encodeOp{
	"request-control":  simple(ftms.RequestControl),
	"reset":            simple(ftms.Reset),
	"start":            simple(ftms.StartOrResume),
	"stop":             simple(ftms.Stop),
	"pause":            simple(ftms.Pause),
	"spin-down-start":  simple(ftms.SpinDownStart),
	"spin-down-ignore": simple(ftms.SpinDownIgnore),
	"power":            oneValue("<watts>", func(v float64) []byte { return ftms.SetTargetPower(int16(v)) }),
	"resistance":       oneValue("<level>", ftms.SetTargetResistanceLevel),
	"incline":          oneValue("<percent>", ftms.SetTargetInclination),
	"heart-rate":       oneValue("<bpm>", func(v float64) []byte { return ftms.SetTargetHeartRate(uint8(v)) }),
	"wheel":            oneValue("<mm>", ftms.SetWheelCircumference),
	"cadence":          oneValue("<rpm>", ftms.SetTargetedCadence),
	"simulation": {
		args:  "<grade%> [wind-m/s crr cw]",
		nargs: 1,
		build: func(v []float64, rest []string) ([]byte, error) {
			p := ftms.SimulationParameters{GradePercent: v[0], RollingResistanceCoefficient: 0.004, WindResistanceCoefficient: 0.51}
			extra, err := parseFloats(rest)
			if err != nil {
				return nil, err
			}
			for i, f := range extra {
				switch i {
				case 0:
					p.WindSpeedMps = f
				case 1:
					p.RollingResistanceCoefficient = f
				case 2:
					p.WindResistanceCoefficient = f
				}
			}
			return ftms.SetIndoorBikeSimulation(p), nil
		},
	},
}

func newFTMSEncodeCommand(a *App) *cobra.Command {
	var send bool
	cmd := &cobra.Command{
		Use:     "ftms <operation> [args]",
		Short:   "Fitness Machine control point commands",
		Long:    opsHelp(ftmsOps),
		Example: "  trainerctl encode ftms power 200\n  trainerctl encode ftms simulation 4.5 --send --simulate",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := buildOp(ftmsOps, args)
			if err != nil {
				return err
			}
			a.printf("%s\n", hex.EncodeToString(payload))
			if !send {
				return nil
			}
			return a.withDevice(cmd.Context(), gatt.DeviceTypeSmartTrainer, func(ctx context.Context, device bt.Device) error {
				controller := telemetry.NewController(a.logger, device)
				if err := controller.Start(ctx); err != nil {
					return err
				}
				resp, err := controller.SendAndWait(ctx, payload)
				if resp != nil {
					a.printf("%s: %s\n", resp.RequestOpCode, resp.Result)
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&send, "send", false, "Write the command to the trainer and wait for its response")
	return cmd
}

// withDevice connects, runs fn with a bounded context and releases the device.
func (a *App) withDevice(ctx context.Context, typeID gatt.DeviceTypeID, fn func(ctx context.Context, device bt.Device) error) error {
	device, release, err := a.connect(ctx, typeID)
	if err != nil {
		return err
	}
	defer release()
	ctx, cancel := context.WithTimeout(ctx, controlTimeout)
	defer cancel()
	return fn(ctx, device)
}

func inrideOps(sid []byte) map[string]encodeOp {
	return map[string]encodeOp{
		"start-calibration": {build: func([]float64, []string) ([]byte, error) { return inride.StartCalibration(sid) }},
		"stop-calibration":  {build: func([]float64, []string) ([]byte, error) { return inride.StopCalibration(sid) }},
		"spindown-time": {args: "<seconds>", nargs: 1, build: func(v []float64, _ []string) ([]byte, error) {
			return inride.SetSpindownTime(sid, v[0])
		}},
		"configure": {args: "<1000|500|250 ms>", nargs: 1, build: func(v []float64, _ []string) ([]byte, error) {
			return inride.ConfigureSensor(sid, inride.SensorUpdateRate(v[0]))
		}},
		"name": {args: "<name>", build: func(_ []float64, rest []string) ([]byte, error) {
			if len(rest) != 1 {
				return nil, fmt.Errorf("%w: name needs exactly one argument", kinetic.ErrInvalidInput)
			}
			return inride.SetPeripheralName(sid, rest[0])
		}},
	}
}

var inrideControlPoint = gatt.Characteristic{Service: gatt.ServiceUUIDInRide, UUID: gatt.CharUUIDInRideControlPoint}

func newInRideEncodeCommand(a *App) *cobra.Command {
	var send bool
	cmd := &cobra.Command{
		Use:     "inride <operation> [args]",
		Short:   "Kinetic inRide sensor commands (need the unit's system ID)",
		Long:    opsHelp(inrideOps(nil)),
		Example: "  trainerctl encode inride start-calibration --system-id 01:02:03:04:05:06",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !send {
				sid, err := a.systemID(nil)
				if err != nil {
					return err
				}
				payload, err := buildOp(inrideOps(sid), args)
				if err != nil {
					return err
				}
				a.printf("%s\n", hex.EncodeToString(payload))
				return nil
			}
			return a.withDevice(cmd.Context(), gatt.DeviceTypeInRide, func(ctx context.Context, device bt.Device) error {
				sid, err := a.systemID(device)
				if err != nil {
					return err
				}
				payload, err := buildOp(inrideOps(sid), args)
				if err != nil {
					return err
				}
				a.printf("%s\n", hex.EncodeToString(payload))
				return device.Write(inrideControlPoint, payload)
			})
		},
	}
	cmd.Flags().BoolVar(&send, "send", false, "Write the command to the sensor")
	return cmd
}

func smartOps(enc *smartcontrol.Encoder, sim *smartcontrol.SimulationParameters) map[string]encodeOp {
	return map[string]encodeOp{
		"start-calibration": simple(func() []byte { return enc.StartCalibration() }),
		"stop-calibration":  simple(func() []byte { return enc.StopCalibration() }),
		"erg":               oneValue("<watts>", func(v float64) []byte { return enc.SetERGMode(int(v)) }),
		"fluid":             oneValue("<level 0-9>", func(v float64) []byte { return enc.SetFluidMode(int(v)) }),
		"resistance":        oneValue("<fraction 0-1>", func(v float64) []byte { return enc.SetResistanceMode(v) }),
		"simulation": oneValue("<grade%>", func(v float64) []byte {
			p := *sim
			p.GradePercent = v
			return enc.SetSimulationMode(p)
		}),
	}
}

var smartControlPoint = gatt.Characteristic{Service: gatt.ServiceUUIDSmartControl, UUID: gatt.CharUUIDSmartControlControlPoint}

func newSmartEncodeCommand(a *App) *cobra.Command {
	var (
		send  bool
		nonce int
		sim   = smartcontrol.SimulationParameters{WeightKg: 80, RollingCoefficient: 0.004, WindCoefficient: 0.6}
	)
	cmd := &cobra.Command{
		Use:     "smart <operation> [args]",
		Short:   "Kinetic Smart Control commands (need the hash table)",
		Long:    opsHelp(smartOps(nil, &sim)),
		Example: "  trainerctl encode smart erg 250 --hash-table table.hex\n  trainerctl encode smart simulation 3 --weight 72 --nonce 0x11",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := a.cfg.HashTable()
			if err != nil {
				return err
			}
			var opts []smartcontrol.Option
			if nonce >= 0 {
				fixed := byte(nonce)
				opts = append(opts, smartcontrol.WithNonceSource(kinetic.NonceFunc(func() byte { return fixed })))
			}
			payload, err := buildOp(smartOps(smartcontrol.NewEncoder(table, opts...), &sim), args)
			if err != nil {
				return err
			}
			a.printf("%s\n", hex.EncodeToString(payload))
			if !send {
				return nil
			}
			return a.withDevice(cmd.Context(), gatt.DeviceTypeSmartControl, func(ctx context.Context, device bt.Device) error {
				return device.Write(smartControlPoint, payload)
			})
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&send, "send", false, "Write the command to the trainer")
	flags.IntVar(&nonce, "nonce", -1, "Fixed nonce byte instead of a random one")
	flags.Float64Var(&sim.WeightKg, "weight", sim.WeightKg, "Rider and bike weight in kg (simulation)")
	flags.Float64Var(&sim.RollingCoefficient, "crr", sim.RollingCoefficient, "Rolling resistance coefficient (simulation)")
	flags.Float64Var(&sim.WindCoefficient, "cw", sim.WindCoefficient, "Wind resistance coefficient (simulation)")
	flags.Float64Var(&sim.WindSpeedMps, "wind", 0, "Head wind in m/s (simulation)")
	return cmd
}
