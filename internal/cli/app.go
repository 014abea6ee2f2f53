package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"tinygo.org/x/bluetooth"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/bt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/config"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/devicestore"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/gatt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/kinetic"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/logging"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/simulator"
)

const (
	logLinesBuffer    = 256
	simulatorInterval = time.Second
)

var ErrNoDevice = errors.New("no device address")

// DialFunc connects to a device of the given type and returns it with a func that
// releases it.
type DialFunc func(ctx context.Context, typeID gatt.DeviceTypeID) (bt.Device, func(), error)

// App is the state shared by every command of one invocation.
type App struct {
	out      io.Writer
	cfgFile  string
	simulate bool

	cfg       *config.Config
	logger    *log.Logger
	logCloser io.Closer
	logLines  chan string
	store     *devicestore.Store

	dial DialFunc
}

func NewApp(out io.Writer) *App {
	return &App{
		out:      out,
		logLines: make(chan string, logLinesBuffer),
	}
}

// setup runs before every command: config, then the logger, then the store.
func (a *App) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags(), a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger, a.logCloser = logging.New(cfg.LogOptions(), logging.NewLineWriter(a.logLines))
	if cfg.File != "" {
		a.logger.Printf("CLI: using config %s", cfg.File)
	}
	a.logger.Printf("CLI: running %s", cmd.CommandPath())
	a.store = devicestore.Open(a.logger, cfg.Store.Path)
	return nil
}

func (a *App) teardown() error {
	if a.logCloser == nil {
		return nil
	}
	err := a.logCloser.Close()
	a.logCloser = nil
	return err
}

func (a *App) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.out, format, args...)
}

// connect returns a device of typeID: the injected dialer, the simulator, or a BLE
// connection to the configured or preferred address.
func (a *App) connect(ctx context.Context, typeID gatt.DeviceTypeID) (bt.Device, func(), error) {
	switch {
	case a.dial != nil:
		return a.dial(ctx, typeID)
	case a.simulate:
		return a.dialSimulator(ctx)
	default:
		return a.dialBLE(ctx, typeID)
	}
}

func (a *App) dialSimulator(ctx context.Context) (bt.Device, func(), error) {
	trainer := simulator.NewTrainer(a.logger, simulator.DefaultAddress, simulator.DefaultName)
	simCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	go_func_utils.SafeGoWait(a.logger, &wg, func() { trainer.Run(simCtx, simulatorInterval) })
	return trainer.Device(), func() {
		cancel()
		wg.Wait()
	}, nil
}

func (a *App) dialBLE(ctx context.Context, typeID gatt.DeviceTypeID) (bt.Device, func(), error) {
	address := a.cfg.Device.Address
	if address == "" {
		address = a.store.PreferredDevice(typeID)
	}
	if address == "" {
		return nil, nil, fmt.Errorf("%w for %s: pass --address or run scan first", ErrNoDevice, typeID)
	}

	manager := bt.NewManager(bluetooth.DefaultAdapter, a.logger, a.cfg.Device.ScanTimeout)
	if err := manager.Enable(); err != nil {
		manager.Shutdown()
		return nil, nil, fmt.Errorf("failed to enable bluetooth: %w", err)
	}
	connectCtx, cancel := context.WithTimeout(ctx, a.cfg.Device.ScanTimeout)
	defer cancel()
	device, err := manager.Connect(connectCtx, address)
	if err != nil {
		manager.Shutdown()
		return nil, nil, err
	}
	a.remember(device)
	if err := a.store.SetPreferredDevice(typeID, device.Address()); err != nil {
		a.logger.Printf("CLI: failed to save preferred device: %v", err)
	}
	return device, manager.Shutdown, nil
}

// remember records a device in the store, logging failures.
func (a *App) remember(d bt.Device) {
	var types []gatt.DeviceTypeID
	for _, dt := range gatt.DeviceTypesFor(d.ServiceUUIDs()) {
		types = append(types, dt.ID)
	}
	if err := a.store.Remember(d.Address(), d.Name(), types, time.Now()); err != nil {
		a.logger.Printf("CLI: failed to remember %s: %v", d.Address(), err)
	}
}

// systemID resolves the system ID of device: configuration first, then the store,
// then the Device Information characteristic, which is stored for next time.
func (a *App) systemID(device bt.Device) ([]byte, error) {
	if sid := a.cfg.SystemID(); sid != nil {
		return sid, nil
	}
	if device == nil {
		return nil, fmt.Errorf("%w: no system id; pass --system-id", kinetic.ErrInvalidInput)
	}
	if sid, ok := a.store.SystemID(device.Address()); ok {
		return sid, nil
	}
	stream, _ := gatt.StreamByKind(gatt.KindSystemID)
	sid, err := device.Read(stream.Characteristic)
	if err != nil {
		return nil, fmt.Errorf("failed to read system id: %w", err)
	}
	if err := a.store.SetSystemID(device.Address(), sid); err != nil {
		return nil, err
	}
	return sid, nil
}
