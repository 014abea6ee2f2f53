package bt

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/events"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/safe_map"
)

const DefaultScanTimeout = 10 * time.Second

// Manager owns the adapter: it scans, tracks the devices it has seen and connects
// to them.
type Manager struct {
	adapter     *bluetooth.Adapter
	logger      *log.Logger
	scanTimeout time.Duration
	devices     *safe_map.SafeMap[string, *tinygoDevice]

	mu         sync.Mutex
	scanning   bool
	scanCancel context.CancelFunc

	deviceListEvent       *events.ChannelEvent[[]Device]
	connectedDevicesEvent *events.ChannelEvent[[]Device]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a manager. Devices not seen for scanTimeout drop out of the scan
// list; a zero timeout means DefaultScanTimeout.
func NewManager(adapter *bluetooth.Adapter, logger *log.Logger, scanTimeout time.Duration) *Manager {
	if logger == nil {
		panic("BTManager: logger cannot be nil")
	}
	if adapter == nil {
		panic("BTManager: adapter cannot be nil")
	}
	if scanTimeout <= 0 {
		scanTimeout = DefaultScanTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		adapter:               adapter,
		logger:                logger,
		scanTimeout:           scanTimeout,
		devices:               safe_map.NewSafeMap[string, *tinygoDevice](),
		deviceListEvent:       events.NewChannelEvent[[]Device](true),
		connectedDevicesEvent: events.NewChannelEvent[[]Device](true),
		ctx:                   ctx,
		cancel:                cancel,
	}
}

func (m *Manager) device(address bluetooth.Address) *tinygoDevice {
	d, _ := m.devices.LoadOrStore(normalizeAddress(address.String()), newTinygoDevice(m.logger, address))
	return d
}

func normalizeAddress(address string) string {
	return strings.ToUpper(address)
}

// Enable powers the adapter and starts tracking connection changes.
func (m *Manager) Enable() error {
	m.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		d := m.device(device.Address)
		if connected {
			m.logger.Printf("BTManager: connected %s", d.Address())
			d.setConnected(&device)
		} else {
			m.logger.Printf("BTManager: disconnected %s", d.Address())
			d.setConnected(nil)
		}
		m.connectedDevicesEvent.Notify(m.ConnectedDevices())
	})
	if err := m.adapter.Enable(); err != nil {
		return fmt.Errorf("failed to enable adapter: %w", err)
	}
	return nil
}

// StartScan scans in the background until StopScan or Shutdown. With a non-empty
// filter only devices advertising one of those services are kept.
func (m *Manager) StartScan(serviceFilter []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.scanning && m.scanCancel != nil {
		m.logger.Printf("BTManager: restarting running scan")
		m.scanCancel()
		if err := m.adapter.StopScan(); err != nil {
			m.logger.Printf("BTManager: error stopping previous scan: %v", err)
		}
	}
	scanCtx, cancel := context.WithCancel(m.ctx)
	m.scanning = true
	m.scanCancel = cancel
	m.logger.Printf("BTManager: starting scan, filter %v", serviceFilter)

	go_func_utils.SafeGoWait(m.logger, &m.wg, func() {
		defer m.logger.Printf("BTManager: scan loop exited")
		err := m.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			if scanCtx.Err() != nil {
				return
			}
			uuids := make([]string, 0, len(result.ServiceUUIDs()))
			for _, u := range result.ServiceUUIDs() {
				uuids = append(uuids, u.String())
			}
			if !matchesFilter(serviceFilter, uuids) {
				return
			}
			_, known := m.devices.Load(normalizeAddress(result.Address.String()))
			d := m.device(result.Address)
			d.seen(result, time.Now())
			if !known {
				m.logger.Printf("BTManager: found %s (%s) RSSI %d", d.Name(), d.Address(), result.RSSI)
			}
		})
		if err != nil {
			m.logger.Printf("BTManager: scan error: %v", err)
		}
	})

	go_func_utils.SafeGoWait(m.logger, &m.wg, func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-scanCtx.Done():
				return
			case now := <-ticker.C:
				m.pruneStale(now)
				m.deviceListEvent.Notify(m.ScanDevices())
			}
		}
	})
}

func (m *Manager) StopScan() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.scanning {
		return nil
	}
	m.scanning = false
	if m.scanCancel != nil {
		m.scanCancel()
		m.scanCancel = nil
	}
	return m.adapter.StopScan()
}

func (m *Manager) IsScanning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scanning
}

// Scan scans for d (or until ctx ends) and returns what was seen.
func (m *Manager) Scan(ctx context.Context, serviceFilter []string, d time.Duration) ([]Device, error) {
	m.StartScan(serviceFilter)
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	if err := m.StopScan(); err != nil {
		return nil, fmt.Errorf("failed to stop scan: %w", err)
	}
	return m.ScanDevices(), ctx.Err()
}

// Find scans until a device with address shows up.
func (m *Manager) Find(ctx context.Context, address string) (Device, error) {
	if d, ok := m.devices.Load(normalizeAddress(address)); ok {
		return d, nil
	}
	m.StartScan(nil)
	defer func() {
		if err := m.StopScan(); err != nil {
			m.logger.Printf("BTManager: error stopping scan: %v", err)
		}
	}()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrUnknownDevice, address, ctx.Err())
		case <-ticker.C:
			if d, ok := m.devices.Load(normalizeAddress(address)); ok {
				return d, nil
			}
		}
	}
}

// Connect finds and connects to address and waits for the link to come up.
func (m *Manager) Connect(ctx context.Context, address string) (Device, error) {
	found, err := m.Find(ctx, address)
	if err != nil {
		return nil, err
	}
	d := found.(*tinygoDevice)
	if d.IsConnected() {
		return d, nil
	}

	m.logger.Printf("BTManager: connecting to %s", d.Address())
	d.setState(Connecting)
	device, err := m.adapter.Connect(d.address, bluetooth.ConnectionParams{})
	if err != nil {
		d.setState(Disconnected)
		return nil, fmt.Errorf("failed to connect to %s: %w", d.Address(), err)
	}
	d.setConnected(&device)

	if err := d.WaitForConnection(ctx); err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", d.Address(), err)
	}
	m.connectedDevicesEvent.Notify(m.ConnectedDevices())
	return d, nil
}

func (m *Manager) Disconnect(d Device) error {
	m.logger.Printf("BTManager: disconnecting %s", d.Address())
	if !d.IsConnected() {
		return nil
	}
	return d.Disconnect()
}

func (m *Manager) ConnectedDevices() []Device {
	var result []Device
	m.devices.Range(func(_ string, d *tinygoDevice) bool {
		if d.IsConnected() {
			result = append(result, d)
		}
		return true
	})
	return result
}

// ScanDevices returns devices seen within the scan timeout.
func (m *Manager) ScanDevices() []Device {
	now := time.Now()
	var result []Device
	m.devices.Range(func(_ string, d *tinygoDevice) bool {
		if now.Sub(d.LastSeen()) <= m.scanTimeout {
			result = append(result, d)
		}
		return true
	})
	return result
}

func (m *Manager) pruneStale(now time.Time) {
	m.devices.Range(func(address string, d *tinygoDevice) bool {
		if !d.IsConnected() && now.Sub(d.LastSeen()) > m.scanTimeout {
			m.devices.Delete(address)
			m.logger.Printf("BTManager: %s not seen for %v", address, m.scanTimeout)
		}
		return true
	})
}

// ListenToDeviceList receives the scan list about once a second.
func (m *Manager) ListenToDeviceList(ch chan<- []Device) func() {
	return m.deviceListEvent.Listen(ch)
}

func (m *Manager) ListenToConnectedDevices(ch chan<- []Device) func() {
	return m.connectedDevicesEvent.Listen(ch)
}

// Shutdown disconnects everything and waits for the manager's goroutines.
func (m *Manager) Shutdown() {
	m.logger.Println("BTManager: shutting down")
	for _, d := range m.ConnectedDevices() {
		if err := m.Disconnect(d); err != nil {
			m.logger.Printf("BTManager: error disconnecting %s: %v", d.Address(), err)
		}
	}
	if err := m.StopScan(); err != nil {
		m.logger.Printf("BTManager: error stopping scan: %v", err)
	}
	m.cancel()
	m.wg.Wait()
	m.logger.Println("BTManager: shutdown complete")
}

// matchesFilter reports whether any advertised UUID is in filter. An empty filter
// matches everything.
func matchesFilter(filter, advertised []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, a := range advertised {
		for _, f := range filter {
			if strings.EqualFold(a, f) {
				return true
			}
		}
	}
	return false
}
