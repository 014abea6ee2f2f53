package bt

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/gatt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/safe_map"
)

const maxReadSize = 512

type tinygoDevice struct {
	logger  *log.Logger
	address bluetooth.Address

	mu           sync.RWMutex
	name         string
	scanResult   *bluetooth.ScanResult
	lastSeen     time.Time
	state        State
	connected    *bluetooth.Device // nil unless connected
	serviceUUIDs []string

	// bleMu serializes discovery and characteristic access.
	bleMu                 sync.Mutex
	allServicesDiscovered bool
	services              *safe_map.SafeMap[string, *bluetooth.DeviceService]
	characteristics       *safe_map.SafeMap[string, *bluetooth.DeviceCharacteristic]
	serviceCharsFound     *safe_map.SafeMap[string, bool]
}

var _ Device = (*tinygoDevice)(nil)

func newTinygoDevice(logger *log.Logger, address bluetooth.Address) *tinygoDevice {
	if logger == nil {
		panic("BTDevice: logger cannot be nil")
	}
	return &tinygoDevice{
		logger:            logger,
		address:           address,
		name:              "Unknown",
		lastSeen:          time.Unix(0, 0),
		services:          safe_map.NewSafeMap[string, *bluetooth.DeviceService](),
		characteristics:   safe_map.NewSafeMap[string, *bluetooth.DeviceCharacteristic](),
		serviceCharsFound: safe_map.NewSafeMap[string, bool](),
	}
}

func (d *tinygoDevice) Address() string {
	return d.address.String()
}

func (d *tinygoDevice) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.scanResult != nil {
		if n := d.scanResult.LocalName(); n != "" {
			return n
		}
	}
	return d.name
}

func (d *tinygoDevice) RSSI() (int16, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.scanResult == nil {
		return 0, fmt.Errorf("no scan result for %s", d.address.String())
	}
	return d.scanResult.RSSI, nil
}

func (d *tinygoDevice) LastSeen() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastSeen
}

func (d *tinygoDevice) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

func (d *tinygoDevice) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected != nil
}

func (d *tinygoDevice) WaitForConnection(ctx context.Context) error {
	return pollConnected(ctx, d, 250*time.Millisecond)
}

func (d *tinygoDevice) ServiceUUIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.serviceUUIDs)
}

func (d *tinygoDevice) HasService(uuid string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.ContainsFunc(d.serviceUUIDs, func(u string) bool { return strings.EqualFold(u, uuid) })
}

func (d *tinygoDevice) seen(result bluetooth.ScanResult, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scanResult = &result
	d.lastSeen = at
	if len(d.serviceUUIDs) == 0 {
		for _, u := range result.ServiceUUIDs() {
			d.serviceUUIDs = append(d.serviceUUIDs, u.String())
		}
	}
}

func (d *tinygoDevice) setConnected(device *bluetooth.Device) {
	d.mu.Lock()
	d.connected = device
	if device != nil {
		d.state = Connected
	} else {
		d.state = Disconnected
	}
	d.mu.Unlock()

	if device == nil {
		// handles are invalid after a disconnect
		d.bleMu.Lock()
		d.allServicesDiscovered = false
		d.services.Clear()
		d.characteristics.Clear()
		d.serviceCharsFound.Clear()
		d.bleMu.Unlock()
	}
}

func (d *tinygoDevice) setState(state State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = state
}

func (d *tinygoDevice) connectedDevice() *bluetooth.Device {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

func (d *tinygoDevice) EnableNotifications(c gatt.Characteristic, fn func(buf []byte)) error {
	d.bleMu.Lock()
	defer d.bleMu.Unlock()

	d.logger.Printf("BTDevice: enabling notifications for %s", c)
	char, err := d.characteristic(c)
	if err != nil {
		return err
	}
	if err := char.EnableNotifications(fn); err != nil {
		return fmt.Errorf("failed to enable notifications on %s: %w", c, err)
	}
	return nil
}

func (d *tinygoDevice) DisableNotifications(c gatt.Characteristic) error {
	d.bleMu.Lock()
	defer d.bleMu.Unlock()

	d.logger.Printf("BTDevice: disabling notifications for %s", c)
	char, err := d.characteristic(c)
	if err != nil {
		return err
	}
	// a nil callback turns notifications off
	if err := char.EnableNotifications(nil); err != nil {
		return fmt.Errorf("failed to disable notifications on %s: %w", c, err)
	}
	return nil
}

func (d *tinygoDevice) Read(c gatt.Characteristic) ([]byte, error) {
	d.bleMu.Lock()
	defer d.bleMu.Unlock()

	char, err := d.characteristic(c)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, maxReadSize)
	n, err := char.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", c, err)
	}
	return buf[:n], nil
}

func (d *tinygoDevice) Write(c gatt.Characteristic, data []byte) error {
	return d.write(c, data, true)
}

func (d *tinygoDevice) WriteWithoutResponse(c gatt.Characteristic, data []byte) error {
	return d.write(c, data, false)
}

func (d *tinygoDevice) write(c gatt.Characteristic, data []byte, withResponse bool) error {
	d.bleMu.Lock()
	defer d.bleMu.Unlock()

	char, err := d.characteristic(c)
	if err != nil {
		return err
	}
	if withResponse {
		_, err = writeRequest(char, data)
	} else {
		_, err = char.WriteWithoutResponse(data)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", c, err)
	}
	return nil
}

func (d *tinygoDevice) Disconnect() error {
	device := d.connectedDevice()
	if device == nil {
		return nil
	}
	return device.Disconnect()
}

// service returns a discovered service; the first miss discovers all of them, since
// discovering services one at a time interrupts services already in use.
// Callers hold bleMu.
func (d *tinygoDevice) service(uuid bluetooth.UUID) (*bluetooth.DeviceService, error) {
	device := d.connectedDevice()
	if device == nil {
		return nil, ErrNotConnected
	}
	key := uuid.String()
	if svc, ok := d.services.Load(key); ok {
		return svc, nil
	}

	if !d.allServicesDiscovered {
		d.logger.Printf("BTDevice: discovering services of %s", d.Address())
		found, err := device.DiscoverServices(nil)
		if err != nil {
			return nil, fmt.Errorf("error discovering services: %w", err)
		}
		for i := range found {
			d.services.Store(found[i].UUID().String(), &found[i])
		}
		d.allServicesDiscovered = true
	}

	svc, ok := d.services.Load(key)
	if !ok {
		return nil, fmt.Errorf("%w: service %s", ErrNotFound, key)
	}
	return svc, nil
}

// characteristic resolves c through the discovery cache. Callers hold bleMu.
func (d *tinygoDevice) characteristic(c gatt.Characteristic) (*bluetooth.DeviceCharacteristic, error) {
	serviceUUID, err := bluetooth.ParseUUID(c.Service)
	if err != nil {
		return nil, fmt.Errorf("invalid service UUID %q: %w", c.Service, err)
	}
	charUUID, err := bluetooth.ParseUUID(c.UUID)
	if err != nil {
		return nil, fmt.Errorf("invalid characteristic UUID %q: %w", c.UUID, err)
	}
	key := gatt.Characteristic{Service: serviceUUID.String(), UUID: charUUID.String()}.Key()
	if char, ok := d.characteristics.Load(key); ok {
		return char, nil
	}

	if found, _ := d.serviceCharsFound.Load(serviceUUID.String()); !found {
		svc, err := d.service(serviceUUID)
		if err != nil {
			return nil, err
		}
		d.logger.Printf("BTDevice: discovering characteristics of service %s", serviceUUID.String())
		chars, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			return nil, fmt.Errorf("could not discover characteristics of %s: %w", serviceUUID.String(), err)
		}
		for i := range chars {
			k := gatt.Characteristic{Service: serviceUUID.String(), UUID: chars[i].UUID().String()}.Key()
			d.characteristics.Store(k, &chars[i])
		}
		d.serviceCharsFound.Store(serviceUUID.String(), true)
	}

	char, ok := d.characteristics.Load(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, c)
	}
	return char, nil
}
