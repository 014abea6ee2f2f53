package bt

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/gatt"
)

// MockDevice is an in-memory Device. Notifications are injected with Push and writes
// are recorded, so code above the transport can run without a radio.
type MockDevice struct {
	logger       *log.Logger
	address      string
	name         string
	serviceUUIDs []string

	mu        sync.RWMutex
	connected bool
	callbacks map[string]func([]byte)
	reads     map[string][]byte
	writes    []Write
	writeErr  error
	onWrite   func(c gatt.Characteristic, data []byte)
}

// Write is a value written to a MockDevice.
type Write struct {
	Time            time.Time
	Characteristic  gatt.Characteristic
	Data            []byte
	WithoutResponse bool
}

var _ Device = (*MockDevice)(nil)

const maxRecordedWrites = 100

func NewMockDevice(logger *log.Logger, address, name string, serviceUUIDs ...string) *MockDevice {
	if logger == nil {
		panic("MockDevice: logger cannot be nil")
	}
	return &MockDevice{
		logger:       logger,
		address:      address,
		name:         name,
		serviceUUIDs: serviceUUIDs,
		callbacks:    make(map[string]func([]byte)),
		reads:        make(map[string][]byte),
	}
}

func (m *MockDevice) Address() string { return m.address }

func (m *MockDevice) Name() string { return m.name }

func (m *MockDevice) RSSI() (int16, error) { return -50, nil }

func (m *MockDevice) LastSeen() time.Time { return time.Now() }

func (m *MockDevice) State() State {
	if m.IsConnected() {
		return Connected
	}
	return Disconnected
}

func (m *MockDevice) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

func (m *MockDevice) SetConnected(connected bool) {
	m.mu.Lock()
	m.connected = connected
	m.mu.Unlock()
	m.logger.Printf("MockDevice [%s]: connected=%v", m.name, connected)
}

func (m *MockDevice) WaitForConnection(ctx context.Context) error {
	return pollConnected(ctx, m, 10*time.Millisecond)
}

func (m *MockDevice) ServiceUUIDs() []string {
	return slices.Clone(m.serviceUUIDs)
}

func (m *MockDevice) HasService(uuid string) bool {
	return slices.ContainsFunc(m.serviceUUIDs, func(u string) bool { return strings.EqualFold(u, uuid) })
}

func (m *MockDevice) check(c gatt.Characteristic) error {
	if !m.IsConnected() {
		return ErrNotConnected
	}
	if !m.HasService(c.Service) {
		return fmt.Errorf("%w: service %s", ErrNotFound, c.Service)
	}
	return nil
}

func (m *MockDevice) EnableNotifications(c gatt.Characteristic, fn func(buf []byte)) error {
	if err := m.check(c); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[c.Key()] = fn
	m.logger.Printf("MockDevice [%s]: notifications enabled for %s", m.name, c)
	return nil
}

func (m *MockDevice) DisableNotifications(c gatt.Characteristic) error {
	if err := m.check(c); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.callbacks, c.Key())
	return nil
}

// NotificationsEnabled reports whether a callback is registered for c.
func (m *MockDevice) NotificationsEnabled(c gatt.Characteristic) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.callbacks[c.Key()]
	return ok
}

// Push delivers data to the notification callback for c. It returns false when
// notifications are not enabled.
func (m *MockDevice) Push(c gatt.Characteristic, data []byte) bool {
	m.mu.RLock()
	fn := m.callbacks[c.Key()]
	m.mu.RUnlock()
	if fn == nil {
		return false
	}
	fn(slices.Clone(data))
	return true
}

// SetRead sets the value returned by Read(c).
func (m *MockDevice) SetRead(c gatt.Characteristic, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads[c.Key()] = slices.Clone(data)
}

func (m *MockDevice) Read(c gatt.Characteristic) ([]byte, error) {
	if err := m.check(c); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.reads[c.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, c)
	}
	return slices.Clone(data), nil
}

// SetWriteError makes subsequent writes fail with err; nil clears it.
func (m *MockDevice) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// OnWrite installs fn to run after every successful write, outside the lock.
func (m *MockDevice) OnWrite(fn func(c gatt.Characteristic, data []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onWrite = fn
}

func (m *MockDevice) Write(c gatt.Characteristic, data []byte) error {
	return m.write(c, data, false)
}

func (m *MockDevice) WriteWithoutResponse(c gatt.Characteristic, data []byte) error {
	return m.write(c, data, true)
}

func (m *MockDevice) write(c gatt.Characteristic, data []byte, withoutResponse bool) error {
	if err := m.check(c); err != nil {
		return err
	}
	m.mu.Lock()
	if m.writeErr != nil {
		err := m.writeErr
		m.mu.Unlock()
		return fmt.Errorf("failed to write %s: %w", c, err)
	}
	m.writes = append(m.writes, Write{
		Time:            time.Now(),
		Characteristic:  c,
		Data:            slices.Clone(data),
		WithoutResponse: withoutResponse,
	})
	if len(m.writes) > maxRecordedWrites {
		m.writes = m.writes[len(m.writes)-maxRecordedWrites:]
	}
	onWrite := m.onWrite
	m.mu.Unlock()

	m.logger.Printf("MockDevice [%s]: write %s % X", m.name, c, data)
	if onWrite != nil {
		onWrite(c, slices.Clone(data))
	}
	return nil
}

// Writes returns the recorded writes, oldest first. Only the last 100 are kept.
func (m *MockDevice) Writes() []Write {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.writes)
}

func (m *MockDevice) Disconnect() error {
	m.SetConnected(false)
	m.mu.Lock()
	clear(m.callbacks)
	m.mu.Unlock()
	return nil
}
