// Package bt is the BLE transport: scanning, connecting and characteristic access on
// top of tinygo.org/x/bluetooth.
package bt

import (
	"context"
	"errors"
	"time"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/gatt"
)

var (
	ErrNotConnected  = errors.New("device not connected")
	ErrUnknownDevice = errors.New("device not found")
	ErrNotFound      = errors.New("characteristic not found")
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// Device is a peripheral seen in a scan, possibly connected.
type Device interface {
	Address() string
	Name() string
	RSSI() (int16, error)
	LastSeen() time.Time
	State() State
	IsConnected() bool
	// WaitForConnection blocks until the device is connected or ctx ends.
	WaitForConnection(ctx context.Context) error
	ServiceUUIDs() []string
	HasService(uuid string) bool

	EnableNotifications(c gatt.Characteristic, fn func(buf []byte)) error
	DisableNotifications(c gatt.Characteristic) error
	Read(c gatt.Characteristic) ([]byte, error)
	Write(c gatt.Characteristic, data []byte) error
	WriteWithoutResponse(c gatt.Characteristic, data []byte) error
	Disconnect() error
}

// pollConnected is the WaitForConnection loop shared by the implementations.
func pollConnected(ctx context.Context, d Device, every time.Duration) error {
	if d.IsConnected() {
		return nil
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if d.IsConnected() {
				return nil
			}
		}
	}
}
